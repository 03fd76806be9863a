// Package auth provides authentication for the service desk core.
//
// It implements:
//   - A compact HS256 token codec (base64url segments, HMAC-SHA256,
//     constant-time signature check before any header or expiry check)
//   - scrypt password verifiers in the form scrypt$<salt-hex>$<key-hex>
//   - A credential store interface with SQL and in-memory implementations
//   - The session protocol: register, login, refresh, logout
//   - Static role-permission mapping (resident, manager, admin)
//
// Each identity holds at most one live refresh token. Login overwrites it,
// logout clears it, and refresh only succeeds for the stored value, so a new
// login revokes the previous session's refresh token. Refresh tokens are not
// rotated on use.
package auth
