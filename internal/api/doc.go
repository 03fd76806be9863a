// Package api implements the HTTP surface of the service desk core.
//
// This package provides:
//   - Credential endpoints: register, login, refresh and logout under /auth
//   - The bearer-token auth gate and role-based permission checks
//   - Sample public and protected routes, plus /users/me
//   - A paginated audit log query at /audit (admin only)
//   - Dependency health at /health and Prometheus metrics at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Access tokens travel in the Authorization header as "Bearer <token>".
// Every gate rejection returns the same 401 body, whether the header was
// missing, malformed, expired or forged. Login failures for unknown users
// and wrong passwords are likewise indistinguishable.
//
// # Auditing
//
// Auth outcomes are handed to an audit.Recorder, which persists them off
// the request path. A full audit queue drops entries rather than slowing
// requests; the drop count is exported as servicedesk_audit_dropped_total.
package api
