package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved claim keys written by the codec. Caller claims with the same
// keys replace the generated values.
const (
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
	ClaimTokenID   = "jti"
)

const (
	algHS256  = "HS256"
	typJWT    = "JWT"
	numTokens = 3
)

// headerJSON is the exact header every token produced here carries.
var headerJSON = []byte(`{"alg":"HS256","typ":"JWT"}`)

// Token verification errors. At the HTTP boundary these collapse to a
// single unauthorised response; the distinction is for tests and logs.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrUnsupportedHeader = errors.New("unsupported token header")
	ErrExpired           = errors.New("token has expired")
)

// Claims is a decoded token payload.
type Claims map[string]any

// String returns the claim as a string. ok is false when the claim is
// missing or not a string.
func (c Claims) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Int64 returns a numeric claim truncated to an integer.
func (c Claims) Int64(key string) (int64, bool) {
	switch v := c[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// TokenCodec signs and verifies compact tokens.
type TokenCodec interface {
	// Sign issues a token carrying claims. A ttl that is zero after
	// truncation to whole seconds produces a token without expiry.
	Sign(claims Claims, secret []byte, ttl time.Duration) (string, error)

	// Verify checks signature, header and expiry, in that order, and
	// returns the payload.
	Verify(token string, secret []byte) (Claims, error)
}

// HS256 is a TokenCodec using HMAC-SHA256. The zero value is ready to use.
type HS256 struct {
	now   func() time.Time
	newID func() string
}

// NewHS256 returns an HS256 codec using the wall clock and random UUID token IDs.
func NewHS256() *HS256 {
	return &HS256{now: time.Now, newID: uuid.NewString}
}

func (c *HS256) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c *HS256) tokenID() string {
	if c.newID == nil {
		return uuid.NewString()
	}
	return c.newID()
}

// Sign implements TokenCodec.
func (c *HS256) Sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	now := c.clock().Unix()

	payload := Claims{ClaimIssuedAt: now}
	if secs := int64(ttl / time.Second); secs != 0 {
		payload[ClaimExpiresAt] = now + secs
	}
	payload[ClaimTokenID] = c.tokenID()
	for k, v := range claims {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding token payload: %w", err)
	}

	signingInput := EncodeSegment(headerJSON) + "." + EncodeSegment(body)
	return signingInput + "." + EncodeSegment(mac(signingInput, secret)), nil
}

// Verify implements TokenCodec.
func (c *HS256) Verify(token string, secret []byte) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != numTokens {
		return nil, ErrMalformedToken
	}
	for _, p := range parts {
		if p == "" {
			return nil, ErrMalformedToken
		}
	}

	// Signature first: nothing past this point is reachable without the secret.
	expected := mac(parts[0]+"."+parts[1], secret)
	presented, err := DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if len(presented) != len(expected) || subtle.ConstantTimeCompare(presented, expected) != 1 {
		return nil, ErrInvalidSignature
	}

	rawHeader, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, ErrMalformedToken
	}
	var header struct {
		Alg string `json:"alg"`
		Typ string `json:"typ"`
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, ErrMalformedToken
	}
	if header.Alg != algHS256 || header.Typ != typJWT {
		return nil, ErrUnsupportedHeader
	}

	claims, err := decodePayload(parts[1])
	if err != nil {
		return nil, err
	}

	if _, present := claims[ClaimExpiresAt]; present {
		exp, ok := claims.Int64(ClaimExpiresAt)
		if !ok {
			return nil, ErrMalformedToken
		}
		if c.clock().Unix() > exp {
			return nil, ErrExpired
		}
	}

	return claims, nil
}

// decodePayload parses the payload segment, keeping numbers exact.
func decodePayload(segment string) (Claims, error) {
	raw, err := DecodeSegment(segment)
	if err != nil {
		return nil, ErrMalformedToken
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var claims Claims
	if err := dec.Decode(&claims); err != nil || claims == nil || dec.More() {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func mac(signingInput string, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(signingInput)) //nolint:errcheck // hash.Hash.Write never fails
	return h.Sum(nil)
}
