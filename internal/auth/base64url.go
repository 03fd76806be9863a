package auth

import (
	"encoding/base64"
	"strings"
)

// EncodeSegment encodes b with the URL-safe base64 alphabet and no padding.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// segmentEncoding rejects non-zero trailing bits, so each byte sequence has
// exactly one accepted encoding.
var segmentEncoding = base64.RawURLEncoding.Strict()

// DecodeSegment reverses EncodeSegment. Trailing '=' padding is tolerated.
func DecodeSegment(s string) ([]byte, error) {
	return segmentEncoding.DecodeString(strings.TrimRight(s, "="))
}
