// Package token issues opaque, URL-safe capability tokens.
package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
)

// Size is the number of random bytes behind every token.
const Size = 32

// Reader is the entropy source; tests may replace it.
var Reader = rand.Reader

// New returns a fresh base64url encoded token backed by Size random bytes.
func New() (string, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Equal compares two tokens in constant time. Empty tokens never match.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
