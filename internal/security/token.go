package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const sessionTokenLen = 32

// NewSessionToken returns a URL-safe random token for session identification.
func NewSessionToken() (string, error) {
	return NewRandomString(sessionTokenLen)
}

// NewRandomString returns a URL-safe base64 string built from n random bytes.
func NewRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
