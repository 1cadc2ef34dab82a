// Package digest computes the content identity of serialized component text.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// ErrCrypto indicates the hash function itself failed.
var ErrCrypto = errors.New("digest computation failed")

// CryptoError wraps an underlying hashing failure.
// Wraps ErrCrypto for errors.Is() compatibility.
type CryptoError struct {
	Err error
}

func (e *CryptoError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return ErrCrypto.Error()
	}
	return fmt.Sprintf("%s: %v", ErrCrypto.Error(), e.Err)
}

func (e *CryptoError) Unwrap() error { return ErrCrypto }

// Length is the number of hex characters in a digest.
const Length = 64

var pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Compute returns the lowercase hex SHA-256 of the UTF-8 bytes of text.
// Byte-identical texts always produce the same digest.
func Compute(text string) (string, error) {
	h := sha256.New()
	if _, err := h.Write([]byte(text)); err != nil {
		return "", &CryptoError{Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether d is a well-formed digest.
func Valid(d string) bool {
	return pattern.MatchString(d)
}

// Short returns the first eight characters of a digest, used for derived names.
func Short(d string) string {
	if len(d) < 8 {
		return d
	}
	return d[:8]
}
