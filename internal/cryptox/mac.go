// Package cryptox wraps the cryptographic primitives used by the auth
// packages: a keyed HMAC-SHA512, argon2id key derivation and a fixed-time
// comparison.
package cryptox

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLen is the shortest secret accepted for HMAC-SHA512 keys.
const MinKeyLen = 32

var (
	ErrKeyInit = errors.New("fail to initialize mac key")
	ErrMAC     = errors.New("fail to compute mac")
)

var hs512 = jwt.SigningMethodHS512

// MAC is an HMAC-SHA512 keyed with a process secret. It is immutable and
// safe for concurrent use.
type MAC struct {
	key []byte
}

func NewMAC(key []byte) (*MAC, error) {
	if len(key) < MinKeyLen {
		return nil, fmt.Errorf("%w: key is %d bytes, need at least %d", ErrKeyInit, len(key), MinKeyLen)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &MAC{key: k}, nil
}

// Sum returns the MAC of the concatenation of parts.
func (m *MAC) Sum(parts ...[]byte) ([]byte, error) {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	msg := make([]byte, 0, n)
	for _, p := range parts {
		msg = append(msg, p...)
	}

	sig, err := hs512.Sign(string(msg), m.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMAC, err)
	}
	return sig, nil
}

// Equal compares a and b in time that depends only on their lengths.
// Every hash and signature comparison must go through it.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EqualString is Equal for already encoded values.
func EqualString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
