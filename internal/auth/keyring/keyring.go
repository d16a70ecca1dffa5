// Package keyring holds the process secrets: the password pepper key and
// the token signing key. Keys are resolved once at startup, validated, and
// installed into a write-once cell.
package keyring

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dmitrijs2005/authkit/internal/common"
	"github.com/dmitrijs2005/authkit/internal/cryptox"
	"github.com/dmitrijs2005/authkit/internal/encx"
)

// GeneratedKeyLen is the size of keys produced by Generate.
const GeneratedKeyLen = 64

var (
	ErrInvalidKey         = errors.New("invalid key")
	ErrNotInitialized     = errors.New("keyring not initialized")
	ErrAlreadyInitialized = errors.New("keyring already initialized")
)

type Keyring struct {
	PwdKey   []byte
	TokenKey []byte
}

// Validate checks that both keys can key the HMAC primitive.
func (k *Keyring) Validate() error {
	if _, err := cryptox.NewMAC(k.PwdKey); err != nil {
		return fmt.Errorf("%w: pwd key: %w", ErrInvalidKey, err)
	}
	if _, err := cryptox.NewMAC(k.TokenKey); err != nil {
		return fmt.Errorf("%w: token key: %w", ErrInvalidKey, err)
	}
	return nil
}

// FromEncoded decodes base64url keys and validates them.
func FromEncoded(pwdKey, tokenKey string) (*Keyring, error) {
	pk, err := encx.B64uDecode(pwdKey)
	if err != nil {
		return nil, fmt.Errorf("%w: pwd key: %w", ErrInvalidKey, err)
	}
	tk, err := encx.B64uDecode(tokenKey)
	if err != nil {
		return nil, fmt.Errorf("%w: token key: %w", ErrInvalidKey, err)
	}

	k := &Keyring{PwdKey: pk, TokenKey: tk}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// GenerateKey returns a random key encoded as base64url.
func GenerateKey() string {
	return encx.B64uEncode(common.GenerateRandByteArray(GeneratedKeyLen))
}

var current atomic.Pointer[Keyring]

// Init validates k and installs it as the process keyring. It succeeds
// exactly once.
func Init(k *Keyring) error {
	if k == nil {
		return ErrNotInitialized
	}
	if err := k.Validate(); err != nil {
		return err
	}
	if !current.CompareAndSwap(nil, k) {
		return ErrAlreadyInitialized
	}
	return nil
}

func Get() (*Keyring, error) {
	k := current.Load()
	if k == nil {
		return nil, ErrNotInitialized
	}
	return k, nil
}
