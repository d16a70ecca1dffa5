package cryptox

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Bounds accepted for argon2id parameters, both when hashing and when
// reading parameters back from a stored hash.
const (
	MinArgon2Memory  uint32 = 8
	MaxArgon2Memory  uint32 = 4 * 1024 * 1024
	MinArgon2Time    uint32 = 1
	MaxArgon2Time    uint32 = 100
	MinArgon2Threads uint8  = 1
	MinArgon2KeyLen  uint32 = 16
	MaxArgon2KeyLen  uint32 = 1024
	MinArgon2SaltLen        = 8
)

var ErrArgon2Params = errors.New("invalid argon2 parameters")

// Argon2Params are argon2id cost parameters. Memory is in KiB.
type Argon2Params struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultArgon2Params follows the OWASP minimum for argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:  19 * 1024,
	Time:    2,
	Threads: 1,
	KeyLen:  32,
}

func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < MinArgon2Memory || p.Memory > MaxArgon2Memory:
		return fmt.Errorf("%w: memory %d", ErrArgon2Params, p.Memory)
	case p.Time < MinArgon2Time || p.Time > MaxArgon2Time:
		return fmt.Errorf("%w: time %d", ErrArgon2Params, p.Time)
	case p.Threads < MinArgon2Threads:
		return fmt.Errorf("%w: threads %d", ErrArgon2Params, p.Threads)
	case p.KeyLen < MinArgon2KeyLen || p.KeyLen > MaxArgon2KeyLen:
		return fmt.Errorf("%w: key length %d", ErrArgon2Params, p.KeyLen)
	}
	return nil
}

// DeriveArgon2id runs argon2id over secret and salt. Parameters are
// validated first since argon2.IDKey panics on some degenerate inputs.
func DeriveArgon2id(secret, salt []byte, p Argon2Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) < MinArgon2SaltLen {
		return nil, fmt.Errorf("%w: salt is %d bytes", ErrArgon2Params, len(salt))
	}
	return argon2.IDKey(secret, salt, p.Time, p.Memory, p.Threads, p.KeyLen), nil
}

// Argon2Version is the argon2 revision produced by DeriveArgon2id.
const Argon2Version = argon2.Version
