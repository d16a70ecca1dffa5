package pwd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/authkit/internal/cryptox"
	"github.com/dmitrijs2005/authkit/internal/encx"
)

type SchemeID string

const (
	Scheme01 SchemeID = "01"
	Scheme02 SchemeID = "02"

	LatestScheme = Scheme02
)

// scheme is implemented only inside this package; the set is closed.
type scheme interface {
	hash(c ContentToHash) (string, error)
	validate(c ContentToHash, payload string) error
}

type registry struct {
	s01 *scheme01
	s02 *scheme02
}

func (r *registry) get(id SchemeID) (scheme, error) {
	switch id {
	case Scheme01:
		return r.s01, nil
	case Scheme02:
		return r.s02, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrSchemeNotFound, string(id))
	}
}

func checkContent(c ContentToHash) error {
	if len(c.Content) > MaxContentBytes {
		return fmt.Errorf("%w: content is %d bytes, max %d", ErrHashingFailed, len(c.Content), MaxContentBytes)
	}
	return nil
}

// scheme01 is the legacy keyed HMAC-SHA512 scheme.
type scheme01 struct {
	mac *cryptox.MAC
}

func (s *scheme01) hash(c ContentToHash) (string, error) {
	if err := checkContent(c); err != nil {
		return "", err
	}
	sum, err := s.mac.Sum([]byte(c.Content), c.Salt[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return encx.B64uEncode(sum), nil
}

func (s *scheme01) validate(c ContentToHash, payload string) error {
	got, err := s.hash(c)
	if err != nil {
		return err
	}
	if !cryptox.EqualString(got, payload) {
		return ErrPasswordNotMatching
	}
	return nil
}

// scheme02 is argon2id with the pwd key as a pepper. Cost parameters are
// written into the payload and read back on validation, so raising them
// does not break existing hashes.
type scheme02 struct {
	mac    *cryptox.MAC
	params cryptox.Argon2Params
}

func (s *scheme02) derive(c ContentToHash, salt []byte, p cryptox.Argon2Params) ([]byte, error) {
	if err := checkContent(c); err != nil {
		return nil, err
	}
	peppered, err := s.mac.Sum([]byte(c.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	key, err := cryptox.DeriveArgon2id(peppered, salt, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashingFailed, err)
	}
	return key, nil
}

func (s *scheme02) hash(c ContentToHash) (string, error) {
	key, err := s.derive(c, c.Salt[:], s.params)
	if err != nil {
		return "", err
	}
	return encodePHC(phc{params: s.params, salt: c.Salt[:], hash: key}), nil
}

func (s *scheme02) validate(c ContentToHash, payload string) error {
	stored, err := parsePHC(payload)
	if err != nil {
		return err
	}
	key, err := s.derive(c, c.Salt[:], stored.params)
	if err != nil {
		return err
	}
	saltOK := cryptox.Equal(stored.salt, c.Salt[:])
	hashOK := cryptox.Equal(stored.hash, key)
	if !saltOK || !hashOK {
		return ErrPasswordNotMatching
	}
	return nil
}

const phcAlgorithm = "argon2id"

type phc struct {
	params cryptox.Argon2Params
	salt   []byte
	hash   []byte
}

func encodePHC(p phc) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		cryptox.Argon2Version,
		p.params.Memory,
		p.params.Time,
		p.params.Threads,
		encx.B64uEncode(p.salt),
		encx.B64uEncode(p.hash),
	)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedStoredHash}, args...)...)
}

func parsePHC(s string) (*phc, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformed("invalid phc format")
	}
	if parts[1] != phcAlgorithm {
		return nil, malformed("unsupported algorithm %q", parts[1])
	}
	if parts[2] != fmt.Sprintf("v=%d", cryptox.Argon2Version) {
		return nil, malformed("unsupported version %q", parts[2])
	}

	params, err := parsePHCParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := encx.B64uDecode(parts[4])
	if err != nil || len(salt) < cryptox.MinArgon2SaltLen {
		return nil, malformed("invalid salt")
	}
	hash, err := encx.B64uDecode(parts[5])
	if err != nil {
		return nil, malformed("invalid hash")
	}
	params.KeyLen = uint32(len(hash))

	if err := params.Validate(); err != nil {
		return nil, malformed("%v", err)
	}

	return &phc{params: params, salt: salt, hash: hash}, nil
}

// parsePHCParams expects exactly "m=<uint>,t=<uint>,p=<uint>" in that order.
func parsePHCParams(s string) (cryptox.Argon2Params, error) {
	var p cryptox.Argon2Params

	pairs := strings.Split(s, ",")
	if len(pairs) != 3 {
		return p, malformed("invalid parameter format")
	}

	values := make([]uint64, 3)
	for i, name := range []string{"m", "t", "p"} {
		v, ok := strings.CutPrefix(pairs[i], name+"=")
		if !ok {
			return p, malformed("missing parameter %q", name)
		}
		bits := 32
		if name == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return p, malformed("invalid parameter %q", name)
		}
		values[i] = n
	}

	p.Memory = uint32(values[0])
	p.Time = uint32(values[1])
	p.Threads = uint8(values[2])
	return p, nil
}
