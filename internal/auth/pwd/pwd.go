package pwd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkit/internal/cryptox"
	"github.com/dmitrijs2005/authkit/internal/workerpool"
	"github.com/google/uuid"
)

// MaxContentBytes is the longest clear-text accepted for hashing.
const MaxContentBytes = 1024

const (
	tagPrefix    = "#_"
	tagSeparator = "_#"
)

// ContentToHash is a clear-text secret with its per-user salt.
type ContentToHash struct {
	Content string
	Salt    uuid.UUID
}

type SchemeStatus int

const (
	StatusOK SchemeStatus = iota
	StatusOutdated
)

func (s SchemeStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutdated:
		return "outdated"
	default:
		return fmt.Sprintf("SchemeStatus(%d)", int(s))
	}
}

// Hasher hashes and validates passwords. It is immutable once built and
// safe for concurrent use.
type Hasher struct {
	reg  registry
	pool *workerpool.Pool
}

type Option func(*options)

type options struct {
	argon2 cryptox.Argon2Params
}

// WithArgon2Params overrides the cost parameters of new scheme 02 hashes.
// Invalid parameters are not rejected here; Hash reports them as
// ErrHashingFailed.
func WithArgon2Params(p cryptox.Argon2Params) Option {
	return func(o *options) { o.argon2 = p }
}

// NewHasher builds a Hasher keyed with the process password key. Jobs are
// dispatched onto pool, which the caller owns and closes.
func NewHasher(key []byte, pool *workerpool.Pool, opts ...Option) (*Hasher, error) {
	if pool == nil {
		return nil, errors.New("pwd: nil worker pool")
	}

	o := options{argon2: cryptox.DefaultArgon2Params}
	for _, opt := range opts {
		opt(&o)
	}

	mac, err := cryptox.NewMAC(key)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		reg: registry{
			s01: &scheme01{mac: mac},
			s02: &scheme02{mac: mac, params: o.argon2},
		},
		pool: pool,
	}, nil
}

// Hash hashes c with the latest scheme and returns the tagged stored hash.
func (h *Hasher) Hash(ctx context.Context, c ContentToHash) (string, error) {
	return h.hashWith(ctx, LatestScheme, c)
}

func (h *Hasher) hashWith(ctx context.Context, id SchemeID, c ContentToHash) (string, error) {
	s, err := h.reg.get(id)
	if err != nil {
		return "", err
	}

	payload, err := workerpool.Do(ctx, h.pool, func() (string, error) {
		return s.hash(c)
	})
	if err != nil {
		return "", h.jobError(err)
	}

	return formatStoredHash(id, payload), nil
}

// Validate checks c against stored using the scheme named in its tag.
func (h *Hasher) Validate(ctx context.Context, c ContentToHash, stored string) (SchemeStatus, error) {
	id, payload, err := parseStoredHash(stored)
	if err != nil {
		return StatusOK, err
	}

	s, err := h.reg.get(id)
	if err != nil {
		return StatusOK, err
	}

	_, err = workerpool.Do(ctx, h.pool, func() (struct{}, error) {
		return struct{}{}, s.validate(c, payload)
	})
	if err != nil {
		return StatusOK, h.jobError(err)
	}

	if id == LatestScheme {
		return StatusOK, nil
	}
	return StatusOutdated, nil
}

func (h *Hasher) jobError(err error) error {
	switch {
	case errors.Is(err, workerpool.ErrDispatchFailed):
		return fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	case errors.Is(err, workerpool.ErrJobPanicked):
		return fmt.Errorf("%w: %w", ErrHashingFailed, err)
	default:
		return err
	}
}

func formatStoredHash(id SchemeID, payload string) string {
	return tagPrefix + string(id) + tagSeparator + payload
}

// parseStoredHash splits "#_<id>_#<payload>". The id may not contain '_'
// or '#', so the first separator is the only valid split point.
func parseStoredHash(s string) (SchemeID, string, error) {
	rest, ok := strings.CutPrefix(s, tagPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: missing tag prefix", ErrMalformedStoredHash)
	}

	id, payload, ok := strings.Cut(rest, tagSeparator)
	if !ok {
		return "", "", fmt.Errorf("%w: missing tag separator", ErrMalformedStoredHash)
	}
	if id == "" || strings.ContainsAny(id, "_#") {
		return "", "", fmt.Errorf("%w: invalid scheme id", ErrMalformedStoredHash)
	}
	if payload == "" {
		return "", "", fmt.Errorf("%w: empty payload", ErrMalformedStoredHash)
	}

	return SchemeID(id), payload, nil
}

// SchemeOf returns the scheme id tagged on stored.
func SchemeOf(stored string) (SchemeID, error) {
	id, _, err := parseStoredHash(stored)
	return id, err
}

// NewSalt returns a random salt for a new password or token.
func NewSalt() (uuid.UUID, error) {
	return uuid.NewRandom()
}
