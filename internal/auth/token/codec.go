package token

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkit/internal/cryptox"
	"github.com/dmitrijs2005/authkit/internal/encx"
	"github.com/dmitrijs2005/authkit/internal/timex"
	"github.com/google/uuid"
)

// SaltLookup returns the current token salt of a subject.
type SaltLookup func(ctx context.Context, subjectID string) (uuid.UUID, error)

// Codec signs and verifies tokens with one secret key. It is immutable
// and safe for concurrent use.
type Codec struct {
	mac *cryptox.MAC
	now func() time.Time
}

type Option func(*Codec)

// WithClock replaces the wall clock used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	mac, err := cryptox.NewMAC(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyInit, err)
	}

	c := &Codec{mac: mac, now: timex.NowUTC}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue creates a token for subjectID valid for ttl from now.
func (c *Codec) Issue(subjectID string, salt uuid.UUID, ttl time.Duration) (string, error) {
	exp, err := timex.AddChecked(c.now().UTC(), ttl)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClockOverflow, err)
	}

	t := &Token{
		SubjectID: subjectID,
		ExpiresAt: exp,
		identSeg:  encx.B64uEncodeString(subjectID),
		expSeg:    encx.B64uEncodeString(timex.FormatRFC3339(exp)),
	}

	sig, err := c.sign(t, salt)
	if err != nil {
		return "", err
	}
	t.Signature = sig
	t.sigSeg = encx.B64uEncode(sig)

	return t.String(), nil
}

// Verify checks a token against a known subject salt.
func (c *Codec) Verify(tokenString string, salt uuid.UUID) (*Token, error) {
	t, err := parse(tokenString)
	if err != nil {
		return nil, err
	}
	if err := c.verify(t, salt); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseAndVerify checks a token, resolving the subject salt through lookup.
func (c *Codec) ParseAndVerify(ctx context.Context, tokenString string, lookup SaltLookup) (*Token, error) {
	t, err := parse(tokenString)
	if err != nil {
		return nil, err
	}

	salt, err := lookup(ctx, t.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSaltLookup, err)
	}

	if err := c.verify(t, salt); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Codec) verify(t *Token, salt uuid.UUID) error {
	expected, err := c.sign(t, salt)
	if err != nil {
		return err
	}

	if !cryptox.EqualString(encx.B64uEncode(expected), t.sigSeg) {
		return ErrSignatureNotMatching
	}

	// a token is still valid at exactly ExpiresAt
	if c.now().After(t.ExpiresAt) {
		return fmt.Errorf("%w: at %s", ErrExpired, timex.FormatRFC3339(t.ExpiresAt))
	}

	return nil
}

func (c *Codec) sign(t *Token, salt uuid.UUID) ([]byte, error) {
	sig, err := c.mac.Sum([]byte(t.signedContent()), salt[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyInit, err)
	}
	return sig, nil
}

// Issue is Codec.Issue with a one-off codec for key.
func Issue(subjectID string, salt uuid.UUID, key []byte, ttl time.Duration) (string, error) {
	c, err := NewCodec(key)
	if err != nil {
		return "", err
	}
	return c.Issue(subjectID, salt, ttl)
}

// ParseAndVerify is Codec.ParseAndVerify with a one-off codec for key.
// It returns the verified subject id.
func ParseAndVerify(ctx context.Context, tokenString string, lookup SaltLookup, key []byte) (string, error) {
	c, err := NewCodec(key)
	if err != nil {
		return "", err
	}
	t, err := c.ParseAndVerify(ctx, tokenString, lookup)
	if err != nil {
		return "", err
	}
	return t.SubjectID, nil
}
