// Package token issues and verifies stateless bearer tokens of the form
//
//	b64u(subject_id).b64u(expires_at).b64u(signature)
//
// expires_at is RFC3339 in UTC and the signature is HMAC-SHA512 over the
// first two encoded segments joined by "." followed by the subject's salt.
// Rotating the salt revokes every token issued for that subject.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkit/internal/encx"
	"github.com/dmitrijs2005/authkit/internal/timex"
)

const separator = "."

type Token struct {
	SubjectID string
	ExpiresAt time.Time
	Signature []byte

	// segments as received, signatures are computed over these
	identSeg string
	expSeg   string
	sigSeg   string
}

// String returns the wire form of t.
func (t *Token) String() string {
	return t.identSeg + separator + t.expSeg + separator + t.sigSeg
}

func (t *Token) signedContent() string {
	return t.identSeg + separator + t.expSeg
}

// Parse decodes a token string without verifying it.
func Parse(s string) (*Token, error) {
	t, err := parse(s)
	if err != nil {
		return nil, err
	}
	if t.Signature == nil {
		return nil, fmt.Errorf("%w: cannot decode signature", ErrInvalidFormat)
	}
	return t, nil
}

// parse decodes ident and exp. An undecodable signature segment leaves
// Signature nil; verification compares encoded segments and rejects it as
// a mismatch.
func parse(s string) (*Token, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidFormat, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment", ErrInvalidFormat)
		}
	}

	ident, err := encx.B64uDecodeToString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotDecodeIdent, err)
	}

	expStr, err := encx.B64uDecodeToString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotDecodeExp, err)
	}
	exp, err := timex.ParseRFC3339(expStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExpNotISO, err)
	}

	sig, err := encx.B64uDecode(parts[2])
	if err != nil {
		sig = nil
	}

	return &Token{
		SubjectID: ident,
		ExpiresAt: exp,
		Signature: sig,
		identSeg:  parts[0],
		expSeg:    parts[1],
		sigSeg:    parts[2],
	}, nil
}
