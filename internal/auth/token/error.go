package token

import "errors"

var (
	// malformed input
	ErrInvalidFormat     = errors.New("token invalid format")
	ErrCannotDecodeIdent = errors.New("token cannot decode ident")
	ErrCannotDecodeExp   = errors.New("token cannot decode exp")
	ErrExpNotISO         = errors.New("token exp not iso")

	// verification
	ErrSignatureNotMatching = errors.New("token signature not matching")
	ErrExpired              = errors.New("token expired")
	ErrSaltLookup           = errors.New("token salt lookup failed")

	// service level
	ErrKeyInit       = errors.New("token key init failed")
	ErrClockOverflow = errors.New("token expiration out of range")
)
