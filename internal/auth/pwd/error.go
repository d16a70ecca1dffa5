package pwd

import (
	"errors"
	"fmt"
)

var (
	ErrHashingFailed       = errors.New("pwd hashing failed")
	ErrMalformedStoredHash = errors.New("malformed stored password hash")
	ErrPasswordNotMatching = errors.New("password not matching")
	ErrDispatchFailed      = errors.New("pwd dispatch failed")

	ErrNotInitialized     = errors.New("pwd hasher not initialized")
	ErrAlreadyInitialized = errors.New("pwd hasher already initialized")
)

// ErrSchemeNotFound is a malformed stored hash whose tag parsed but names
// no known scheme.
var ErrSchemeNotFound = fmt.Errorf("%w: scheme not found", ErrMalformedStoredHash)
