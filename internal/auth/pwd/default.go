package pwd

import (
	"context"
	"sync/atomic"
)

var defaultHasher atomic.Pointer[Hasher]

// Init installs the process-wide Hasher used by the package-level Hash and
// Validate. It succeeds exactly once.
func Init(h *Hasher) error {
	if h == nil {
		return ErrNotInitialized
	}
	if !defaultHasher.CompareAndSwap(nil, h) {
		return ErrAlreadyInitialized
	}
	return nil
}

func Default() (*Hasher, error) {
	h := defaultHasher.Load()
	if h == nil {
		return nil, ErrNotInitialized
	}
	return h, nil
}

func Hash(ctx context.Context, c ContentToHash) (string, error) {
	h, err := Default()
	if err != nil {
		return "", err
	}
	return h.Hash(ctx, c)
}

func Validate(ctx context.Context, c ContentToHash, stored string) (SchemeStatus, error) {
	h, err := Default()
	if err != nil {
		return StatusOK, err
	}
	return h.Validate(ctx, c, stored)
}
