package repository

import (
	"errors"

	"github.com/okian/starsim/internal/domain/types"
)

// Sentinel kinds for repository errors.
var (
	// ErrNotFound is the shared not-found kind, re-exported for callers that
	// only import the repository.
	ErrNotFound = types.ErrNotFound
	ErrClosed   = errors.New("repository closed")
	ErrFixture  = errors.New("invalid snapshot fixture")
)
