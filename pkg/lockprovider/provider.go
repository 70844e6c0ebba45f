// Package lockprovider implements the named TTL-based exclusion primitive
// from spec.md §4.13: acquire/release/renew against a named lock, with an
// in-process implementation for single-process hosts and a file-based
// implementation (grounded on the teacher's flock-based file lock) for
// multi-process hosts sharing a filesystem.
package lockprovider

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned by Acquire when the named lock is currently held by
// another holder and has not expired.
var ErrLocked = errors.New("lockprovider: locked")

// NewHolderID generates a default per-process holder identity. Two
// processes racing for the same named lock must never share a holder id —
// Acquire treats a matching holderID as "still mine" and lets the caller
// re-acquire the lock even while it is still live, so a shared static default
// would defeat the exclusion the TTL/epoch scheme is meant to provide.
func NewHolderID() string {
	return "vectorlite-" + uuid.NewString()
}

// Provider is the pluggable named-lock interface (spec.md §4.13). Acquire
// returns the new epoch on success; epoch increases monotonically per
// successful acquire and is threaded through Release/Renew so a stale
// holder cannot release or renew a lock someone else has since reacquired.
type Provider interface {
	Acquire(name string, ttl time.Duration, holderID string) (epoch uint64, err error)
	Release(name string, epoch uint64, holderID string) error
	Renew(name string, epoch uint64, ttl time.Duration, holderID string) error
}
