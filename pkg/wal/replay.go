package wal

import (
	"errors"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// Mutator is the subset of *vecstore.Store replay needs. Defined as an
// interface so tests can replay against a fake without a real Store.
type Mutator interface {
	Add(id uint32, vec []float32, meta []byte, upsert bool) error
	Remove(id uint32) bool
	SetMeta(id uint32, meta []byte) error
}

// Apply replays a single record against store. All three record kinds are
// idempotent by construction (spec.md §4.9): upsert is replace-or-insert,
// remove is a no-op on a missing id, setMeta is a conditional update that
// silently no-ops when id is absent (rather than erroring, since a replayed
// setMeta for an id a later remove already evicted is expected, not
// exceptional).
func Apply(store Mutator, r Record) error {
	switch r.Type {
	case Upsert:
		return store.Add(r.ID, r.Vec, r.Meta, true)
	case Remove:
		store.Remove(r.ID)

		return nil
	case SetMeta:
		if err := store.SetMeta(r.ID, r.Meta); err != nil {
			if errors.Is(err, vecstore.ErrNotFound) {
				return nil
			}

			return err
		}

		return nil
	default:
		return nil
	}
}

// Replay applies every record in order, stopping at the first error.
func Replay(store Mutator, records []Record) error {
	for _, r := range records {
		if err := Apply(store, r); err != nil {
			return err
		}
	}

	return nil
}
