package vectorlite

import "github.com/trkbt10/vectorlite/pkg/ann"

// Stats is read-only introspection into a collection's current state: size,
// dimension, strategy, and the rebuild/retrain thresholds the HNSW and IVF
// strategies track internally (a supplemented feature — spec.md §9 leaves
// the exact tombstone/fragmentation thresholds an open question; exposing
// the live ratio lets a host watch where a collection sits relative to the
// chosen threshold instead of guessing blind).
type Stats struct {
	Count    uint32
	Dim      uint32
	Metric   string
	Strategy Strategy

	// TombstoneRatio is populated only for the hnsw strategy.
	TombstoneRatio float64

	// FragmentationRatio is populated only for the ivf strategy.
	FragmentationRatio float64
}

// Stats reports the collection's current introspection snapshot.
func (c *Client) Stats() Stats {
	s := Stats{
		Count:    c.Size(),
		Dim:      c.store.Dim(),
		Metric:   c.store.Metric().String(),
		Strategy: c.cfg.Database.Strategy,
	}

	switch idx := c.store.Index().(type) {
	case *ann.HNSW:
		s.TombstoneRatio = idx.TombstoneRatio()
	case *ann.IVF:
		s.FragmentationRatio = idx.FragmentationRatio()
	}

	return s
}
