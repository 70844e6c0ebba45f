package vecstore

import "github.com/trkbt10/vectorlite/pkg/idset"

// SeedStrategy selects how a hard/soft filtered HNSW search draws its initial
// frontier from a candidate set (spec.md §4.8).
type SeedStrategy uint8

const (
	SeedRandom SeedStrategy = iota
	SeedNearestCentroid
)

// FilterMode selects whether a filtered search restricts graph traversal to
// the candidate set (Hard) or allows bounded bridging beyond it (Soft).
type FilterMode uint8

const (
	ModeHard FilterMode = iota
	ModeSoft
)

// EarlyStop configures the early-termination margin for filtered search.
type EarlyStop struct {
	Enabled bool
	Margin  float32
}

// SearchOptions parametrizes a single Index.Search call. Candidates holds the
// result of evaluating a filter expression (idset.Universe() for "no
// restriction"); PostPredicate, if non-nil, is applied row-wise to ids that
// passed the indexed preselection but need secondary confirmation (spec.md
// §4.7 "post-filter clauses").
type SearchOptions struct {
	K             int
	Candidates    idset.Set
	PostPredicate func(id uint32) bool
	Mode          FilterMode
	BridgeBudget  int
	Seeds         int
	SeedStrategy  SeedStrategy
	AdaptiveEf    bool
	EarlyStop     EarlyStop
}

// IDScore is an (id, score) pair produced internally by an Index before
// metadata is attached by the caller.
type IDScore struct {
	ID    uint32
	Score float32
}

// VectorSource is the read-only view of the vector table an Index needs to
// score candidates: a stable-id-keyed vector lookup. Implemented by *Store.
type VectorSource interface {
	VectorByID(id uint32) ([]float32, bool)
	Metric() Metric
	Dim() uint32
	AllIDs() []uint32
}

// Index is the pluggable ANN artifact interface implemented by the
// bruteforce, HNSW, and IVF strategies (spec.md §4.3-§4.5). It is keyed by
// the caller-assigned stable vector id, never by physical slot — slots are
// swap-compacted on delete (invariant I4) while ids remain stable for the
// lifetime of a record, and a graph/inverted-list structure that cached slot
// indices would be silently invalidated by every compaction.
type Index interface {
	// Kind identifies the strategy for catalog/manifest bookkeeping.
	Kind() string

	// Add inserts or updates id's position in the artifact. vec is already
	// normalized (for cosine stores) by the caller.
	Add(id uint32, vec []float32)

	// Remove tombstones or physically deletes id from the artifact.
	Remove(id uint32)

	// Search returns up to opts.K candidates ranked by descending score,
	// honoring opts.Candidates/PostPredicate/Mode. src is the backing vector
	// table, used to score or re-score candidates.
	Search(query []float32, opts SearchOptions, src VectorSource) []IDScore

	// NeedsRebuild reports whether accumulated tombstones/fragmentation has
	// crossed the strategy's rebuild threshold (spec.md §4.4, §4.5).
	NeedsRebuild() bool

	// Rebuild reconstructs the artifact from scratch off of src, in id
	// order. Used after load (and WAL replay) when NeedsRebuild() reports
	// true, and before a save when NeedsRebuild() trips.
	Rebuild(src VectorSource)

	// Size returns the number of live (non-tombstoned) entries.
	Size() int
}
