package vecstore

import (
	"fmt"
	"math"
	"sort"
)

// Store is the in-memory vector table: a dense contiguous column of float32
// rows, a parallel id/meta column, and the id->slot map (spec.md §3).
//
// Store is not safe for concurrent use; callers serialize mutation through
// whatever lock owns the write path (spec.md §5) and take a snapshot for
// concurrent reads.
type Store struct {
	dim    uint32
	metric Metric

	ids   []uint32
	data  []float32 // row-major, len == len(ids)*dim
	metas [][]byte

	pos map[uint32]int // id -> slot

	index Index
}

// New creates an empty store for the given dimension and metric. idx may be
// nil, in which case Search falls back to an exact brute-force scan over the
// columns directly (spec.md §4.3 — brute-force needs no auxiliary
// structure).
func New(dim uint32, metric Metric, idx Index) *Store {
	return &Store{
		dim:    dim,
		metric: metric,
		pos:    make(map[uint32]int),
		index:  idx,
	}
}

// Dim returns the fixed vector dimension.
func (s *Store) Dim() uint32 { return s.dim }

// Metric returns the fixed distance/similarity metric.
func (s *Store) Metric() Metric { return s.metric }

// Size returns the number of live records.
func (s *Store) Size() int { return len(s.ids) }

// Has reports whether id is present.
func (s *Store) Has(id uint32) bool {
	_, ok := s.pos[id]

	return ok
}

// AllIDs returns a snapshot of all live ids in slot order. Implements
// VectorSource.
func (s *Store) AllIDs() []uint32 {
	out := make([]uint32, len(s.ids))
	copy(out, s.ids)

	return out
}

// VectorByID returns the stored (already-normalized, for cosine) vector for
// id. Implements VectorSource.
func (s *Store) VectorByID(id uint32) ([]float32, bool) {
	slot, ok := s.pos[id]
	if !ok {
		return nil, false
	}

	return s.rowAt(slot), true
}

func (s *Store) rowAt(slot int) []float32 {
	start := slot * int(s.dim)

	return s.data[start : start+int(s.dim)]
}

// validateVector checks invariant I3 (length) and rejects NaN/Inf components.
func (s *Store) validateVector(vec []float32) error {
	if uint32(len(vec)) != s.dim {
		return fmt.Errorf("%w: want dim=%d got=%d", ErrDimensionMismatch, s.dim, len(vec))
	}

	for _, x := range vec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return ErrInvalidVector
		}
	}

	return nil
}

// Add inserts or upserts id. On a cosine-metric store the vector is
// L2-normalized in place on the copy stored internally (invariant I2); the
// caller's slice is never mutated. If upsert is false and id already
// exists, returns ErrAlreadyExists.
func (s *Store) Add(id uint32, vec []float32, meta []byte, upsert bool) error {
	if err := s.validateVector(vec); err != nil {
		return fmt.Errorf("id=%d: %w", id, err)
	}

	row := make([]float32, s.dim)
	copy(row, vec)

	if s.metric == Cosine {
		normalize(row)
	}

	if slot, exists := s.pos[id]; exists {
		if !upsert {
			return fmt.Errorf("id=%d: %w", id, ErrAlreadyExists)
		}

		copy(s.rowAt(slot), row)
		s.metas[slot] = meta

		if s.index != nil {
			s.index.Add(id, row)
		}

		return nil
	}

	slot := len(s.ids)
	s.ids = append(s.ids, id)
	s.data = append(s.data, row...)
	s.metas = append(s.metas, meta)
	s.pos[id] = slot

	if s.index != nil {
		s.index.Add(id, row)
	}

	return nil
}

// Remove deletes id via swap-with-last, preserving invariant I1
// (pos[ids[i]]==i). Returns false if id was not present.
func (s *Store) Remove(id uint32) bool {
	slot, ok := s.pos[id]
	if !ok {
		return false
	}

	last := len(s.ids) - 1

	if slot != last {
		lastID := s.ids[last]
		s.ids[slot] = lastID
		copy(s.rowAt(slot), s.rowAt(last))
		s.metas[slot] = s.metas[last]
		s.pos[lastID] = slot
	}

	s.ids = s.ids[:last]
	s.data = s.data[:last*int(s.dim)]
	s.metas = s.metas[:last]
	delete(s.pos, id)

	if s.index != nil {
		s.index.Remove(id)
	}

	return true
}

// Get returns the stored vector and meta for id.
func (s *Store) Get(id uint32) (vec []float32, meta []byte, ok bool) {
	slot, exists := s.pos[id]
	if !exists {
		return nil, nil, false
	}

	row := s.rowAt(slot)
	out := make([]float32, len(row))
	copy(out, row)

	return out, s.metas[slot], true
}

// GetMeta returns only the meta blob for id.
func (s *Store) GetMeta(id uint32) ([]byte, bool) {
	slot, ok := s.pos[id]
	if !ok {
		return nil, false
	}

	return s.metas[slot], true
}

// SetMeta replaces id's meta blob in place. Returns ErrNotFound if absent.
func (s *Store) SetMeta(id uint32, meta []byte) error {
	slot, ok := s.pos[id]
	if !ok {
		return fmt.Errorf("id=%d: %w", id, ErrNotFound)
	}

	s.metas[slot] = meta

	return nil
}

// SetVector replaces id's vector in place (re-normalizing on cosine stores).
// If upsert is true and id is absent, it is inserted with a nil meta.
func (s *Store) SetVector(id uint32, vec []float32, upsert bool) error {
	if err := s.validateVector(vec); err != nil {
		return fmt.Errorf("id=%d: %w", id, err)
	}

	slot, ok := s.pos[id]
	if !ok {
		if !upsert {
			return fmt.Errorf("id=%d: %w", id, ErrNotFound)
		}

		return s.Add(id, vec, nil, true)
	}

	row := make([]float32, s.dim)
	copy(row, vec)

	if s.metric == Cosine {
		normalize(row)
	}

	copy(s.rowAt(slot), row)

	if s.index != nil {
		s.index.Add(id, row)
	}

	return nil
}

// Search performs an unfiltered top-k search, ties broken by smaller id
// first (spec.md §4.2).
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if uint32(len(query)) != s.dim {
		return nil, ErrDimensionMismatch
	}

	if s.index != nil {
		scored := s.index.Search(query, SearchOptions{K: k}, s)

		return s.toHits(scored), nil
	}

	return s.toHits(s.bruteForceScan(query, k, nil, nil)), nil
}

// bruteForceScan is the exact reference scan used directly when no ANN
// artifact is configured, and by pkg/ann's bruteforce strategy.
func (s *Store) bruteForceScan(query []float32, k int, candidateOK func(id uint32) bool, postPred func(id uint32) bool) []IDScore {
	type scored struct {
		id    uint32
		score float32
	}

	results := make([]scored, 0, len(s.ids))

	for i, id := range s.ids {
		if candidateOK != nil && !candidateOK(id) {
			continue
		}

		if postPred != nil && !postPred(id) {
			continue
		}

		results = append(results, scored{id: id, score: s.metric.Score(query, s.rowAt(i))})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}

		return results[i].id < results[j].id
	})

	if k < len(results) {
		results = results[:k]
	}

	out := make([]IDScore, len(results))
	for i, r := range results {
		out[i] = IDScore{ID: r.id, Score: r.score}
	}

	return out
}

func (s *Store) toHits(scored []IDScore) []Hit {
	hits := make([]Hit, len(scored))

	for i, sc := range scored {
		meta, _ := s.GetMeta(sc.ID)
		hits[i] = Hit{ID: sc.ID, Score: sc.Score, Meta: meta}
	}

	return hits
}

// Index returns the configured ANN artifact, or nil for a plain
// brute-force-only store.
func (s *Store) Index() Index { return s.index }

// SetIndex swaps in a new ANN artifact (used after load/rebuild).
func (s *Store) SetIndex(idx Index) { s.index = idx }

// ToHits exposes the hit-assembly helper (id->score list plus meta lookup)
// to callers outside the package, e.g. pkg/search, that compute IDScore
// lists themselves.
func (s *Store) ToHits(scored []IDScore) []Hit { return s.toHits(scored) }

// BruteForceScan exposes the reference scan for filtered brute-force search
// dispatch (pkg/search) without requiring an Index.
func (s *Store) BruteForceScan(query []float32, k int, candidateOK, postPred func(id uint32) bool) []IDScore {
	return s.bruteForceScan(query, k, candidateOK, postPred)
}

// RowAt exposes the slot's vector by physical position, for callers (e.g.
// ANN rebuild) that iterate slots directly rather than by id.
func (s *Store) RowAt(slot int) []float32 { return s.rowAt(slot) }

// IDAt returns the id stored at a physical slot.
func (s *Store) IDAt(slot int) uint32 { return s.ids[slot] }
