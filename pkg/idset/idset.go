// Package idset provides the candidate-id-set algebra used by the attribute
// index, the filter expression evaluator, and the ANN search dispatcher
// (spec.md §4.6-§4.8). A Set either holds a finite collection of ids or
// represents the universal set ("no opinion" / "no preselection
// restriction") — the pair (candidateSet | ∞, postPredicate?) from §4.7.
package idset

// Set is a finite set of u32 ids, or the universal set when Infinite is
// true. The zero value is the empty finite set.
type Set struct {
	Infinite bool
	ids      map[uint32]struct{}
}

// Universe returns the infinite/universal set ("no opinion").
func Universe() Set {
	return Set{Infinite: true}
}

// Empty returns the empty finite set.
func Empty() Set {
	return Set{ids: map[uint32]struct{}{}}
}

// FromSlice builds a finite set from a slice of ids.
func FromSlice(ids []uint32) Set {
	s := Set{ids: make(map[uint32]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}

	return s
}

// Contains reports whether id is a member. The universal set contains
// everything.
func (s Set) Contains(id uint32) bool {
	if s.Infinite {
		return true
	}

	_, ok := s.ids[id]

	return ok
}

// Len returns the number of finite members. Calling Len on the universal
// set returns 0 by convention; check Infinite first.
func (s Set) Len() int {
	return len(s.ids)
}

// Slice returns the finite members in unspecified order. Returns nil for
// the universal set.
func (s Set) Slice() []uint32 {
	if s.Infinite {
		return nil
	}

	out := make([]uint32, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}

	return out
}

// Add inserts id into a finite set. No-op on the universal set.
func (s Set) Add(id uint32) {
	if s.Infinite {
		return
	}

	s.ids[id] = struct{}{}
}

// Intersect returns a ∩ b. The universal set is the identity element.
func Intersect(a, b Set) Set {
	if a.Infinite {
		return b
	}

	if b.Infinite {
		return a
	}

	small, big := a, b
	if len(small.ids) > len(big.ids) {
		small, big = big, small
	}

	out := Empty()
	for id := range small.ids {
		if _, ok := big.ids[id]; ok {
			out.ids[id] = struct{}{}
		}
	}

	return out
}

// Union returns a ∪ b. The universal set absorbs everything.
func Union(a, b Set) Set {
	if a.Infinite || b.Infinite {
		return Universe()
	}

	out := Empty()
	for id := range a.ids {
		out.ids[id] = struct{}{}
	}

	for id := range b.ids {
		out.ids[id] = struct{}{}
	}

	return out
}

// UnionWithSupport merges multiple sets and keeps only ids whose support
// count (number of input sets containing them) is >= min. This implements
// Any(clauses, min) from spec.md §4.7. Any input set that is Infinite is
// treated as containing every id in universe (the ids slice passed in);
// this is only meaningful when the overall expression is bounded by a
// finite universe elsewhere (a top-level Any of all-infinite clauses
// degenerates to Infinite).
func UnionWithSupport(sets []Set, min int, universe []uint32) Set {
	if min <= 1 {
		out := Empty()
		for _, s := range sets {
			out = Union(out, s)
		}

		return out
	}

	allInfinite := true

	for _, s := range sets {
		if !s.Infinite {
			allInfinite = false

			break
		}
	}

	if allInfinite {
		return Universe()
	}

	support := make(map[uint32]int)

	for _, s := range sets {
		if s.Infinite {
			for _, id := range universe {
				support[id]++
			}

			continue
		}

		for id := range s.ids {
			support[id]++
		}
	}

	out := Empty()

	for id, count := range support {
		if count >= min {
			out.ids[id] = struct{}{}
		}
	}

	return out
}

// Complement returns universe \ s. s must be finite or universe itself
// (complement of the universal set is empty).
func Complement(s Set, universe []uint32) Set {
	if s.Infinite {
		return Empty()
	}

	out := Empty()

	for _, id := range universe {
		if _, ok := s.ids[id]; !ok {
			out.ids[id] = struct{}{}
		}
	}

	return out
}
