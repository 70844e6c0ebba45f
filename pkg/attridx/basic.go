package attridx

import (
	"sort"

	"github.com/trkbt10/vectorlite/pkg/idset"
)

type numEntry struct {
	value float64
	id    uint32
}

// Basic is the attribute-index strategy maintaining a per-key sorted
// (value, id) array for numeric range queries, in addition to equality and
// existence maps (spec.md §4.6).
type Basic struct {
	data      map[uint32]Attrs
	eqMap     map[string]map[valueKey]map[uint32]struct{}
	existsMap map[string]map[uint32]struct{}
	numMap    map[string][]numEntry
	numDirty  map[string]bool
}

// valueKey makes a Scalar hashable for use as a map key.
type valueKey struct {
	kind ScalarKind
	s    string
	i    int64
	f    float64
	b    bool
}

func toValueKey(v Scalar) valueKey {
	return valueKey{kind: v.Kind, s: v.Str, i: v.Int, f: v.Float, b: v.Bool}
}

// NewBasic constructs an empty basic attribute index.
func NewBasic() *Basic {
	return &Basic{
		data:      make(map[uint32]Attrs),
		eqMap:     make(map[string]map[valueKey]map[uint32]struct{}),
		existsMap: make(map[string]map[uint32]struct{}),
		numMap:    make(map[string][]numEntry),
		numDirty:  make(map[string]bool),
	}
}

func (*Basic) Kind() string { return "basic" }

// SetAttrs replaces id's attribute record, fully re-maintaining the inverted
// structures: remove old entries, insert new ones (spec.md §4.6).
func (b *Basic) SetAttrs(id uint32, attrs Attrs) {
	b.Remove(id)

	if attrs == nil {
		return
	}

	b.data[id] = attrs

	for key, values := range attrs {
		if b.existsMap[key] == nil {
			b.existsMap[key] = make(map[uint32]struct{})
		}

		b.existsMap[key][id] = struct{}{}

		for _, v := range values {
			vk := toValueKey(v)

			if b.eqMap[key] == nil {
				b.eqMap[key] = make(map[valueKey]map[uint32]struct{})
			}

			if b.eqMap[key][vk] == nil {
				b.eqMap[key][vk] = make(map[uint32]struct{})
			}

			b.eqMap[key][vk][id] = struct{}{}

			if num, ok := v.Numeric(); ok {
				b.numMap[key] = append(b.numMap[key], numEntry{value: num, id: id})
				b.numDirty[key] = true
			}
		}
	}
}

// Remove drops id's attribute record from every inverted structure.
func (b *Basic) Remove(id uint32) {
	attrs, ok := b.data[id]
	if !ok {
		return
	}

	delete(b.data, id)

	for key, values := range attrs {
		if m := b.existsMap[key]; m != nil {
			delete(m, id)
		}

		for _, v := range values {
			vk := toValueKey(v)
			if m := b.eqMap[key][vk]; m != nil {
				delete(m, id)
			}

			if _, isNum := v.Numeric(); isNum {
				b.numDirty[key] = true // lazily filtered out at next sort/query
			}
		}
	}
}

// Eq returns the set of ids whose key attribute contains value.
func (b *Basic) Eq(key string, value Scalar) (idset.Set, bool) {
	members := b.eqMap[key][toValueKey(value)]

	return idset.FromSlice(setKeys(members)), true
}

// Exists returns the set of ids that have key present.
func (b *Basic) Exists(key string) (idset.Set, bool) {
	return idset.FromSlice(setKeys(b.existsMap[key])), true
}

// Range scans the lazily-sorted (value, id) array for key. Sorting is
// deferred to first range query, amortizing the O(n log n) cost across
// writes between queries (spec.md §4.6).
func (b *Basic) Range(key string, r RangeQuery) (idset.Set, bool) {
	if b.numDirty[key] {
		b.flushRange(key)
	}

	entries := b.numMap[key]

	var ids []uint32

	for _, e := range entries {
		if _, stillPresent := b.data[e.id]; !stillPresent {
			continue
		}

		if r.includes(e.value) {
			ids = append(ids, e.id)
		}
	}

	return idset.FromSlice(ids), true
}

func (b *Basic) flushRange(key string) {
	entries := b.numMap[key]
	live := entries[:0]

	for _, e := range entries {
		for _, v := range b.data[e.id][key] {
			if n, ok := v.Numeric(); ok && n == e.value {
				live = append(live, e)

				break
			}
		}
	}

	sort.Slice(live, func(i, j int) bool { return live[i].value < live[j].value })
	b.numMap[key] = live
	b.numDirty[key] = false
}

// HasAttrs returns id's current attribute record for row-wise evaluation.
func (b *Basic) HasAttrs(id uint32) (Attrs, bool) {
	attrs, ok := b.data[id]

	return attrs, ok
}

func setKeys(m map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(m))
	for id := range m {
		out = append(out, id)
	}

	return out
}
