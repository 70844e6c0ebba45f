package attridx

import "github.com/trkbt10/vectorlite/pkg/idset"

// Bitmap is the attribute-index strategy that omits range support: Range
// always returns "undefined" so the query planner falls back to a callback
// scan (spec.md §4.6, §9 open question — bitmap semantics are intentionally
// not extended beyond what the source behavior implies).
type Bitmap struct {
	data      map[uint32]Attrs
	eqMap     map[string]map[valueKey]map[uint32]struct{}
	existsMap map[string]map[uint32]struct{}
}

// NewBitmap constructs an empty bitmap attribute index.
func NewBitmap() *Bitmap {
	return &Bitmap{
		data:      make(map[uint32]Attrs),
		eqMap:     make(map[string]map[valueKey]map[uint32]struct{}),
		existsMap: make(map[string]map[uint32]struct{}),
	}
}

func (*Bitmap) Kind() string { return "bitmap" }

func (b *Bitmap) SetAttrs(id uint32, attrs Attrs) {
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
		}
	}
}

func (b *Bitmap) Remove(id uint32) {
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
			if m := b.eqMap[key][toValueKey(v)]; m != nil {
				delete(m, id)
			}
		}
	}
}

func (b *Bitmap) Eq(key string, value Scalar) (idset.Set, bool) {
	return idset.FromSlice(setKeys(b.eqMap[key][toValueKey(value)])), true
}

func (b *Bitmap) Exists(key string) (idset.Set, bool) {
	return idset.FromSlice(setKeys(b.existsMap[key])), true
}

// Range always returns "undefined" — the bitmap strategy carries no
// numMap (spec.md §4.6).
func (b *Bitmap) Range(string, RangeQuery) (idset.Set, bool) {
	return idset.Set{}, false
}

func (b *Bitmap) HasAttrs(id uint32) (Attrs, bool) {
	attrs, ok := b.data[id]

	return attrs, ok
}
