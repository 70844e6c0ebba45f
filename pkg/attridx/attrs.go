// Package attridx implements the two attribute-index strategies named in
// spec.md §4.6: a basic strategy with sorted-array range support, and a
// bitmap strategy that omits range support.
package attridx

import "github.com/trkbt10/vectorlite/pkg/idset"

// ScalarKind tags the dynamic type carried by a Scalar.
type ScalarKind uint8

const (
	KindString ScalarKind = iota
	KindInt
	KindFloat
	KindBool
)

// Scalar is one attribute value: string, int, float, or bool (spec.md §3).
type Scalar struct {
	Kind  ScalarKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

func StringScalar(s string) Scalar { return Scalar{Kind: KindString, Str: s} }
func IntScalar(i int64) Scalar     { return Scalar{Kind: KindInt, Int: i} }
func FloatScalar(f float64) Scalar { return Scalar{Kind: KindFloat, Float: f} }
func BoolScalar(b bool) Scalar     { return Scalar{Kind: KindBool, Bool: b} }

// Numeric reports whether the scalar participates in range comparisons, and
// its numeric value if so.
func (s Scalar) Numeric() (float64, bool) {
	switch s.Kind {
	case KindInt:
		return float64(s.Int), true
	case KindFloat:
		return s.Float, true
	default:
		return 0, false
	}
}

// Equal reports value equality across matching kinds.
func (s Scalar) Equal(o Scalar) bool {
	if s.Kind != o.Kind {
		return false
	}

	switch s.Kind {
	case KindString:
		return s.Str == o.Str
	case KindInt:
		return s.Int == o.Int
	case KindFloat:
		return s.Float == o.Float
	case KindBool:
		return s.Bool == o.Bool
	default:
		return false
	}
}

// Attrs is one record's attribute map. A key missing from the map means
// "null"/absent; a key present with multiple values means a multi-valued
// array (spec.md §3 attribute record).
type Attrs map[string][]Scalar

// RangeQuery is a mixed exclusive/inclusive numeric bound (spec.md §4.6).
type RangeQuery struct {
	HasGT  bool
	GT     float64
	HasGTE bool
	GTE    float64
	HasLT  bool
	LT     float64
	HasLTE bool
	LTE    float64
}

func (r RangeQuery) includes(v float64) bool {
	if r.HasGT && !(v > r.GT) {
		return false
	}

	if r.HasGTE && !(v >= r.GTE) {
		return false
	}

	if r.HasLT && !(v < r.LT) {
		return false
	}

	if r.HasLTE && !(v <= r.LTE) {
		return false
	}

	return true
}

// Index is implemented by the Basic and Bitmap strategies. Preselection
// primitives return (set, true) when the strategy has an opinion, or
// (zero, false) meaning "undefined" — the caller (pkg/filterexpr) treats
// that as "no preselection restriction, fall back to a row-wise predicate"
// (spec.md §4.6, §4.7, §9 bitmap range open question).
type Index interface {
	Kind() string
	SetAttrs(id uint32, attrs Attrs)
	Remove(id uint32)
	Eq(key string, value Scalar) (idset.Set, bool)
	Exists(key string) (idset.Set, bool)
	Range(key string, r RangeQuery) (idset.Set, bool)
	// HasAttrs returns id's current attribute record and whether one is
	// present, read without using the index structures, so filterexpr's
	// post-filter fallback can evaluate a clause row-wise.
	HasAttrs(id uint32) (Attrs, bool)
}
