package filterexpr

import (
	"github.com/trkbt10/vectorlite/pkg/attridx"
	"github.com/trkbt10/vectorlite/pkg/idset"
)

// MetaPredicate evaluates a meta-scope Match clause row-wise against the
// record's opaque meta blob, since meta has no indexed structure (spec.md
// §4.7: "on meta scope, fall back to a predicate evaluated row-wise").
type MetaPredicate func(meta []byte, key string, value attridx.Scalar) bool

// Context supplies everything Evaluate needs beyond the expression tree
// itself: the attribute index for indexed preselection, the current live-id
// universe (needed by Not and by Any's support counting), and the
// collaborators needed for meta-scope fallback.
type Context struct {
	Attrs     attridx.Index
	Universe  []uint32
	MetaMatch MetaPredicate
	MetaOf    func(id uint32) ([]byte, bool)
}

// result is the internal (candidate set, residual row-wise predicate) pair
// a subtree evaluates to, before being composed by its parent.
type result struct {
	set  idset.Set
	post func(id uint32) bool
}

// Evaluate compiles expr into a candidate set and an optional post-filter
// predicate (spec.md §4.7: "the result is a pair (candidateSet | ∞,
// postPredicate?)").
func Evaluate(expr Expr, ctx Context) (idset.Set, func(id uint32) bool) {
	r := eval(expr, ctx)

	return r.set, r.post
}

func eval(expr Expr, ctx Context) result {
	switch e := expr.(type) {
	case Match:
		return evalMatch(e, ctx)
	case Exists:
		return evalExists(e, ctx)
	case Range:
		return evalRange(e, ctx)
	case HasID:
		return result{set: idset.FromSlice(e.Values)}
	case All:
		return evalAll(e, ctx)
	case Any:
		return evalAny(e, ctx)
	case Not:
		return evalNot(e, ctx)
	default:
		return result{set: idset.Universe()}
	}
}

func evalMatch(e Match, ctx Context) result {
	if e.Scope == ScopeMeta {
		return result{
			set: idset.Universe(),
			post: func(id uint32) bool {
				meta, ok := ctx.MetaOf(id)
				if !ok {
					return false
				}

				return ctx.MetaMatch(meta, e.Key, e.Value)
			},
		}
	}

	set, _ := ctx.Attrs.Eq(e.Key, e.Value)

	return result{set: set}
}

func evalExists(e Exists, ctx Context) result {
	if e.Scope == ScopeMeta {
		return result{
			set: idset.Universe(),
			post: func(id uint32) bool {
				_, ok := ctx.MetaOf(id)

				return ok
			},
		}
	}

	set, _ := ctx.Attrs.Exists(e.Key)

	return result{set: set}
}

func evalRange(e Range, ctx Context) result {
	set, ok := ctx.Attrs.Range(e.Key, e.Bound)
	if ok {
		return result{set: set}
	}

	// "undefined" — the bitmap strategy has no numMap; fall back to a
	// row-wise predicate over the raw attribute record (spec.md §9).
	return result{
		set: idset.Universe(),
		post: func(id uint32) bool {
			attrs, has := ctx.Attrs.HasAttrs(id)
			if !has {
				return false
			}

			for _, v := range attrs[e.Key] {
				if n, isNum := v.Numeric(); isNum && rangeIncludes(e.Bound, n) {
					return true
				}
			}

			return false
		},
	}
}

func rangeIncludes(r attridx.RangeQuery, v float64) bool {
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

// member evaluates whether id belongs to r, applying both the candidate set
// and any residual row-wise predicate.
func member(r result, id uint32) bool {
	if !r.set.Infinite && !r.set.Contains(id) {
		return false
	}

	if r.post != nil {
		return r.post(id)
	}

	return true
}

func evalAll(e All, ctx Context) result {
	children := make([]result, len(e.Clauses))

	anyPost := false

	for i, c := range e.Clauses {
		children[i] = eval(c, ctx)

		if children[i].post != nil {
			anyPost = true
		}
	}

	if !anyPost {
		set := idset.Universe()
		for _, c := range children {
			set = idset.Intersect(set, c.set)
		}

		return result{set: set}
	}

	var ids []uint32

	for _, id := range ctx.Universe {
		ok := true

		for _, c := range children {
			if !member(c, id) {
				ok = false

				break
			}
		}

		if ok {
			ids = append(ids, id)
		}
	}

	return result{set: idset.FromSlice(ids)}
}

func evalAny(e Any, ctx Context) result {
	min := e.Min
	if min <= 0 {
		min = 1
	}

	children := make([]result, len(e.Clauses))
	for i, c := range e.Clauses {
		children[i] = eval(c, ctx)
	}

	var ids []uint32

	for _, id := range ctx.Universe {
		count := 0

		for _, c := range children {
			if member(c, id) {
				count++
			}
		}

		if count >= min {
			ids = append(ids, id)
		}
	}

	return result{set: idset.FromSlice(ids)}
}

func evalNot(e Not, ctx Context) result {
	child := eval(e.Clause, ctx)

	var ids []uint32

	for _, id := range ctx.Universe {
		if !member(child, id) {
			ids = append(ids, id)
		}
	}

	return result{set: idset.FromSlice(ids)}
}
