// Package filterexpr compiles the boolean filter-expression tree from
// spec.md §3/§4.7 into a candidate id set (plus an optional post-filter
// predicate) ready for the search dispatcher in pkg/search.
package filterexpr

import "github.com/trkbt10/vectorlite/pkg/attridx"

// Scope selects whether a Match clause is evaluated against the indexed
// attribute record or against the opaque meta blob (spec.md §3).
type Scope uint8

const (
	ScopeAttr Scope = iota
	ScopeMeta
)

// Expr is a node in the filter-expression tree. All concrete types below
// implement it.
type Expr interface{ isExpr() }

// Match requires key to equal value.
type Match struct {
	Key   string
	Value attridx.Scalar
	Scope Scope
}

// Exists requires key to be present on the record.
type Exists struct {
	Key   string
	Scope Scope
}

// Range requires key's numeric value to satisfy the bound.
type Range struct {
	Key   string
	Bound attridx.RangeQuery
	Scope Scope
}

// HasID restricts to an explicit finite set of ids.
type HasID struct {
	Values []uint32
}

// All is the conjunction (intersection) of its clauses. Top-level alias:
// "must".
type All struct{ Clauses []Expr }

// Any is the disjunction of its clauses, keeping only ids whose support
// count (number of satisfied clauses) is >= Min. Top-level aliases:
// "should" (Min defaults to 1) / "should_min".
type Any struct {
	Clauses []Expr
	Min     int
}

// Not is the relative complement of its clause against the current
// universe of ids. Top-level alias: "must_not".
type Not struct{ Clause Expr }

func (Match) isExpr() {}
func (Exists) isExpr() {}
func (Range) isExpr() {}
func (HasID) isExpr() {}
func (All) isExpr()   {}
func (Any) isExpr()   {}
func (Not) isExpr()   {}
