// Package search implements the search-with-expression dispatcher from
// spec.md §4.8: it compiles a filter expression to a candidate set via
// pkg/filterexpr, then dispatches to whichever ANN strategy the store is
// configured with.
package search

import (
	"github.com/trkbt10/vectorlite/pkg/attridx"
	"github.com/trkbt10/vectorlite/pkg/filterexpr"
	"github.com/trkbt10/vectorlite/pkg/idset"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// Options mirrors the filtered-search parameters of spec.md §4.8/§6.
type Options struct {
	K            int
	Mode         vecstore.FilterMode
	BridgeBudget int
	Seeds        int
	SeedStrategy vecstore.SeedStrategy
	AdaptiveEf   bool
	EarlyStop    vecstore.EarlyStop
}

// Collaborators bundles the attribute index and meta-scope helpers the
// filter evaluator needs; Store alone only knows vectors and raw meta
// bytes, not indexed attributes.
type Collaborators struct {
	Attrs     attridx.Index
	MetaMatch filterexpr.MetaPredicate
}

// Find runs a filtered top-k search against store (spec.md §4.8 steps 1-4).
// If expr is nil, the search is unfiltered (equivalent to Store.Search).
func Find(store *vecstore.Store, query []float32, expr filterexpr.Expr, opts Options, collab Collaborators) ([]vecstore.Hit, error) {
	if expr == nil {
		return store.Search(query, opts.K)
	}

	if uint32(len(query)) != store.Dim() {
		return nil, vecstore.ErrDimensionMismatch
	}

	universe := store.AllIDs()

	ctx := filterexpr.Context{
		Attrs:     collab.Attrs,
		Universe:  universe,
		MetaMatch: collab.MetaMatch,
		MetaOf:    store.GetMeta,
	}

	candidates, post := filterexpr.Evaluate(expr, ctx)

	if !candidates.Infinite && candidates.Len() == 0 && post == nil {
		return nil, nil
	}

	searchOpts := vecstore.SearchOptions{
		K:             opts.K,
		Candidates:    candidates,
		PostPredicate: post,
		Mode:          opts.Mode,
		BridgeBudget:  opts.BridgeBudget,
		Seeds:         opts.Seeds,
		SeedStrategy:  opts.SeedStrategy,
		AdaptiveEf:    opts.AdaptiveEf,
		EarlyStop:     opts.EarlyStop,
	}

	idx := store.Index()
	if idx != nil {
		return store.ToHits(idx.Search(query, searchOpts, store)), nil
	}

	candidateOK := candidateFunc(candidates)

	return store.ToHits(store.BruteForceScan(query, opts.K, candidateOK, post)), nil
}

func candidateFunc(c idset.Set) func(uint32) bool {
	if c.Infinite {
		return nil
	}

	return c.Contains
}
