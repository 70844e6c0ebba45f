package search_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/ann"
	"github.com/trkbt10/vectorlite/pkg/attridx"
	"github.com/trkbt10/vectorlite/pkg/filterexpr"
	"github.com/trkbt10/vectorlite/pkg/search"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

func ids(hits []vecstore.Hit) []uint32 {
	out := make([]uint32, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// TestFind_FilterAndRange mirrors spec.md scenario S2: a conjunction of an
// equality match and a numeric range over attributes.
func TestFind_FilterAndRange(t *testing.T) {
	t.Parallel()

	store := vecstore.New(3, vecstore.Dot, nil)
	require.NoError(t, store.Add(1, []float32{1, 0, 0}, nil, false))
	require.NoError(t, store.Add(2, []float32{1, 0, 0}, nil, false))
	require.NoError(t, store.Add(3, []float32{1, 0, 0}, nil, false))

	attrs := attridx.NewBasic()
	attrs.SetAttrs(1, attridx.Attrs{"color": {attridx.StringScalar("red")}, "price": {attridx.FloatScalar(10)}})
	attrs.SetAttrs(2, attridx.Attrs{"color": {attridx.StringScalar("blue")}, "price": {attridx.FloatScalar(20)}})
	attrs.SetAttrs(3, attridx.Attrs{"color": {attridx.StringScalar("red")}, "price": {attridx.FloatScalar(15)}})

	expr := filterexpr.All{Clauses: []filterexpr.Expr{
		filterexpr.Match{Key: "color", Value: attridx.StringScalar("red")},
		filterexpr.Range{Key: "price", Bound: attridx.RangeQuery{HasGTE: true, GTE: 10, HasLT: true, LT: 20}},
	}}

	hits, err := search.Find(store, []float32{1, 0, 0}, expr, search.Options{K: 3}, search.Collaborators{Attrs: attrs})
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3}, ids(hits))
}

// TestFind_HNSWHardMode mirrors spec.md scenario S3 exactly.
func TestFind_HNSWHardMode(t *testing.T) {
	t.Parallel()

	params := ann.HNSWParams{M: 6, EfConstruction: 32, EfSearch: 16, Seed: 7, TombstoneRebuildRatio: 0.3}
	idx := ann.NewHNSW(params, vecstore.Cosine)

	store := vecstore.New(3, vecstore.Cosine, idx)
	require.NoError(t, store.Add(1, []float32{1, 0, 0}, nil, false))
	require.NoError(t, store.Add(2, []float32{0, 1, 0}, nil, false))
	require.NoError(t, store.Add(3, []float32{0, 0, 1}, nil, false))

	attrs := attridx.NewBasic()
	attrs.SetAttrs(1, attridx.Attrs{"color": {attridx.StringScalar("red")}})
	attrs.SetAttrs(2, attridx.Attrs{"color": {attridx.StringScalar("blue")}})
	attrs.SetAttrs(3, attridx.Attrs{"color": {attridx.StringScalar("red")}})

	expr := filterexpr.Match{Key: "color", Value: attridx.StringScalar("red")}

	hits, err := search.Find(store, []float32{1, 0, 0}, expr, search.Options{K: 3, Mode: vecstore.ModeHard}, search.Collaborators{Attrs: attrs})
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3}, ids(hits))
}

func TestFind_Unfiltered_DelegatesToStoreSearch(t *testing.T) {
	t.Parallel()

	store := vecstore.New(2, vecstore.Dot, nil)
	require.NoError(t, store.Add(1, []float32{1, 0}, nil, false))

	hits, err := search.Find(store, []float32{1, 0}, nil, search.Options{K: 1}, search.Collaborators{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestFind_DimensionMismatch(t *testing.T) {
	t.Parallel()

	store := vecstore.New(3, vecstore.Dot, nil)
	attrs := attridx.NewBasic()

	_, err := search.Find(store, []float32{1, 0}, filterexpr.Exists{Key: "x"}, search.Options{K: 1}, search.Collaborators{Attrs: attrs})
	require.ErrorIs(t, err, vecstore.ErrDimensionMismatch)
}
