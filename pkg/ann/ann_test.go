package ann_test

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/ann"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

func idsOf(hits []vecstore.IDScore) []uint32 {
	out := make([]uint32, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func recall(got, want []vecstore.IDScore) float64 {
	wantSet := make(map[uint32]struct{}, len(want))
	for _, w := range want {
		wantSet[w.ID] = struct{}{}
	}

	hit := 0

	for _, g := range got {
		if _, ok := wantSet[g.ID]; ok {
			hit++
		}
	}

	if len(want) == 0 {
		return 1
	}

	return float64(hit) / float64(len(want))
}

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)

	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(r.NormFloat64())
		}

		out[i] = v
	}

	return out
}

// TestHNSW_RecallAgainstBruteForceOracle exercises testable property 5: for
// random queries, HNSW recall@k must meet a reasonable threshold relative to
// the exact brute-force reference.
func TestHNSW_RecallAgainstBruteForceOracle(t *testing.T) {
	t.Parallel()

	const dim = 16

	bf := vecstore.New(dim, vecstore.Cosine, nil)

	params := ann.DefaultHNSWParams()
	params.Seed = 42

	hnsw := ann.NewHNSW(params, vecstore.Cosine)
	approx := vecstore.New(dim, vecstore.Cosine, hnsw)

	vectors := randomVectors(200, dim, 1)
	for i, v := range vectors {
		id := uint32(i + 1)
		require.NoError(t, bf.Add(id, append([]float32(nil), v...), nil, false))
		require.NoError(t, approx.Add(id, append([]float32(nil), v...), nil, false))
	}

	queries := randomVectors(20, dim, 2)

	var total float64

	for _, q := range queries {
		wantHits, err := bf.Search(q, 10)
		require.NoError(t, err)

		gotHits, err := approx.Search(q, 10)
		require.NoError(t, err)

		want := make([]vecstore.IDScore, len(wantHits))
		for i, h := range wantHits {
			want[i] = vecstore.IDScore{ID: h.ID, Score: h.Score}
		}

		got := make([]vecstore.IDScore, len(gotHits))
		for i, h := range gotHits {
			got[i] = vecstore.IDScore{ID: h.ID, Score: h.Score}
		}

		total += recall(got, want)
	}

	avgRecall := total / float64(len(queries))
	require.GreaterOrEqual(t, avgRecall, 0.7, "HNSW recall@10 should stay reasonably close to the brute-force oracle")
}

func TestHNSW_DeterministicUnderFixedSeed(t *testing.T) {
	t.Parallel()

	build := func() []vecstore.IDScore {
		params := ann.DefaultHNSWParams()
		params.Seed = 7

		idx := ann.NewHNSW(params, vecstore.Dot)
		store := vecstore.New(4, vecstore.Dot, idx)

		for i, v := range randomVectors(50, 4, 3) {
			require.NoError(t, store.Add(uint32(i+1), v, nil, false))
		}

		hits, err := store.Search([]float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)

		out := make([]vecstore.IDScore, len(hits))
		for i, h := range hits {
			out[i] = vecstore.IDScore{ID: h.ID, Score: h.Score}
		}

		return out
	}

	require.Equal(t, idsOf(build()), idsOf(build()))
}

func TestHNSW_TombstoneRatio_TriggersRebuild(t *testing.T) {
	t.Parallel()

	params := ann.DefaultHNSWParams()
	params.TombstoneRebuildRatio = 0.3

	idx := ann.NewHNSW(params, vecstore.Dot)
	for i := uint32(1); i <= 10; i++ {
		idx.Add(i, []float32{float32(i), 0})
	}

	require.False(t, idx.NeedsRebuild())

	for i := uint32(1); i <= 4; i++ {
		idx.Remove(i)
	}

	require.True(t, idx.NeedsRebuild())
	require.InDelta(t, 0.4, idx.TombstoneRatio(), 1e-9)
}

func TestIVF_RecallAgainstBruteForceOracle(t *testing.T) {
	t.Parallel()

	const dim = 16

	bf := vecstore.New(dim, vecstore.Cosine, nil)

	params := ann.DefaultIVFParams()
	params.Seed = 9

	ivf := ann.NewIVF(params, vecstore.Cosine, dim)
	approx := vecstore.New(dim, vecstore.Cosine, ivf)

	vectors := randomVectors(300, dim, 11)
	for i, v := range vectors {
		id := uint32(i + 1)
		require.NoError(t, bf.Add(id, append([]float32(nil), v...), nil, false))
		require.NoError(t, approx.Add(id, append([]float32(nil), v...), nil, false))
	}

	queries := randomVectors(20, dim, 12)

	var total float64

	for _, q := range queries {
		wantHits, err := bf.Search(q, 10)
		require.NoError(t, err)

		gotHits, err := approx.Search(q, 10)
		require.NoError(t, err)

		want := make([]vecstore.IDScore, len(wantHits))
		for i, h := range wantHits {
			want[i] = vecstore.IDScore{ID: h.ID, Score: h.Score}
		}

		got := make([]vecstore.IDScore, len(gotHits))
		for i, h := range gotHits {
			got[i] = vecstore.IDScore{ID: h.ID, Score: h.Score}
		}

		total += recall(got, want)
	}

	avgRecall := total / float64(len(queries))
	require.GreaterOrEqual(t, avgRecall, 0.6, "IVF recall@10 should stay reasonably close to the brute-force oracle")
}

func TestIVF_FragmentationRatio(t *testing.T) {
	t.Parallel()

	params := ann.DefaultIVFParams()
	params.NList = 4

	idx := ann.NewIVF(params, vecstore.Dot, 2)
	for i := uint32(1); i <= 10; i++ {
		idx.Add(i, []float32{float32(i), 0})
	}

	for i := uint32(1); i <= 5; i++ {
		idx.Remove(i)
	}

	require.Greater(t, idx.FragmentationRatio(), 0.0)
}

func TestBruteForce_IsRecallOne(t *testing.T) {
	t.Parallel()

	bf := ann.NewBruteForce()
	store := vecstore.New(2, vecstore.Dot, bf)

	require.NoError(t, store.Add(1, []float32{1, 0}, nil, false))
	require.NoError(t, store.Add(2, []float32{0, 1}, nil, false))

	hits, err := store.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, uint32(1), hits[0].ID)
	require.False(t, math.IsNaN(float64(hits[0].Score)))
}
