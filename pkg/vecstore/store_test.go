package vecstore_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

func TestStore_AddCosine_UnitNorm(t *testing.T) {
	t.Parallel()

	s := vecstore.New(3, vecstore.Cosine, nil)

	require.NoError(t, s.Add(1, []float32{3, 4, 0}, nil, false))

	vec, _, ok := s.Get(1)
	require.True(t, ok)

	var sumSq float64
	for _, x := range vec {
		sumSq += float64(x) * float64(x)
	}

	norm := math.Sqrt(sumSq)
	require.InDelta(t, 1.0, norm, 1e-5)
}

func TestStore_AddAlreadyExists(t *testing.T) {
	t.Parallel()

	s := vecstore.New(2, vecstore.Dot, nil)
	require.NoError(t, s.Add(1, []float32{1, 0}, nil, false))

	err := s.Add(1, []float32{0, 1}, nil, false)
	require.Error(t, err)
	require.ErrorIs(t, err, vecstore.ErrAlreadyExists)
}

func TestStore_Remove_CompactionInvariant(t *testing.T) {
	t.Parallel()

	s := vecstore.New(2, vecstore.Dot, nil)

	for id := uint32(1); id <= 5; id++ {
		require.NoError(t, s.Add(id, []float32{float32(id), 0}, nil, false))
	}

	require.True(t, s.Remove(3))
	require.False(t, s.Remove(3)) // already gone

	for slot, id := range s.AllIDs() {
		vec, _, ok := s.Get(id)
		require.True(t, ok)
		require.Equal(t, float32(id), vec[0])
		require.Equal(t, s.RowAt(slot)[0], vec[0])
	}

	require.Equal(t, 4, s.Size())
}

func TestStore_Search_DimensionMismatch(t *testing.T) {
	t.Parallel()

	s := vecstore.New(3, vecstore.Dot, nil)

	_, err := s.Search([]float32{1, 0}, 1)
	require.ErrorIs(t, err, vecstore.ErrDimensionMismatch)
}

func TestStore_Search_BruteForceOracle(t *testing.T) {
	t.Parallel()

	s := vecstore.New(2, vecstore.Cosine, nil)

	require.NoError(t, s.Add(1, []float32{1, 0}, nil, false))
	require.NoError(t, s.Add(2, []float32{0.95, 0}, nil, false))
	require.NoError(t, s.Add(3, []float32{0, 1}, nil, false))

	hits, err := s.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, uint32(1), hits[0].ID)
	require.Equal(t, uint32(2), hits[1].ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestStore_InvalidVector_NaN(t *testing.T) {
	t.Parallel()

	s := vecstore.New(2, vecstore.Dot, nil)

	err := s.Add(1, []float32{float32(math.NaN()), 0}, nil, false)
	require.ErrorIs(t, err, vecstore.ErrInvalidVector)
}
