package vectorlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	vectorlite "github.com/trkbt10/vectorlite"
	"github.com/trkbt10/vectorlite/pkg/attridx"
	"github.com/trkbt10/vectorlite/pkg/blobio"
	"github.com/trkbt10/vectorlite/pkg/filterexpr"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

func newMemoryConfig(t *testing.T) vectorlite.Config {
	t.Helper()

	return vectorlite.Config{
		Database: vectorlite.DatabaseConfig{Dim: 3, Metric: vecstore.Cosine},
		Index:    vectorlite.IndexConfig{Name: "coll"},
		Storage: vectorlite.StorageConfig{
			Index: blobio.NewMemory(),
			Data:  map[string]blobio.BlobIO{"a": blobio.NewMemory()},
		},
	}
}

func TestClient_SetGetDeleteLifecycle(t *testing.T) {
	t.Parallel()

	c, err := vectorlite.Connect(newMemoryConfig(t))
	require.NoError(t, err)

	require.NoError(t, c.Set(1, []float32{1, 0, 0}, nil, []byte("one"), vectorlite.SetOptions{}))
	require.True(t, c.Has(1))
	require.Equal(t, uint32(1), c.Size())

	rec, ok := c.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("one"), rec.Meta)

	require.True(t, c.Delete(1))
	require.False(t, c.Has(1))
	require.Equal(t, uint32(0), c.Size())
}

func TestClient_PushRejectsDuplicate(t *testing.T) {
	t.Parallel()

	c, err := vectorlite.Connect(newMemoryConfig(t))
	require.NoError(t, err)

	require.NoError(t, c.Push(vectorlite.Record{ID: 1, Vector: []float32{1, 0, 0}}))

	err = c.Push(vectorlite.Record{ID: 1, Vector: []float32{0, 1, 0}})
	require.Error(t, err)

	var verr *vectorlite.Error
	require.True(t, errors.As(err, &verr))
	require.ErrorIs(t, err, vectorlite.ErrAlreadyExists)
	require.Equal(t, "coll", verr.CollectionName)
}

func TestClient_UpsertStopsAtFirstError(t *testing.T) {
	t.Parallel()

	c, err := vectorlite.Connect(newMemoryConfig(t))
	require.NoError(t, err)

	n, err := c.Upsert(
		vectorlite.Record{ID: 1, Vector: []float32{1, 0, 0}},
		vectorlite.Record{ID: 2, Vector: []float32{0, 1}}, // wrong dim
		vectorlite.Record{ID: 3, Vector: []float32{0, 0, 1}},
	)
	require.Error(t, err)
	require.Equal(t, 1, n)
	require.ErrorIs(t, err, vectorlite.ErrDimensionMismatch)
}

func TestClient_FindManyWithFilter(t *testing.T) {
	t.Parallel()

	c, err := vectorlite.Connect(newMemoryConfig(t))
	require.NoError(t, err)

	red := attridx.Attrs{"color": {attridx.StringScalar("red")}}
	blue := attridx.Attrs{"color": {attridx.StringScalar("blue")}}

	require.NoError(t, c.Set(1, []float32{1, 0, 0}, red, nil, vectorlite.SetOptions{}))
	require.NoError(t, c.Set(2, []float32{0, 1, 0}, blue, nil, vectorlite.SetOptions{}))
	require.NoError(t, c.Set(3, []float32{0.9, 0.1, 0}, red, nil, vectorlite.SetOptions{}))

	hits, err := c.FindMany([]float32{1, 0, 0}, vectorlite.FindOptions{
		K:      10,
		Filter: filterexpr.Match{Key: "color", Value: attridx.StringScalar("red")},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	for _, h := range hits {
		require.Contains(t, []uint32{1, 3}, h.ID)
	}
}

func TestClient_Find_EmptyCollectionReturnsNil(t *testing.T) {
	t.Parallel()

	c, err := vectorlite.Connect(newMemoryConfig(t))
	require.NoError(t, err)

	hit, err := c.Find([]float32{1, 0, 0}, vectorlite.FindOptions{})
	require.NoError(t, err)
	require.Nil(t, hit)
}

func TestClient_SaveStateOpenState_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := newMemoryConfig(t)
	c, err := vectorlite.Connect(cfg)
	require.NoError(t, err)

	require.NoError(t, c.Set(1, []float32{1, 0, 0}, nil, []byte("one"), vectorlite.SetOptions{}))
	require.NoError(t, c.Set(2, []float32{0, 1, 0}, nil, []byte("two"), vectorlite.SetOptions{}))

	_, err = c.Index().SaveState(ctx, vectorlite.SaveStateOptions{})
	require.NoError(t, err)

	reopened, err := vectorlite.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, reopened.Index().OpenState(ctx))

	require.Equal(t, uint32(2), reopened.Size())

	rec, ok := reopened.Get(2)
	require.True(t, ok)
	require.Equal(t, []byte("two"), rec.Meta)
}

func TestConnect_RequiresDimAndStorage(t *testing.T) {
	t.Parallel()

	_, err := vectorlite.Connect(vectorlite.Config{})
	require.Error(t, err)

	var verr *vectorlite.Error
	require.True(t, errors.As(err, &verr))
}
