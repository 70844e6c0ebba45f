package blobio_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/blobio"
)

func testBlobIO(t *testing.T, newStore func() blobio.BlobIO) {
	t.Helper()

	ctx := context.Background()

	t.Run("write and read round trip", func(t *testing.T) {
		t.Parallel()

		s := newStore()
		require.NoError(t, s.Write(ctx, "k", []byte("hello")))

		got, err := s.Read(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), got)
	})

	t.Run("read missing key", func(t *testing.T) {
		t.Parallel()

		s := newStore()

		_, err := s.Read(ctx, "missing")
		require.ErrorIs(t, err, blobio.ErrNotFound)
	})

	t.Run("append is order preserving", func(t *testing.T) {
		t.Parallel()

		s := newStore()
		require.NoError(t, s.Append(ctx, "log", []byte("a")))
		require.NoError(t, s.Append(ctx, "log", []byte("b")))

		got, err := s.Read(ctx, "log")
		require.NoError(t, err)
		require.Equal(t, []byte("ab"), got)
	})

	t.Run("atomic write replaces contents wholesale", func(t *testing.T) {
		t.Parallel()

		s := newStore()
		require.NoError(t, s.AtomicWrite(ctx, "k", []byte("first")))
		require.NoError(t, s.AtomicWrite(ctx, "k", []byte("second")))

		got, err := s.Read(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("second"), got)
	})

	t.Run("del removes the key", func(t *testing.T) {
		t.Parallel()

		s := newStore()
		require.NoError(t, s.Write(ctx, "k", []byte("v")))
		require.NoError(t, s.Del(ctx, "k"))

		_, err := s.Read(ctx, "k")
		require.ErrorIs(t, err, blobio.ErrNotFound)
	})
}

func TestMemory(t *testing.T) {
	t.Parallel()
	testBlobIO(t, func() blobio.BlobIO { return blobio.NewMemory() })
}

func TestLocal(t *testing.T) {
	t.Parallel()
	testBlobIO(t, func() blobio.BlobIO { return blobio.NewLocal(t.TempDir()) })
}

func TestRegistry_OpenBySchema(t *testing.T) {
	t.Parallel()

	r := blobio.NewRegistry()

	mem, err := r.Open("mem://anything")
	require.NoError(t, err)
	require.IsType(t, &blobio.Memory{}, mem)

	_, err = r.Open("bogus://x")
	require.Error(t, err)
}
