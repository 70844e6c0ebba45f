package blobio_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	vlfs "github.com/trkbt10/vectorlite/pkg/fs"
)

// TestLocal_AtomicWriteFailureLeavesPriorValueIntact drives Local through
// fs.Chaos with every mutating call forced to fail: AtomicWrite's
// temp-file-then-rename shape means a failing write never reaches the
// rename step, so a key that already existed must read back unchanged —
// the same atomic-commit guarantee persistence.Save's manifest/head
// writes rely on (spec testable property 7).
func TestLocal_AtomicWriteFailureLeavesPriorValueIntact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	real := vlfs.NewReal()
	store := blobio.NewLocalWithFS(dir, real)
	require.NoError(t, store.AtomicWrite(ctx, "manifest", []byte("v1")))

	chaos := vlfs.NewChaos(real, 1, &vlfs.ChaosConfig{WriteFailRate: 1})
	failing := blobio.NewLocalWithFS(dir, chaos)

	err := failing.AtomicWrite(ctx, "manifest", []byte("v2"))
	require.Error(t, err)

	data, err := store.Read(ctx, "manifest")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), data)
}
