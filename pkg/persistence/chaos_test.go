package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/blobio"
	vlfs "github.com/trkbt10/vectorlite/pkg/fs"
	"github.com/trkbt10/vectorlite/pkg/lockprovider"
	"github.com/trkbt10/vectorlite/pkg/persistence"
	"github.com/trkbt10/vectorlite/pkg/placement"
	"github.com/trkbt10/vectorlite/pkg/vecstore"
)

// TestSave_InjectedWriteFailureLeavesPriorCommitIntact exercises the
// atomic-commit durability contract (spec.md §8 testable property 7) by
// driving a real Local blob store through fs.Chaos: an established
// collection, a save that fails partway through because every write call
// errors, and an open afterward that still sees only the prior commit —
// never a torn or partial one.
func TestSave_InjectedWriteFailureLeavesPriorCommitIntact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	indexStore := blobio.NewLocal(dir)
	dataTargets := map[string]blobio.BlobIO{"a": blobio.NewLocal(dir)}
	lock := lockprovider.NewMemory()
	pm := placement.Map{PGs: 1, Replicas: 1, Targets: []placement.Target{{Key: "a"}}}

	baseline := vecstore.New(1, vecstore.Dot, nil)
	require.NoError(t, baseline.Add(1, []float32{1}, []byte("first"), false))

	baseReq := persistence.SaveRequest{
		Name: "coll", Data: storeDataSource{baseline},
		IndexStore: indexStore, DataTargets: dataTargets, Placement: pm,
		Lock: lock, LockName: "coll", LockTTL: 10 * time.Second, HolderID: "test",
		Clock: fixedClock, Metric: "dot", Strategy: "bruteforce",
	}

	_, err := persistence.Save(ctx, baseReq)
	require.NoError(t, err)

	chaosFS := vlfs.NewChaos(vlfs.NewReal(), 1, &vlfs.ChaosConfig{WriteFailRate: 1})
	chaosIndexStore := blobio.NewLocalWithFS(dir, chaosFS)

	second := vecstore.New(1, vecstore.Dot, nil)
	require.NoError(t, second.Add(1, []float32{1}, []byte("first"), false))
	require.NoError(t, second.Add(2, []float32{2}, []byte("second"), false))

	failingReq := baseReq
	failingReq.Data = storeDataSource{second}
	failingReq.IndexStore = chaosIndexStore

	_, err = persistence.Save(ctx, failingReq)
	require.Error(t, err)

	opened, err := persistence.Open(ctx, persistence.OpenRequest{
		Name:        "coll",
		IndexStore:  indexStore,
		DataTargets: dataTargets,
	})
	require.NoError(t, err)
	require.Equal(t, 1, opened.Store.Size())

	_, meta, ok := opened.Store.Get(1)
	require.True(t, ok)
	require.Equal(t, []byte("first"), meta)
}
