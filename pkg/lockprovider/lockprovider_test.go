package lockprovider_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trkbt10/vectorlite/pkg/lockprovider"
)

func TestMemory_AcquireRelease(t *testing.T) {
	t.Parallel()

	p := lockprovider.NewMemory()

	epoch, err := p.Acquire("coll", time.Minute, "holder-a")
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch)

	_, err = p.Acquire("coll", time.Minute, "holder-b")
	require.ErrorIs(t, err, lockprovider.ErrLocked)

	require.NoError(t, p.Release("coll", epoch, "holder-a"))

	epoch2, err := p.Acquire("coll", time.Minute, "holder-b")
	require.NoError(t, err)
	require.Equal(t, uint64(2), epoch2)
}

func TestMemory_ExpiredLockCanBeReacquired(t *testing.T) {
	t.Parallel()

	p := lockprovider.NewMemory()

	_, err := p.Acquire("coll", time.Millisecond, "holder-a")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = p.Acquire("coll", time.Minute, "holder-b")
	require.NoError(t, err)
}

func TestMemory_RenewExtendsTTL(t *testing.T) {
	t.Parallel()

	p := lockprovider.NewMemory()

	epoch, err := p.Acquire("coll", 5*time.Millisecond, "holder-a")
	require.NoError(t, err)
	require.NoError(t, p.Renew("coll", epoch, time.Minute, "holder-a"))

	time.Sleep(10 * time.Millisecond)

	_, err = p.Acquire("coll", time.Minute, "holder-b")
	require.ErrorIs(t, err, lockprovider.ErrLocked)
}

func TestFile_AcquireIsExclusiveAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := lockprovider.NewFile(dir)
	b := lockprovider.NewFile(dir)

	epoch, err := a.Acquire("coll", time.Minute, "holder-a")
	require.NoError(t, err)

	_, err = b.Acquire("coll", time.Minute, "holder-b")
	require.ErrorIs(t, err, lockprovider.ErrLocked)

	require.NoError(t, a.Release("coll", epoch, "holder-a"))

	_, err = b.Acquire("coll", time.Minute, "holder-b")
	require.NoError(t, err)
}

func TestNewHolderID_Unique(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, lockprovider.NewHolderID(), lockprovider.NewHolderID())
}

func TestFile_RenewRejectsStaleEpoch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := lockprovider.NewFile(dir)

	epoch, err := p.Acquire("coll", time.Minute, "holder-a")
	require.NoError(t, err)

	err = p.Renew("coll", epoch+1, time.Minute, "holder-a")
	require.ErrorIs(t, err, lockprovider.ErrLocked)
}
