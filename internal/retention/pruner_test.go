package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp-guardian/internal/errors"
	"wp-guardian/internal/remote"
)

func seedStore(t *testing.T, names ...string) *remote.LocalStore {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0600))
	}
	return remote.NewLocalStore(dir)
}

func bundleAndSidecar(day int) []string {
	name := fmt.Sprintf("wp-backup-2026-08-%02d_03-00-00.tar.gz", day)
	return []string{name, name + ".sha256"}
}

func TestPrunerDeletesOldestGroups(t *testing.T) {
	var names []string
	for day := 15; day <= 19; day++ {
		names = append(names, bundleAndSidecar(day)...)
	}
	store := seedStore(t, names...)

	pruner := NewPruner(store, 3, nil)
	result, err := pruner.Prune(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Kept, 3)
	assert.Equal(t, "wp-backup-2026-08-17_03-00-00.tar.gz", result.Kept[0])
	// both victims left with their sidecars
	assert.Len(t, result.Deleted, 4)
	assert.Empty(t, result.Failed)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 6)
	assert.NotContains(t, remaining, "wp-backup-2026-08-15_03-00-00.tar.gz")
	assert.NotContains(t, remaining, "wp-backup-2026-08-15_03-00-00.tar.gz.sha256")
	assert.NotContains(t, remaining, "wp-backup-2026-08-16_03-00-00.tar.gz")
}

func TestPrunerUnderKeepDoesNothing(t *testing.T) {
	store := seedStore(t, bundleAndSidecar(15)...)

	result, err := NewPruner(store, 5, nil).Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Len(t, result.Kept, 1)
}

func TestPrunerIdempotent(t *testing.T) {
	var names []string
	for day := 10; day <= 14; day++ {
		names = append(names, bundleAndSidecar(day)...)
	}
	store := seedStore(t, names...)
	pruner := NewPruner(store, 2, nil)

	first, err := pruner.Prune(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Deleted, 6)

	second, err := pruner.Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Deleted)
	assert.Equal(t, first.Kept, second.Kept)
}

func TestPrunerIgnoresForeignFiles(t *testing.T) {
	names := append(bundleAndSidecar(15), bundleAndSidecar(16)...)
	names = append(names, "notes.txt", "manual-export.sql")
	store := seedStore(t, names...)

	_, err := NewPruner(store, 1, nil).Prune(context.Background())
	require.NoError(t, err)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, remaining, "notes.txt")
	assert.Contains(t, remaining, "manual-export.sql")
}

func TestPrunerKeepZeroRetainsNothing(t *testing.T) {
	names := append(bundleAndSidecar(15), bundleAndSidecar(16)...)
	store := seedStore(t, names...)

	result, err := NewPruner(store, 0, nil).Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Kept)
	assert.Len(t, result.Deleted, 4)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPrunerNegativeKeepDisabled(t *testing.T) {
	store := seedStore(t, bundleAndSidecar(15)...)

	result, err := NewPruner(store, -1, nil).Prune(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Len(t, result.Kept, 1)
}

func TestPrunerPlanIsDryRun(t *testing.T) {
	var names []string
	for day := 15; day <= 18; day++ {
		names = append(names, bundleAndSidecar(day)...)
	}
	store := seedStore(t, names...)

	kept, victims, err := NewPruner(store, 2, nil).Plan(context.Background())
	require.NoError(t, err)
	assert.Len(t, kept, 2)
	assert.Equal(t, []string{
		"wp-backup-2026-08-15_03-00-00.tar.gz",
		"wp-backup-2026-08-16_03-00-00.tar.gz",
	}, victims)

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, remaining, 8)
}

// failingStore refuses deletion of one specific bundle.
type failingStore struct {
	remote.Store
	refuse string
}

func (s *failingStore) Delete(ctx context.Context, names []string) error {
	for _, name := range names {
		if name == s.refuse {
			return fmt.Errorf("permission denied")
		}
	}
	return s.Store.Delete(ctx, names)
}

func TestPrunerBestEffortOnFailure(t *testing.T) {
	var names []string
	for day := 15; day <= 18; day++ {
		names = append(names, bundleAndSidecar(day)...)
	}
	local := seedStore(t, names...)
	store := &failingStore{Store: local, refuse: "wp-backup-2026-08-15_03-00-00.tar.gz"}

	result, err := NewPruner(store, 2, nil).Prune(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindPruneFailure, errors.KindOf(err))

	// the other victim still went away
	assert.Equal(t, []string{"wp-backup-2026-08-15_03-00-00.tar.gz"}, result.Failed)
	assert.Contains(t, result.Deleted, "wp-backup-2026-08-16_03-00-00.tar.gz")

	remaining, err := local.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, remaining, "wp-backup-2026-08-15_03-00-00.tar.gz")
	assert.NotContains(t, remaining, "wp-backup-2026-08-16_03-00-00.tar.gz")
}
