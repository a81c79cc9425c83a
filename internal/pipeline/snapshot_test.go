package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotterDatabaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dumper := &testDumper{content: "-- live state"}

	s, err := NewSnapshotter(dir, "zstd", dumper, nil)
	require.NoError(t, err)
	require.NoError(t, s.Begin("database", "wp-backup-2026-08-20_03-00-00.tar.gz"))
	require.NoError(t, s.SnapshotDatabase(context.Background(), "wordpress"))
	require.NoError(t, s.Commit())

	manifest, err := LatestManifest(dir)
	require.NoError(t, err)
	require.NotNil(t, manifest)
	require.Len(t, manifest.Entries, 1)

	// the plain dump is gone, only the compressed snapshot remains
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".sql", filepath.Ext(entry.Name()))
	}

	// rollback decompresses and replays the saved dump
	require.NoError(t, s.Rollback(context.Background(), manifest))
	require.Len(t, dumper.applied, 1)
	assert.Equal(t, "-- live state", dumper.applied[0])
}

func TestSnapshotterSetAsideMissingTree(t *testing.T) {
	s, err := NewSnapshotter(t.TempDir(), "gzip", &testDumper{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Begin("uploads", "wp-backup-2026-08-20_03-00-00.tar.gz"))

	// a site without an uploads directory is not an error
	require.NoError(t, s.SetAsideTree(filepath.Join(t.TempDir(), "absent")))
	assert.Empty(t, s.Manifest().Entries)
}

func TestSnapshotterInvalidCompression(t *testing.T) {
	_, err := NewSnapshotter(t.TempDir(), "xz", &testDumper{}, nil)
	assert.Error(t, err)
}

func TestLatestManifestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	dumper := &testDumper{}

	for _, archiveName := range []string{
		"wp-backup-2026-08-10_03-00-00.tar.gz",
		"wp-backup-2026-08-20_03-00-00.tar.gz",
	} {
		s, err := NewSnapshotter(dir, "gzip", dumper, nil)
		require.NoError(t, err)
		require.NoError(t, s.Begin("files", archiveName))
		require.NoError(t, s.Commit())
	}

	manifest, err := LatestManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "wp-backup-2026-08-20_03-00-00.tar.gz", manifest.Archive)
}

func TestLatestManifestEmptyDir(t *testing.T) {
	manifest, err := LatestManifest(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, manifest)
}

func TestUncommittedSnapshotIsInvisible(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSnapshotter(dir, "gzip", &testDumper{content: "x"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Begin("database", "wp-backup-2026-08-20_03-00-00.tar.gz"))
	require.NoError(t, s.SnapshotDatabase(context.Background(), "wordpress"))

	manifest, err := LatestManifest(dir)
	require.NoError(t, err)
	assert.Nil(t, manifest)
}
