package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp-guardian/internal/checksum"
)

func stageDump(t *testing.T, stagingDir, content string) string {
	t.Helper()
	path := filepath.Join(stagingDir, DumpMemberName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newSiteRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.php"), "<?php")
	writeFile(t, filepath.Join(root, "wp-content", "uploads", "a.jpg"), "a")
	return root
}

func TestBuilderBuild(t *testing.T) {
	staging := t.TempDir()
	taken := time.Date(2026, 8, 20, 3, 0, 0, 0, time.UTC)

	builder := NewBuilder(newSiteRoot(t), nil)
	artifact, err := builder.Build(staging, stageDump(t, staging, "-- dump"), taken)
	require.NoError(t, err)

	assert.Equal(t, "wp-backup-2026-08-20_03-00-00.tar.gz", artifact.BundleName)
	assert.FileExists(t, artifact.BundlePath)
	assert.FileExists(t, artifact.SidecarPath)

	// no half-written bundle left behind
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".partial"), "leftover partial %s", entry.Name())
	}

	// sidecar digest matches the bundle bytes
	require.NoError(t, checksum.VerifyFile(artifact.BundlePath, artifact.SidecarPath))

	// bundle holds exactly the dump and the file tree
	contents, err := OpenBundle(artifact.BundlePath, t.TempDir())
	require.NoError(t, err)
	dump, err := os.ReadFile(contents.DumpPath)
	require.NoError(t, err)
	assert.Equal(t, "-- dump", string(dump))
	assert.FileExists(t, contents.FilesPath)
}

func TestBuilderBuildMissingDumpLeavesNothing(t *testing.T) {
	staging := t.TempDir()

	builder := NewBuilder(newSiteRoot(t), nil)
	_, err := builder.Build(staging, filepath.Join(staging, DumpMemberName), time.Now())
	require.Error(t, err)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuilderPublishMovesPair(t *testing.T) {
	staging := t.TempDir()
	backupDir := filepath.Join(t.TempDir(), "backups")

	builder := NewBuilder(newSiteRoot(t), nil)
	artifact, err := builder.Build(staging, stageDump(t, staging, "-- dump"), time.Now())
	require.NoError(t, err)

	require.NoError(t, builder.Publish(artifact, backupDir))

	assert.Equal(t, backupDir, filepath.Dir(artifact.BundlePath))
	assert.FileExists(t, artifact.BundlePath)
	assert.FileExists(t, artifact.SidecarPath)

	// staging no longer holds the pair
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), NamePrefix))
	}
}

func TestOpenBundleMissingMember(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "wp-backup-2026-08-20_03-00-00.tar.gz")

	// a gzip-compressed tar with neither expected member
	builder := &Builder{}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0600))
	require.NoError(t, builder.writeBundle(bundle,
		bundleMember{path: filepath.Join(dir, "stray.txt"), name: "stray.txt"}))

	_, err := OpenBundle(bundle, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), DumpMemberName)
}
