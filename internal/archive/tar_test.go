package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWriteTreeExtractTreeRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "index.php"), "<?php // front controller")
	writeFile(t, filepath.Join(src, "wp-content", "uploads", "2026", "08", "photo.jpg"), "jpegdata")
	writeFile(t, filepath.Join(src, "wp-content", "themes", "base", "style.css"), "body {}")

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, src))

	dest := t.TempDir()
	require.NoError(t, ExtractTree(bytes.NewReader(buf.Bytes()), dest, ""))

	content, err := os.ReadFile(filepath.Join(dest, "index.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php // front controller", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "wp-content", "uploads", "2026", "08", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(content))
}

func TestExtractTreePrefixOnly(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "index.php"), "front")
	writeFile(t, filepath.Join(src, "wp-content", "uploads", "a.jpg"), "a")
	writeFile(t, filepath.Join(src, "wp-content", "themes", "base", "style.css"), "css")

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, src))

	dest := t.TempDir()
	require.NoError(t, ExtractTree(bytes.NewReader(buf.Bytes()), dest, "wp-content/uploads"))

	_, err := os.Stat(filepath.Join(dest, "wp-content", "uploads", "a.jpg"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dest, "index.php"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dest, "wp-content", "themes"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteTreePreservesSymlinks(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "real.txt"), "real")
	require.NoError(t, os.Symlink("real.txt", filepath.Join(src, "link.txt")))

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, src))

	dest := t.TempDir()
	require.NoError(t, ExtractTree(bytes.NewReader(buf.Bytes()), dest, ""))

	target, err := os.Readlink(filepath.Join(dest, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "real.txt", target)
}

func TestExtractTreeRejectsUnsafeEntries(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     4,
	}))
	_, err := tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	err = ExtractTree(bytes.NewReader(buf.Bytes()), t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe tar entry")
}
