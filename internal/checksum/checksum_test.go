package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp-guardian/internal/errors"
)

func writeBundle(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileDigestMatchesDigest(t *testing.T) {
	path := writeBundle(t, "bundle.tar.gz", "archive bytes")

	fromFile, err := FileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte("archive bytes")), fromFile)
	assert.Len(t, fromFile, 64)
}

func TestWriteSidecarFormat(t *testing.T) {
	path := writeBundle(t, "wp-backup-2026-08-20_03-00-00.tar.gz", "bytes")
	digest, err := FileDigest(path)
	require.NoError(t, err)

	sidecarPath, err := WriteSidecar(path, digest)
	require.NoError(t, err)
	assert.Equal(t, path+SidecarSuffix, sidecarPath)

	content, err := os.ReadFile(sidecarPath)
	require.NoError(t, err)
	assert.Equal(t, digest+"  wp-backup-2026-08-20_03-00-00.tar.gz\n", string(content))
}

func TestParseSidecar(t *testing.T) {
	path := writeBundle(t, "wp-backup-2026-08-20_03-00-00.tar.gz", "bytes")
	digest, err := FileDigest(path)
	require.NoError(t, err)
	sidecarPath, err := WriteSidecar(path, digest)
	require.NoError(t, err)

	parsed, filename, err := ParseSidecar(sidecarPath)
	require.NoError(t, err)
	assert.Equal(t, digest, parsed)
	assert.Equal(t, "wp-backup-2026-08-20_03-00-00.tar.gz", filename)
}

func TestParseSidecarMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"no filename", "abc123\n"},
		{"short digest", "abc123  bundle.tar.gz\n"},
		{"non-hex digest", "zzzz5e8f0d030f8edcbc7262b0c8bbf7a2c7d9ce951bee01917459a51c13a6b9  bundle.tar.gz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bundle.tar.gz.sha256")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, _, err := ParseSidecar(path)
			assert.Error(t, err)
		})
	}
}

func TestVerifyFile(t *testing.T) {
	path := writeBundle(t, "bundle.tar.gz", "archive bytes")
	digest, err := FileDigest(path)
	require.NoError(t, err)
	sidecarPath, err := WriteSidecar(path, digest)
	require.NoError(t, err)

	assert.NoError(t, VerifyFile(path, sidecarPath))
}

func TestVerifyFileDetectsBitFlip(t *testing.T) {
	path := writeBundle(t, "bundle.tar.gz", "archive bytes")
	digest, err := FileDigest(path)
	require.NoError(t, err)
	sidecarPath, err := WriteSidecar(path, digest)
	require.NoError(t, err)

	// flip one bit in the bundle
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0600))

	err = VerifyFile(path, sidecarPath)
	require.Error(t, err)
	assert.Equal(t, errors.KindChecksumMismatch, errors.KindOf(err))
}

func TestVerifyAgainstDigest(t *testing.T) {
	path := writeBundle(t, "bundle.tar.gz", "archive bytes")
	digest, err := FileDigest(path)
	require.NoError(t, err)

	assert.NoError(t, VerifyAgainstDigest(path, digest))

	err = VerifyAgainstDigest(path, Digest([]byte("other")))
	require.Error(t, err)
	assert.Equal(t, errors.KindChecksumMismatch, errors.KindOf(err))
}
