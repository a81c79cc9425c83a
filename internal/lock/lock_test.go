package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp-guardian/internal/errors"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")
	m := NewManager(path)

	require.NoError(t, m.Acquire())
	assert.Equal(t, path, m.Path())
	require.NoError(t, m.Release())

	// re-acquirable after release
	require.NoError(t, m.Acquire())
	require.NoError(t, m.Release())
}

func TestAcquireExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")

	first := NewManager(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewManager(path)
	err := second.Acquire()
	require.Error(t, err)
	assert.Equal(t, errors.KindLockContention, errors.KindOf(err))
}

func TestAcquireAfterContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.lock")

	first := NewManager(path)
	require.NoError(t, first.Acquire())

	second := NewManager(path)
	require.Error(t, second.Acquire())

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestReleaseWithoutAcquire(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "pipeline.lock"))
	assert.NoError(t, m.Release())
}
