package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"wp-guardian/internal/errors"
)

// Manager provides single-instance mutual exclusion for the backup
// pipeline via an advisory exclusive lock on a well-known lock file.
// The lock is non-blocking: a busy lock is reported immediately, never
// queued. The kernel releases it automatically when the process exits,
// crash included, so stale locks cannot accumulate.
type Manager struct {
	path string
	file *os.File
}

// NewManager creates a lock manager for the given lock file path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Acquire takes the exclusive lock. A held lock returns a
// KindLockContention error; the caller should exit, not retry.
func (m *Manager) Acquire() error {
	if m.file != nil {
		return errors.NewConfiguration("lock already acquired by this process", nil)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return errors.NewConfiguration(fmt.Sprintf("cannot create lock directory for %s", m.path), err)
	}

	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.NewConfiguration(fmt.Sprintf("cannot open lock file %s", m.path), err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return errors.NewLockContention(
			fmt.Sprintf("another backup run holds the lock on %s", m.path), err)
	}

	m.file = file
	return nil
}

// Release drops the lock. Safe to call when the lock is not held.
func (m *Manager) Release() error {
	if m.file == nil {
		return nil
	}

	err := unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
	closeErr := m.file.Close()
	m.file = nil

	if err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", m.path, err)
	}
	return closeErr
}

// Path returns the lock file path.
func (m *Manager) Path() string {
	return m.path
}
