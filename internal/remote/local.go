package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// LocalStore is the Store implementation over a local directory. The
// retention pruner runs the same algorithm against the local backup
// directory and the remote store; this adapter lets it treat both
// uniformly, and it doubles as the in-memory-free test double for the
// cloud backends.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a directory-backed store.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Upload copies localPath into the directory under name.
func (s *LocalStore) Upload(ctx context.Context, localPath, name string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", s.dir, err)
	}
	return copyFile(localPath, filepath.Join(s.dir, name))
}

// List returns the file names in the directory, sorted ascending. A
// missing directory lists as empty rather than failing, matching an
// empty remote.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot list directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Fetch copies the named file out of the directory.
func (s *LocalStore) Fetch(ctx context.Context, name, localPath string) error {
	return copyFile(filepath.Join(s.dir, name), localPath)
}

// Delete removes the named files. The first failure is returned; already
// deleted entries stay deleted.
func (s *LocalStore) Delete(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cannot delete %s: %w", name, err)
		}
	}
	return nil
}

// Dir returns the backing directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("cannot copy %s to %s: %w", src, dest, err)
	}
	return out.Close()
}
