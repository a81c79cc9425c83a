package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"wp-guardian/internal/execution"
	"wp-guardian/internal/logging"
)

// Binary is the object-storage sync tool backing the default provider.
const Binary = "rclone"

// RcloneStore is the Store implementation backed by an externally
// configured rclone remote. All invocations use argument vectors; remote
// paths are passed as single arguments so special characters in names
// cannot alter the command.
type RcloneStore struct {
	remoteName string
	dir        string
	runner     execution.Runner
	logger     *logging.Logger
}

// NewRcloneStore creates a store over the named rclone remote and
// directory.
func NewRcloneStore(remoteName, dir string, runner execution.Runner, logger *logging.Logger) *RcloneStore {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RcloneStore{
		remoteName: remoteName,
		dir:        dir,
		runner:     runner,
		logger:     logger,
	}
}

// remotePath renders remote:dir or remote:dir/name.
func (s *RcloneStore) remotePath(name string) string {
	path := fmt.Sprintf("%s:%s", s.remoteName, s.dir)
	if name != "" {
		path += "/" + name
	}
	return path
}

// Upload copies a local file to the remote directory.
func (s *RcloneStore) Upload(ctx context.Context, localPath, name string) error {
	return s.runner.Run(ctx, execution.CommandSpec{
		Name: Binary,
		Args: []string{"copyto", localPath, s.remotePath(name)},
	})
}

// List returns the names in the remote directory, sorted ascending. An
// empty or missing directory lists as empty.
func (s *RcloneStore) List(ctx context.Context) ([]string, error) {
	out, err := s.runner.RunOutput(ctx, execution.CommandSpec{
		Name: Binary,
		Args: []string{"lsf", "--files-only", s.remotePath("")},
	})
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Fetch copies the named remote file to localPath.
func (s *RcloneStore) Fetch(ctx context.Context, name, localPath string) error {
	return s.runner.Run(ctx, execution.CommandSpec{
		Name: Binary,
		Args: []string{"copyto", s.remotePath(name), localPath},
	})
}

// Delete removes the named remote files one by one; the first failure
// stops the pass and is returned.
func (s *RcloneStore) Delete(ctx context.Context, names []string) error {
	for _, name := range names {
		err := s.runner.Run(ctx, execution.CommandSpec{
			Name: Binary,
			Args: []string{"deletefile", s.remotePath(name)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete remote file %s: %w", name, err)
		}
	}
	return nil
}
