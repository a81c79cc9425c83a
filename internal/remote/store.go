package remote

import "context"

// Store abstracts the object store that mirrors archives off-host. One
// store instance is bound to one flat remote directory; archive names
// never contain path separators. Implementations surface failures
// verbatim and never retry internally: retry policy belongs to the
// decorator in retry.go, composed by the caller.
type Store interface {
	// Upload copies a local file to the remote directory under name.
	Upload(ctx context.Context, localPath, name string) error
	// List returns the names present in the remote directory, sorted
	// lexically ascending.
	List(ctx context.Context) ([]string, error)
	// Fetch copies the named remote file to localPath.
	Fetch(ctx context.Context, name, localPath string) error
	// Delete removes the named files from the remote directory.
	Delete(ctx context.Context, names []string) error
}
