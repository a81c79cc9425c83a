package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"wp-guardian/internal/config"
)

// GCSStore is the Store implementation over a Google Cloud Storage
// bucket. Objects live under the configured directory prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a store over the configured bucket and directory.
// With no credentials file the client falls back to application default
// credentials.
func NewGCSStore(ctx context.Context, cfg config.GCSConfig, dir string) (*GCSStore, error) {
	var client *storage.Client
	var err error

	if cfg.CredentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(dir),
	}, nil
}

// Upload streams the local file into the bucket under the directory
// prefix.
func (s *GCSStore) Upload(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", localPath, err)
	}
	defer file.Close()

	writer := s.client.Bucket(s.bucket).Object(s.prefix + name).NewWriter(ctx)
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload %s to GCS: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS upload of %s: %w", name, err)
	}
	return nil
}

// List returns the object names under the directory prefix, sorted
// ascending.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	var names []string

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects: %w", err)
		}
		name := path.Base(attrs.Name)
		if name != "" && name != "." {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Fetch downloads the named object to localPath.
func (s *GCSStore) Fetch(ctx context.Context, name, localPath string) error {
	reader, err := s.client.Bucket(s.bucket).Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch %s from GCS: %w", name, err)
	}
	defer reader.Close()

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return file.Close()
}

// Delete removes the named objects one by one; the first failure stops
// the pass and is returned.
func (s *GCSStore) Delete(ctx context.Context, names []string) error {
	bucket := s.client.Bucket(s.bucket)
	for _, name := range names {
		if err := bucket.Object(s.prefix + name).Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete GCS object %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
