package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"wp-guardian/internal/config"
)

// AzureStore is the Store implementation over an Azure Blob Storage
// container. Blobs live under the configured directory prefix.
type AzureStore struct {
	serviceURL azblob.ServiceURL
	container  string
	prefix     string
}

// NewAzureStore creates a store over the configured container and
// directory using shared key credentials.
func NewAzureStore(cfg config.AzureConfig, dir string) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName))
	if err != nil {
		return nil, fmt.Errorf("invalid Azure service URL: %w", err)
	}

	return &AzureStore{
		serviceURL: azblob.NewServiceURL(*serviceURL, pipeline),
		container:  cfg.Container,
		prefix:     normalizePrefix(dir),
	}, nil
}

// Upload streams the local file into the container under the directory
// prefix.
func (s *AzureStore) Upload(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", localPath, err)
	}
	defer file.Close()

	blobURL := s.serviceURL.NewContainerURL(s.container).NewBlockBlobURL(s.prefix + name)
	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload %s to Azure: %w", name, err)
	}
	return nil
}

// List returns the blob names under the directory prefix, sorted
// ascending.
func (s *AzureStore) List(ctx context.Context) ([]string, error) {
	containerURL := s.serviceURL.NewContainerURL(s.container)

	var names []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: s.prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list Azure blobs: %w", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			name := path.Base(blob.Name)
			if name != "" && name != "." {
				names = append(names, name)
			}
		}
		marker = listResponse.NextMarker
	}

	sort.Strings(names)
	return names, nil
}

// Fetch downloads the named blob to localPath.
func (s *AzureStore) Fetch(ctx context.Context, name, localPath string) error {
	blobURL := s.serviceURL.NewContainerURL(s.container).NewBlockBlobURL(s.prefix + name)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return fmt.Errorf("failed to fetch %s from Azure: %w", name, err)
	}
	body := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	file, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", localPath, err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return file.Close()
}

// Delete removes the named blobs one by one; the first failure stops
// the pass and is returned.
func (s *AzureStore) Delete(ctx context.Context, names []string) error {
	containerURL := s.serviceURL.NewContainerURL(s.container)
	for _, name := range names {
		blobURL := containerURL.NewBlockBlobURL(s.prefix + name)
		_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
		if err != nil {
			return fmt.Errorf("failed to delete Azure blob %s: %w", name, err)
		}
	}
	return nil
}
