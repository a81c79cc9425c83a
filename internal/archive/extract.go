package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// BundleContents are the member paths produced by opening a bundle.
type BundleContents struct {
	DumpPath  string
	FilesPath string
}

// OpenBundle decompresses a bundle into destDir and returns the paths of
// its two members. The restore pipeline calls this only after the
// bundle's checksum has been verified.
func OpenBundle(bundlePath, destDir string) (*BundleContents, error) {
	file, err := os.Open(bundlePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle %s: %w", bundlePath, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("bundle %s is not a gzip stream: %w", bundlePath, err)
	}
	defer gz.Close()

	contents := &BundleContents{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle %s: %w", bundlePath, err)
		}

		name := filepath.Base(header.Name)
		if name != DumpMemberName && name != FilesMemberName {
			continue
		}

		target := filepath.Join(destDir, name)
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", target, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, fmt.Errorf("failed to extract %s: %w", name, err)
		}
		if err := out.Close(); err != nil {
			return nil, err
		}

		switch name {
		case DumpMemberName:
			contents.DumpPath = target
		case FilesMemberName:
			contents.FilesPath = target
		}
	}

	if contents.DumpPath == "" {
		return nil, fmt.Errorf("bundle %s is missing its %s member", bundlePath, DumpMemberName)
	}
	if contents.FilesPath == "" {
		return nil, fmt.Errorf("bundle %s is missing its %s member", bundlePath, FilesMemberName)
	}
	return contents, nil
}
