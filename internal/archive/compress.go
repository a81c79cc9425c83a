package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor wraps a writer in a compression stream. Safety snapshots of
// the current database use a configurable algorithm; archive bundles are
// always gzip so the naming convention stays truthful.
type Compressor interface {
	Extension() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// ForAlgorithm returns the compressor registered for the named algorithm.
func ForAlgorithm(name string) (Compressor, error) {
	switch name {
	case "gzip":
		return gzipCompressor{}, nil
	case "zstd":
		return zstdCompressor{}, nil
	case "lz4":
		return lz4Compressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", name)
	}
}

type gzipCompressor struct{}

func (gzipCompressor) Extension() string { return ".gz" }

func (gzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

func (gzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type zstdCompressor struct{}

func (zstdCompressor) Extension() string { return ".zst" }

func (zstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (zstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

type lz4Compressor struct{}

func (lz4Compressor) Extension() string { return ".lz4" }

func (lz4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
