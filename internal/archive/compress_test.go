package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForAlgorithmRoundTrip(t *testing.T) {
	payload := []byte("CREATE TABLE wp_posts (ID bigint unsigned NOT NULL);")

	for _, algorithm := range []string{"gzip", "zstd", "lz4"} {
		t.Run(algorithm, func(t *testing.T) {
			compressor, err := ForAlgorithm(algorithm)
			require.NoError(t, err)
			assert.NotEmpty(t, compressor.Extension())

			var buf bytes.Buffer
			w, err := compressor.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := compressor.NewReader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			defer r.Close()

			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}
}

func TestForAlgorithmUnknown(t *testing.T) {
	_, err := ForAlgorithm("brotli")
	assert.Error(t, err)
}
