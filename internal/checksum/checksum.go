package checksum

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"wp-guardian/internal/errors"
)

// SidecarSuffix is appended to an archive name to form its sidecar name.
const SidecarSuffix = ".sha256"

// FileDigest computes the SHA-256 digest of a file, streamed so archives
// never need to fit in memory.
func FileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, bufio.NewReader(file)); err != nil {
		return "", fmt.Errorf("failed to read %s for checksum: %w", path, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Digest computes the SHA-256 digest of in-memory data.
func Digest(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// WriteSidecar writes the checksum sidecar for the named bundle:
// `<hex-digest>  <filename>\n`, the sha256sum(1) format.
func WriteSidecar(bundlePath, digest string) (string, error) {
	sidecarPath := bundlePath + SidecarSuffix
	line := fmt.Sprintf("%s  %s\n", digest, filepath.Base(bundlePath))

	if err := os.WriteFile(sidecarPath, []byte(line), 0644); err != nil {
		return "", fmt.Errorf("failed to write sidecar %s: %w", sidecarPath, err)
	}
	return sidecarPath, nil
}

// ParseSidecar reads a sidecar file and returns the recorded digest and
// filename.
func ParseSidecar(sidecarPath string) (digest, filename string, err error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read sidecar %s: %w", sidecarPath, err)
	}

	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) < 2 {
		return "", "", fmt.Errorf("malformed sidecar %s: expected \"<digest>  <filename>\"", sidecarPath)
	}
	if len(fields[0]) != sha256.Size*2 {
		return "", "", fmt.Errorf("malformed sidecar %s: digest has wrong length", sidecarPath)
	}
	if _, err := hex.DecodeString(fields[0]); err != nil {
		return "", "", fmt.Errorf("malformed sidecar %s: digest is not hex: %w", sidecarPath, err)
	}

	return fields[0], fields[1], nil
}

// VerifyFile compares the bundle's computed digest against the digest
// recorded in its sidecar. A disagreement is a KindChecksumMismatch error;
// the archive must not be trusted.
func VerifyFile(bundlePath, sidecarPath string) error {
	expected, _, err := ParseSidecar(sidecarPath)
	if err != nil {
		return errors.NewChecksumMismatch("unreadable checksum sidecar", err)
	}

	actual, err := FileDigest(bundlePath)
	if err != nil {
		return errors.NewChecksumMismatch("unreadable bundle", err)
	}

	if actual != expected {
		return errors.NewChecksumMismatch(
			fmt.Sprintf("digest mismatch for %s: sidecar records %s, bundle hashes to %s",
				filepath.Base(bundlePath), expected, actual), nil)
	}
	return nil
}

// VerifyAgainstDigest compares the bundle's computed digest against an
// externally supplied digest (e.g. one read back from the remote store).
func VerifyAgainstDigest(bundlePath, expected string) error {
	actual, err := FileDigest(bundlePath)
	if err != nil {
		return errors.NewChecksumMismatch("unreadable bundle", err)
	}
	if actual != expected {
		return errors.NewChecksumMismatch(
			fmt.Sprintf("digest mismatch for %s: expected %s, bundle hashes to %s",
				filepath.Base(bundlePath), expected, actual), nil)
	}
	return nil
}
