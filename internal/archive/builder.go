package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"wp-guardian/internal/checksum"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/logging"
)

// Names of the two members inside every bundle.
const (
	DumpMemberName  = "database.sql"
	FilesMemberName = "files.tar"
)

// Artifact is one finished archive: the compressed bundle and its
// checksum sidecar. The two are created, published and deleted as a pair.
type Artifact struct {
	BundleName  string
	BundlePath  string
	SidecarPath string
	Digest      string
	CreatedAt   time.Time
}

// Builder produces point-in-time archives inside a private staging
// directory. Nothing it does is visible in the backup directory until
// Publish succeeds; any failure discards staging and leaves both the
// backup directory and the remote store untouched.
type Builder struct {
	siteRoot string
	logger   *logging.Logger
}

// NewBuilder creates an archive builder for the given file tree.
func NewBuilder(siteRoot string, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Builder{
		siteRoot: siteRoot,
		logger:   logger,
	}
}

// Build runs the archive steps in stagingDir from an already written
// database dump: uncompressed file-tree tar, compressed bundle, checksum
// sidecar. The bundle is written under a temporary name and only renamed
// to its final name once the compression stream has closed cleanly, so no
// observer can see a half-written bundle under the final name.
func (b *Builder) Build(stagingDir, dumpPath string, createdAt time.Time) (*Artifact, error) {
	if _, err := os.Stat(dumpPath); err != nil {
		return nil, errors.NewArchiveFailure("database dump is missing from staging", err)
	}

	filesPath := filepath.Join(stagingDir, FilesMemberName)
	b.logger.Debugf("Archiving file tree %s to %s", b.siteRoot, filesPath)
	if err := b.writeFilesTar(filesPath); err != nil {
		return nil, errors.NewArchiveFailure("file tree archive failed", err)
	}

	bundleName := Name(createdAt)
	bundlePath := filepath.Join(stagingDir, bundleName)
	b.logger.Debugf("Writing bundle %s", bundlePath)
	members := []bundleMember{
		{path: dumpPath, name: DumpMemberName},
		{path: filesPath, name: FilesMemberName},
	}
	if err := b.writeBundle(bundlePath, members...); err != nil {
		return nil, errors.NewArchiveFailure("bundle compression failed", err)
	}

	digest, err := checksum.FileDigest(bundlePath)
	if err != nil {
		return nil, errors.NewArchiveFailure("bundle checksum failed", err)
	}
	sidecarPath, err := checksum.WriteSidecar(bundlePath, digest)
	if err != nil {
		return nil, errors.NewArchiveFailure("sidecar write failed", err)
	}

	return &Artifact{
		BundleName:  bundleName,
		BundlePath:  bundlePath,
		SidecarPath: sidecarPath,
		Digest:      digest,
		CreatedAt:   createdAt,
	}, nil
}

// writeFilesTar writes the uncompressed tar of the site file tree.
func (b *Builder) writeFilesTar(destPath string) error {
	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if err := WriteTree(file, b.siteRoot); err != nil {
		file.Close()
		os.Remove(destPath)
		return err
	}
	return file.Close()
}

// bundleMember is one file entering the bundle under a fixed member name.
type bundleMember struct {
	path string
	name string
}

// writeBundle combines the dump and the file tar into one gzip-compressed
// tar bundle, via a temporary name renamed only on clean completion.
func (b *Builder) writeBundle(bundlePath string, members ...bundleMember) error {
	partialPath := bundlePath + ".partial"

	file, err := os.Create(partialPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partialPath, err)
	}

	if err := writeBundleMembers(file, members); err != nil {
		file.Close()
		os.Remove(partialPath)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(partialPath)
		return err
	}

	// The bundle exists under its final name only from this point on.
	if err := os.Rename(partialPath, bundlePath); err != nil {
		os.Remove(partialPath)
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return nil
}

func writeBundleMembers(w io.Writer, members []bundleMember) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, member := range members {
		info, err := os.Stat(member.path)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = member.name

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		file, err := os.Open(member.path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, file); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// Publish atomically moves the artifact pair from staging into the local
// backup directory. The bundle lands first, its sidecar immediately
// after; if the sidecar move fails the bundle is withdrawn so no store
// ever holds an unpaired archive.
func (b *Builder) Publish(artifact *Artifact, backupDir string) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return errors.NewArchiveFailure("cannot create backup directory", err)
	}

	finalBundle := filepath.Join(backupDir, filepath.Base(artifact.BundlePath))
	finalSidecar := filepath.Join(backupDir, filepath.Base(artifact.SidecarPath))

	if err := moveFile(artifact.BundlePath, finalBundle); err != nil {
		return errors.NewArchiveFailure("bundle publish failed", err)
	}
	if err := moveFile(artifact.SidecarPath, finalSidecar); err != nil {
		os.Remove(finalBundle)
		return errors.NewArchiveFailure("sidecar publish failed", err)
	}

	artifact.BundlePath = finalBundle
	artifact.SidecarPath = finalSidecar
	return nil
}

// moveFile renames src to dest, falling back to copy+rename when the
// backup directory sits on a different filesystem than staging.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	tmp := dest + ".partial"
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
