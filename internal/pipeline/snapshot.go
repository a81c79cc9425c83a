package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"wp-guardian/internal/archive"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/logging"
)

const manifestSuffix = ".manifest.yaml"

// SnapshotEntry records one thing a safety snapshot saved.
type SnapshotEntry struct {
	// Kind is "database" or "tree"
	Kind string `yaml:"kind"`
	// Source is the live path (tree) or database name (database)
	Source string `yaml:"source"`
	// Stored is where the saved copy lives
	Stored string `yaml:"stored"`
}

// SnapshotManifest describes one safety snapshot, written next to its
// files so a later rollback knows exactly what to put back.
type SnapshotManifest struct {
	ID        string          `yaml:"id"`
	CreatedAt time.Time       `yaml:"created_at"`
	Mode      string          `yaml:"mode"`
	Archive   string          `yaml:"archive"`
	Entries   []SnapshotEntry `yaml:"entries"`
}

// Snapshotter captures the current state of whatever a restore is about
// to overwrite. Snapshots are taken before the first destructive step
// and are never replayed automatically; rollback is a separate, explicit
// operation.
type Snapshotter struct {
	dir        string
	compressor archive.Compressor
	dumper     Dumper
	logger     *logging.Logger

	manifest *SnapshotManifest
}

// NewSnapshotter creates a snapshotter writing under dir, compressing
// database snapshots with the named algorithm.
func NewSnapshotter(dir, compression string, dumper Dumper, logger *logging.Logger) (*Snapshotter, error) {
	compressor, err := archive.ForAlgorithm(compression)
	if err != nil {
		return nil, errors.NewConfiguration("invalid snapshot compression", err)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Snapshotter{
		dir:        dir,
		compressor: compressor,
		dumper:     dumper,
		logger:     logger,
	}, nil
}

// Begin opens a new snapshot for a restore of the named archive. The ID
// leads with a timestamp so manifests sort chronologically by name.
func (s *Snapshotter) Begin(mode, archiveName string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.NewRestoreStep("cannot create snapshot directory", err)
	}
	s.manifest = &SnapshotManifest{
		ID:        time.Now().Format(archive.TimestampLayout) + "-" + uuid.New().String()[:8],
		CreatedAt: time.Now(),
		Mode:      mode,
		Archive:   archiveName,
	}
	return nil
}

// SnapshotDatabase dumps the current database into the snapshot
// directory, compressed.
func (s *Snapshotter) SnapshotDatabase(ctx context.Context, databaseName string) error {
	plain := filepath.Join(s.dir, s.manifest.ID+"-database.sql")
	if err := s.dumper.Dump(ctx, plain); err != nil {
		return errors.NewRestoreStep("safety snapshot of database failed", err)
	}

	stored := plain + s.compressor.Extension()
	if err := s.compressFile(plain, stored); err != nil {
		os.Remove(plain)
		return errors.NewRestoreStep("cannot compress database snapshot", err)
	}
	os.Remove(plain)

	s.logger.Infof("Saved database snapshot %s", filepath.Base(stored))
	s.manifest.Entries = append(s.manifest.Entries, SnapshotEntry{
		Kind:   "database",
		Source: databaseName,
		Stored: stored,
	})
	return nil
}

// SetAsideTree renames a live directory to a snapshot sibling in the
// same parent, so the move is a rename and never a copy.
func (s *Snapshotter) SetAsideTree(path string) error {
	stored := path + ".snapshot-" + s.manifest.ID
	if err := os.Rename(path, stored); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warnf("Nothing to snapshot at %s", path)
			return nil
		}
		return errors.NewRestoreStep(fmt.Sprintf("cannot set aside %s", path), err)
	}

	s.logger.Infof("Set aside %s as %s", path, filepath.Base(stored))
	s.manifest.Entries = append(s.manifest.Entries, SnapshotEntry{
		Kind:   "tree",
		Source: path,
		Stored: stored,
	})
	return nil
}

// Commit writes the manifest. Only committed snapshots are visible to
// rollback.
func (s *Snapshotter) Commit() error {
	data, err := yaml.Marshal(s.manifest)
	if err != nil {
		return errors.NewRestoreStep("cannot encode snapshot manifest", err)
	}
	path := filepath.Join(s.dir, s.manifest.ID+manifestSuffix)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.NewRestoreStep("cannot write snapshot manifest", err)
	}
	return nil
}

// Manifest returns the open manifest, nil before Begin.
func (s *Snapshotter) Manifest() *SnapshotManifest {
	return s.manifest
}

func (s *Snapshotter) compressFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	cw, err := s.compressor.NewWriter(out)
	if err != nil {
		out.Close()
		return err
	}
	if _, err := io.Copy(cw, in); err != nil {
		cw.Close()
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := cw.Close(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// LatestManifest loads the newest committed snapshot manifest under dir,
// or nil when no snapshot exists.
func LatestManifest(dir string) (*SnapshotManifest, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot list snapshot directory %s: %w", dir, err)
	}

	var latest *SnapshotManifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestSuffix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var manifest SnapshotManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("snapshot manifest %s is malformed: %w", entry.Name(), err)
		}
		if latest == nil || manifest.CreatedAt.After(latest.CreatedAt) {
			m := manifest
			latest = &m
		}
	}
	return latest, nil
}

// Rollback replays a committed snapshot: set-aside trees move back over
// whatever the restore left behind, and the database snapshot is applied
// last. It runs only when explicitly requested.
func (s *Snapshotter) Rollback(ctx context.Context, manifest *SnapshotManifest) error {
	for i := len(manifest.Entries) - 1; i >= 0; i-- {
		entry := manifest.Entries[i]
		switch entry.Kind {
		case "tree":
			if err := s.rollbackTree(entry); err != nil {
				return err
			}
		case "database":
			if err := s.rollbackDatabase(ctx, entry); err != nil {
				return err
			}
		default:
			return errors.NewRestoreValidation(
				fmt.Sprintf("snapshot manifest %s has unknown entry kind %q", manifest.ID, entry.Kind), nil)
		}
	}
	s.logger.Infof("Rolled back snapshot %s", manifest.ID)
	return nil
}

func (s *Snapshotter) rollbackTree(entry SnapshotEntry) error {
	if _, err := os.Stat(entry.Stored); err != nil {
		return errors.NewRestoreValidation(
			fmt.Sprintf("snapshot tree %s is gone", entry.Stored), err)
	}
	if err := os.RemoveAll(entry.Source); err != nil {
		return errors.NewRestoreStep(fmt.Sprintf("cannot clear %s", entry.Source), err)
	}
	if err := os.Rename(entry.Stored, entry.Source); err != nil {
		return errors.NewRestoreStep(fmt.Sprintf("cannot move %s back to %s", entry.Stored, entry.Source), err)
	}
	s.logger.Infof("Restored %s from snapshot", entry.Source)
	return nil
}

func (s *Snapshotter) rollbackDatabase(ctx context.Context, entry SnapshotEntry) error {
	in, err := os.Open(entry.Stored)
	if err != nil {
		return errors.NewRestoreValidation(
			fmt.Sprintf("snapshot dump %s is gone", entry.Stored), err)
	}
	defer in.Close()

	reader, err := s.compressor.NewReader(in)
	if err != nil {
		return errors.NewRestoreStep("cannot decompress database snapshot", err)
	}
	defer reader.Close()

	plain, err := os.CreateTemp(s.dir, "rollback-*.sql")
	if err != nil {
		return errors.NewRestoreStep("cannot stage database snapshot", err)
	}
	defer os.Remove(plain.Name())

	if _, err := io.Copy(plain, reader); err != nil {
		plain.Close()
		return errors.NewRestoreStep("cannot decompress database snapshot", err)
	}
	if err := plain.Close(); err != nil {
		return err
	}

	if err := s.dumper.Apply(ctx, plain.Name()); err != nil {
		return errors.NewRestoreStep("cannot replay database snapshot", err)
	}
	s.logger.Infof("Restored database %s from snapshot", entry.Source)
	return nil
}
