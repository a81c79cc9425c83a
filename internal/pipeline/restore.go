package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"wp-guardian/internal/archive"
	"wp-guardian/internal/checksum"
	"wp-guardian/internal/config"
	"wp-guardian/internal/dump"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/execution"
	"wp-guardian/internal/lock"
	"wp-guardian/internal/logging"
	"wp-guardian/internal/remote"
	"wp-guardian/internal/wpconfig"
)

// RestoreMode selects what a restore run touches.
type RestoreMode int

const (
	// RestoreDatabase replaces only the database.
	RestoreDatabase RestoreMode = iota + 1
	// RestoreUploads replaces only the uploads directory.
	RestoreUploads
	// RestoreFiles replaces the whole file tree, database untouched.
	RestoreFiles
	// RestoreFull replaces the file tree and the database, and rewrites
	// the restored wp-config.php to the currently configured credentials
	// and cache settings.
	RestoreFull
)

// ParseRestoreMode maps the CLI mode number to a RestoreMode.
func ParseRestoreMode(n int) (RestoreMode, error) {
	if n < int(RestoreDatabase) || n > int(RestoreFull) {
		return 0, errors.NewRestoreValidation(fmt.Sprintf("unknown restore mode %d (1-4)", n), nil)
	}
	return RestoreMode(n), nil
}

// String names the mode for display and snapshot manifests.
func (m RestoreMode) String() string {
	switch m {
	case RestoreDatabase:
		return "database"
	case RestoreUploads:
		return "uploads"
	case RestoreFiles:
		return "files"
	case RestoreFull:
		return "full"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// touchesDatabase reports whether the mode replaces the database.
func (m RestoreMode) touchesDatabase() bool {
	return m == RestoreDatabase || m == RestoreFull
}

// RestoreResult reports one completed restore run.
type RestoreResult struct {
	SessionID  string
	Archive    string
	Mode       RestoreMode
	SnapshotID string
	Duration   time.Duration
}

// RestorePipeline drives one restore: select archive, download, verify,
// snapshot the current state, then replace what the mode covers. The
// checksum is verified before anything destructive happens, and every
// destructive step is preceded by a committed safety snapshot, so a
// failed or regretted restore can be rolled back explicitly.
type RestorePipeline struct {
	cfg    *config.Config
	locker *lock.Manager
	dumper Dumper
	store  remote.Store
	runner execution.Runner
	logger *logging.Logger
}

// NewRestorePipeline assembles a restore pipeline from its parts.
func NewRestorePipeline(cfg *config.Config, dumper Dumper, store remote.Store, runner execution.Runner, logger *logging.Logger) *RestorePipeline {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RestorePipeline{
		cfg:    cfg,
		locker: lock.NewManager(cfg.Paths.LockFile),
		dumper: dumper,
		store:  store,
		runner: runner,
		logger: logger,
	}
}

// ListArchives returns the restorable archive names on the remote store,
// oldest first.
func (p *RestorePipeline) ListArchives(ctx context.Context) ([]string, error) {
	names, err := p.store.List(ctx)
	if err != nil {
		return nil, errors.NewUploadFailure("cannot list remote store", err)
	}
	return archive.FilterBundles(names), nil
}

// SelectArchive resolves the archive to restore: the given name when set,
// otherwise the newest archive on the remote.
func (p *RestorePipeline) SelectArchive(ctx context.Context, name string) (string, error) {
	bundles, err := p.ListArchives(ctx)
	if err != nil {
		return "", err
	}
	if len(bundles) == 0 {
		return "", errors.NewRestoreValidation("remote store holds no archives", nil)
	}

	if name == "" {
		return bundles[len(bundles)-1], nil
	}
	for _, bundle := range bundles {
		if bundle == name {
			return name, nil
		}
	}
	return "", errors.NewRestoreValidation(fmt.Sprintf("archive %s not found on remote store", name), nil)
}

// Run executes the restore of archiveName in the given mode.
func (p *RestorePipeline) Run(ctx context.Context, archiveName string, mode RestoreMode) (*RestoreResult, error) {
	start := time.Now()
	result := &RestoreResult{
		SessionID: uuid.New().String(),
		Archive:   archiveName,
		Mode:      mode,
	}
	p.logger.Infof("Starting %s restore of %s (session %s)", mode, archiveName, result.SessionID)

	if err := p.locker.Acquire(); err != nil {
		return nil, err
	}
	defer p.locker.Release()

	if err := p.preflight(ctx, mode); err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp("", "wp-guardian-restore-")
	if err != nil {
		return nil, errors.NewRestoreStep("cannot create work directory", err)
	}
	defer os.RemoveAll(workDir)

	contents, err := p.fetchAndVerify(ctx, archiveName, workDir)
	if err != nil {
		return nil, err
	}

	snapshotter, err := NewSnapshotter(p.cfg.Paths.SnapshotDir, p.cfg.Snapshot.Compression, p.dumper, p.logger)
	if err != nil {
		return nil, err
	}
	if err := p.snapshot(ctx, snapshotter, mode, archiveName); err != nil {
		return nil, err
	}
	result.SnapshotID = snapshotter.Manifest().ID

	if err := p.apply(ctx, mode, contents); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Infof("Restore session %s finished in %s", result.SessionID, result.Duration.Round(time.Millisecond))
	return result, nil
}

func (p *RestorePipeline) preflight(ctx context.Context, mode RestoreMode) error {
	binaries := remote.RequiredBinaries(p.cfg)
	if mode.touchesDatabase() {
		binaries = append(binaries, dump.ClientBinary, dump.DumpBinary)
	}
	if err := execution.Preflight(p.runner, binaries...); err != nil {
		return errors.NewDependencyMissing(err.Error(), nil)
	}
	if mode.touchesDatabase() {
		if err := p.dumper.Preflight(ctx); err != nil {
			return errors.NewConfiguration("database preflight failed", err)
		}
	}
	return nil
}

// fetchAndVerify downloads the bundle and its sidecar, verifies the
// digest, and opens the bundle. A mismatch aborts the restore before any
// snapshot or destructive step.
func (p *RestorePipeline) fetchAndVerify(ctx context.Context, archiveName, workDir string) (*archive.BundleContents, error) {
	bundlePath := filepath.Join(workDir, archiveName)
	sidecarName := archive.SidecarName(archiveName)
	sidecarPath := filepath.Join(workDir, sidecarName)

	if err := p.fetch(ctx, archiveName, bundlePath); err != nil {
		return nil, err
	}
	if err := p.fetch(ctx, sidecarName, sidecarPath); err != nil {
		return nil, err
	}

	if err := checksum.VerifyFile(bundlePath, sidecarPath); err != nil {
		return nil, err
	}
	p.logger.Infof("Verified checksum of %s", archiveName)

	contents, err := archive.OpenBundle(bundlePath, workDir)
	if err != nil {
		return nil, errors.NewRestoreValidation("cannot open verified bundle", err)
	}
	return contents, nil
}

func (p *RestorePipeline) fetch(ctx context.Context, name, localPath string) error {
	start := time.Now()
	err := p.store.Fetch(ctx, name, localPath)

	var size int64
	if info, statErr := os.Stat(localPath); statErr == nil {
		size = info.Size()
	}
	p.logger.LogRemoteTransfer("download", name, size, time.Since(start), err)

	if err != nil {
		if errors.KindOf(err) == errors.KindUploadFailure {
			return err
		}
		return errors.NewUploadFailure(fmt.Sprintf("download of %s failed", name), err)
	}
	return nil
}

// snapshot saves everything the mode is about to replace, then commits
// the manifest. Nothing destructive runs until the commit has succeeded.
func (p *RestorePipeline) snapshot(ctx context.Context, snapshotter *Snapshotter, mode RestoreMode, archiveName string) error {
	if err := snapshotter.Begin(mode.String(), archiveName); err != nil {
		return err
	}

	if mode.touchesDatabase() {
		if err := snapshotter.SnapshotDatabase(ctx, p.cfg.Database.Name); err != nil {
			return err
		}
	}
	switch mode {
	case RestoreUploads:
		if err := snapshotter.SetAsideTree(p.cfg.UploadsPath()); err != nil {
			return err
		}
	case RestoreFiles, RestoreFull:
		if err := snapshotter.SetAsideTree(p.cfg.Paths.SiteRoot); err != nil {
			return err
		}
	}

	return snapshotter.Commit()
}

func (p *RestorePipeline) apply(ctx context.Context, mode RestoreMode, contents *archive.BundleContents) error {
	switch mode {
	case RestoreDatabase:
		return p.applyDatabase(ctx, contents)
	case RestoreUploads:
		return p.extractFiles(contents, p.uploadsPrefix())
	case RestoreFiles:
		return p.extractFiles(contents, "")
	case RestoreFull:
		if err := p.extractFiles(contents, ""); err != nil {
			return err
		}
		if err := p.applyDatabase(ctx, contents); err != nil {
			return err
		}
		if err := wpconfig.Rewrite(p.cfg.Paths.SiteRoot, p.cfg.Database, p.cfg.Cache); err != nil {
			return errors.NewRestoreStep("wp-config rewrite failed", err)
		}
		p.logger.Info("Rewrote wp-config.php credentials and cache settings")
		return nil
	}
	return errors.NewRestoreValidation(fmt.Sprintf("unknown restore mode %d", int(mode)), nil)
}

func (p *RestorePipeline) applyDatabase(ctx context.Context, contents *archive.BundleContents) error {
	if err := p.dumper.Apply(ctx, contents.DumpPath); err != nil {
		return errors.NewRestoreStep("database restore failed", err)
	}
	p.logger.Infof("Restored database %s", p.cfg.Database.Name)
	return nil
}

// extractFiles replants the archived file tree, or just the subtree under
// prefix, at the site root.
func (p *RestorePipeline) extractFiles(contents *archive.BundleContents, prefix string) error {
	file, err := os.Open(contents.FilesPath)
	if err != nil {
		return errors.NewRestoreStep("cannot open archived file tree", err)
	}
	defer file.Close()

	if err := os.MkdirAll(p.cfg.Paths.SiteRoot, 0755); err != nil {
		return errors.NewRestoreStep("cannot create site root", err)
	}
	if err := archive.ExtractTree(file, p.cfg.Paths.SiteRoot, prefix); err != nil {
		return errors.NewRestoreStep("file tree restore failed", err)
	}
	if prefix == "" {
		p.logger.Infof("Restored file tree at %s", p.cfg.Paths.SiteRoot)
	} else {
		p.logger.Infof("Restored %s under %s", prefix, p.cfg.Paths.SiteRoot)
	}
	return nil
}

// uploadsPrefix is the uploads directory as a slash-relative tar prefix.
func (p *RestorePipeline) uploadsPrefix() string {
	return filepath.ToSlash(p.cfg.Paths.UploadsDir)
}

// RollbackLast replays the most recent committed safety snapshot. This
// is the only path that ever replays a snapshot; no restore failure
// triggers it implicitly.
func (p *RestorePipeline) RollbackLast(ctx context.Context) (*SnapshotManifest, error) {
	if err := p.locker.Acquire(); err != nil {
		return nil, err
	}
	defer p.locker.Release()

	manifest, err := LatestManifest(p.cfg.Paths.SnapshotDir)
	if err != nil {
		return nil, errors.NewRestoreValidation("cannot load snapshot manifest", err)
	}
	if manifest == nil {
		return nil, errors.NewRestoreValidation("no safety snapshot to roll back", nil)
	}

	snapshotter, err := NewSnapshotter(p.cfg.Paths.SnapshotDir, p.cfg.Snapshot.Compression, p.dumper, p.logger)
	if err != nil {
		return nil, err
	}
	if err := snapshotter.Rollback(ctx, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}
