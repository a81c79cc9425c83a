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
	"wp-guardian/internal/retention"
)

// Stage names the phases of a backup run, in order.
type Stage string

const (
	StageLocking    Stage = "locking"
	StagePreflight  Stage = "preflight"
	StageDumping    Stage = "dumping"
	StageArchiving  Stage = "archiving"
	StagePublishing Stage = "publishing"
	StageUploading  Stage = "uploading"
	StageVerifying  Stage = "verifying"
	StagePruning    Stage = "pruning"
	StageDone       Stage = "done"
)

// Dumper is the database side of both pipelines: dump for backup and
// safety snapshots, apply for restore.
type Dumper interface {
	Preflight(ctx context.Context) error
	Dump(ctx context.Context, destPath string) error
	Apply(ctx context.Context, dumpPath string) error
}

// BackupResult reports one completed backup run.
type BackupResult struct {
	RunID    string
	Artifact *archive.Artifact
	Duration time.Duration
	// LocalPrune and RemotePrune report the retention pass over each
	// store.
	LocalPrune  *retention.Result
	RemotePrune *retention.Result
	// Warnings carries non-fatal problems, currently only prune failures.
	Warnings []string
}

// BackupPipeline drives one backup end to end: lock, preflight, dump,
// archive, publish, upload, verify, prune. Until the publish stage
// succeeds nothing is visible outside a private staging directory, and a
// failure in any stage before pruning leaves both stores exactly as they
// were. Prune failures never fail the run; the archive is already safe
// by then.
type BackupPipeline struct {
	cfg    *config.Config
	locker *lock.Manager
	dumper Dumper
	store  remote.Store
	runner execution.Runner
	logger *logging.Logger

	// OnStage, when set, observes stage transitions for display.
	OnStage func(Stage)
}

// NewBackupPipeline assembles a pipeline from its parts.
func NewBackupPipeline(cfg *config.Config, dumper Dumper, store remote.Store, runner execution.Runner, logger *logging.Logger) *BackupPipeline {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &BackupPipeline{
		cfg:    cfg,
		locker: lock.NewManager(cfg.Paths.LockFile),
		dumper: dumper,
		store:  store,
		runner: runner,
		logger: logger,
	}
}

func (p *BackupPipeline) enter(stage Stage) {
	if p.OnStage != nil {
		p.OnStage(stage)
	}
	p.logger.LogStage(string(stage), nil)
}

// Run executes the backup. The returned error's kind determines the
// process exit code.
func (p *BackupPipeline) Run(ctx context.Context) (*BackupResult, error) {
	start := time.Now()
	result := &BackupResult{RunID: uuid.New().String()}
	p.logger.Infof("Starting backup run %s", result.RunID)

	p.enter(StageLocking)
	if err := p.locker.Acquire(); err != nil {
		return nil, err
	}
	defer p.locker.Release()

	p.enter(StagePreflight)
	if err := p.preflight(ctx); err != nil {
		return nil, err
	}

	stagingDir := filepath.Join(p.cfg.Paths.BackupDir, ".staging-"+result.RunID)
	if err := os.MkdirAll(stagingDir, 0700); err != nil {
		return nil, errors.NewArchiveFailure("cannot create staging directory", err)
	}
	defer os.RemoveAll(stagingDir)

	p.enter(StageDumping)
	dumpPath := filepath.Join(stagingDir, archive.DumpMemberName)
	p.logger.Debugf("Dumping database to %s", dumpPath)
	if err := p.dumper.Dump(ctx, dumpPath); err != nil {
		return nil, errors.NewDumpFailure("database dump failed", err)
	}

	p.enter(StageArchiving)
	builder := archive.NewBuilder(p.cfg.Paths.SiteRoot, p.logger)
	artifact, err := builder.Build(stagingDir, dumpPath, start)
	if err != nil {
		return nil, err
	}
	result.Artifact = artifact

	p.enter(StagePublishing)
	if err := builder.Publish(artifact, p.cfg.Paths.BackupDir); err != nil {
		return nil, err
	}
	p.logger.Infof("Published %s locally", artifact.BundleName)

	p.enter(StageUploading)
	if err := p.upload(ctx, artifact); err != nil {
		return nil, err
	}

	p.enter(StageVerifying)
	if err := p.verify(ctx, artifact, stagingDir); err != nil {
		return nil, err
	}
	p.logger.Infof("Verified %s on remote store", artifact.BundleName)

	p.enter(StagePruning)
	p.prune(ctx, result)

	p.enter(StageDone)
	result.Duration = time.Since(start)
	p.logger.Infof("Backup run %s finished in %s", result.RunID, result.Duration.Round(time.Millisecond))
	return result, nil
}

// preflight fails fast on missing tools or an unreachable database,
// before any work or disk churn happens.
func (p *BackupPipeline) preflight(ctx context.Context) error {
	binaries := append([]string{dump.DumpBinary}, remote.RequiredBinaries(p.cfg)...)
	if err := execution.Preflight(p.runner, binaries...); err != nil {
		return errors.NewDependencyMissing(err.Error(), nil)
	}
	if err := p.dumper.Preflight(ctx); err != nil {
		return errors.NewConfiguration("database preflight failed", err)
	}
	return nil
}

// upload pushes the bundle and then its sidecar. If the sidecar fails the
// bundle is withdrawn from the remote so the pair invariant holds there
// too.
func (p *BackupPipeline) upload(ctx context.Context, artifact *archive.Artifact) error {
	sidecarName := archive.SidecarName(artifact.BundleName)

	if err := p.transfer(ctx, artifact.BundlePath, artifact.BundleName); err != nil {
		return err
	}
	if err := p.transfer(ctx, artifact.SidecarPath, sidecarName); err != nil {
		if delErr := p.store.Delete(ctx, []string{artifact.BundleName}); delErr != nil {
			p.logger.Warnf("Failed to withdraw unpaired remote bundle %s: %v", artifact.BundleName, delErr)
		}
		return err
	}
	return nil
}

func (p *BackupPipeline) transfer(ctx context.Context, localPath, name string) error {
	start := time.Now()
	info, statErr := os.Stat(localPath)
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	err := p.store.Upload(ctx, localPath, name)
	p.logger.LogRemoteTransfer("upload", name, size, time.Since(start), err)
	if err != nil {
		if errors.KindOf(err) == errors.KindUploadFailure {
			return err
		}
		return errors.NewUploadFailure(fmt.Sprintf("upload of %s failed", name), err)
	}
	return nil
}

// verify reads the checksum sidecar back from the remote and compares
// its digest against the digest computed from the local bundle. Matching
// digests prove the remote holds the exact published bytes; only then
// may retention delete older archives.
func (p *BackupPipeline) verify(ctx context.Context, artifact *archive.Artifact, stagingDir string) error {
	sidecarName := archive.SidecarName(artifact.BundleName)
	fetched := filepath.Join(stagingDir, "remote-"+sidecarName)

	if err := p.store.Fetch(ctx, sidecarName, fetched); err != nil {
		if errors.KindOf(err) == errors.KindUploadFailure {
			return err
		}
		return errors.NewUploadFailure("cannot read back remote sidecar", err)
	}

	digest, filename, err := checksum.ParseSidecar(fetched)
	if err != nil {
		return errors.NewChecksumMismatch("remote sidecar is malformed", err)
	}
	if filename != artifact.BundleName {
		return errors.NewChecksumMismatch(
			fmt.Sprintf("remote sidecar names %s, expected %s", filename, artifact.BundleName), nil)
	}
	if digest != artifact.Digest {
		// The remote pair is suspect; withdraw it so no future restore
		// can pick up a corrupt archive.
		if delErr := p.store.Delete(ctx, []string{artifact.BundleName, sidecarName}); delErr != nil {
			p.logger.Warnf("Failed to withdraw suspect remote archive %s: %v", artifact.BundleName, delErr)
		}
		return errors.NewChecksumMismatch(
			fmt.Sprintf("remote digest %s does not match local digest %s", digest, artifact.Digest), nil)
	}
	return nil
}

// prune applies retention to both stores. Failures downgrade to warnings:
// the new archive is published and verified by now, and a failed prune
// only means extra copies survive until the next run.
func (p *BackupPipeline) prune(ctx context.Context, result *BackupResult) {
	local := remote.NewLocalStore(p.cfg.Paths.BackupDir)
	res, err := retention.NewPruner(local, p.cfg.Retention.LocalKeep, p.logger).Prune(ctx)
	result.LocalPrune = res
	if err != nil {
		p.logger.Warnf("Local pruning incomplete: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("local pruning incomplete: %v", err))
	}

	res, err = retention.NewPruner(p.store, p.cfg.Retention.RemoteKeep, p.logger).Prune(ctx)
	result.RemotePrune = res
	if err != nil {
		p.logger.Warnf("Remote pruning incomplete: %v", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("remote pruning incomplete: %v", err))
	}
}
