package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wp-guardian/internal/archive"
	"wp-guardian/internal/confirmation"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/pipeline"
)

var (
	restoreArchive  string
	restoreMode     int
	rollbackLast    bool
	restoreModeHelp = `restore mode:
  1  database only
  2  uploads directory only
  3  file tree, database untouched
  4  file tree and database, wp-config.php rewritten`
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup from the remote store",
	Long: `Restores an archive from the remote store. The archive's checksum is
verified before anything is touched, and the current state of whatever
the chosen mode replaces is saved as a safety snapshot first. The
snapshot is never replayed automatically; --rollback-last replays the
most recent one explicitly.

` + restoreModeHelp,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreArchive, "archive", "", "archive name to restore (default: newest)")
	restoreCmd.Flags().IntVar(&restoreMode, "mode", 0, "restore mode 1-4 (prompted when omitted)")
	restoreCmd.Flags().BoolVar(&rollbackLast, "rollback-last", false, "replay the most recent safety snapshot instead of restoring")
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	p := app.newRestorePipeline()
	prompter := confirmation.NewPrompter(yes)

	if rollbackLast {
		return runRollback(ctx, app, p, prompter)
	}

	archiveName, err := selectArchive(ctx, app, p, prompter)
	if err != nil {
		return interrupted(ctx, err)
	}

	mode, err := selectMode(prompter)
	if err != nil {
		return err
	}

	ok, err := prompter.Confirm(fmt.Sprintf("Restore %s (%s)? This replaces live data", archiveName, mode))
	if err != nil {
		return err
	}
	if !ok {
		app.printer.Infof("Restore cancelled")
		return nil
	}

	result, err := p.Run(ctx, archiveName, mode)
	if err != nil {
		return interrupted(ctx, err)
	}

	app.printer.Summary("Restore complete", [][2]string{
		{"archive", result.Archive},
		{"mode", result.Mode.String()},
		{"safety snapshot", result.SnapshotID},
		{"duration", result.Duration.String()},
	})
	app.printer.Successf("Restored %s (%s)", result.Archive, result.Mode)
	app.printer.Infof("Roll back with: wp-guardian restore --rollback-last")
	return nil
}

// selectArchive resolves the archive from the flag, or interactively
// from the remote listing with the newest as default.
func selectArchive(ctx context.Context, app *app, p *pipeline.RestorePipeline, prompter *confirmation.Prompter) (string, error) {
	if restoreArchive != "" || prompter.AutoApprove {
		return p.SelectArchive(ctx, restoreArchive)
	}

	bundles, err := p.ListArchives(ctx)
	if err != nil {
		return "", err
	}
	if len(bundles) == 0 {
		return "", errors.NewRestoreValidation("remote store holds no archives", nil)
	}

	timestamps := make([]time.Time, len(bundles))
	for i, name := range bundles {
		timestamps[i], _ = archive.Timestamp(name)
	}
	app.printer.ArchiveList(bundles, timestamps)

	choice, err := prompter.SelectIndex("Archive to restore", len(bundles), len(bundles))
	if err != nil {
		return "", errors.NewRestoreValidation(err.Error(), nil)
	}
	return bundles[choice-1], nil
}

func selectMode(prompter *confirmation.Prompter) (pipeline.RestoreMode, error) {
	if restoreMode != 0 {
		return pipeline.ParseRestoreMode(restoreMode)
	}
	if prompter.AutoApprove {
		return 0, errors.NewRestoreValidation("--mode is required with --yes", nil)
	}

	fmt.Println(restoreModeHelp)
	choice, err := prompter.SelectIndex("Restore mode", 4, int(pipeline.RestoreDatabase))
	if err != nil {
		return 0, errors.NewRestoreValidation(err.Error(), nil)
	}
	return pipeline.ParseRestoreMode(choice)
}

func runRollback(ctx context.Context, app *app, p *pipeline.RestorePipeline, prompter *confirmation.Prompter) error {
	ok, err := prompter.Confirm("Replay the most recent safety snapshot? This replaces live data")
	if err != nil {
		return err
	}
	if !ok {
		app.printer.Infof("Rollback cancelled")
		return nil
	}

	manifest, err := p.RollbackLast(ctx)
	if err != nil {
		return interrupted(ctx, err)
	}

	app.printer.Summary("Rollback complete", [][2]string{
		{"snapshot", manifest.ID},
		{"taken before", fmt.Sprintf("%s restore of %s", manifest.Mode, manifest.Archive)},
		{"taken at", manifest.CreatedAt.Format(time.RFC3339)},
	})
	app.printer.Successf("Rolled back snapshot %s", manifest.ID)
	return nil
}
