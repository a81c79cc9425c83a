package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"wp-guardian/internal/errors"
	"wp-guardian/internal/remote"
	"wp-guardian/internal/retention"
)

var (
	pruneDryRun     bool
	pruneLocalOnly  bool
	pruneRemoteOnly bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply retention to the local and remote stores",
	Long: `Deletes archives beyond the configured keep counts, oldest first, on
the local backup directory and the remote store. Each archive leaves
together with its checksum sidecar. Pruning is idempotent; a failed
deletion is retried implicitly on the next run.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be deleted without deleting")
	pruneCmd.Flags().BoolVar(&pruneLocalOnly, "local", false, "prune only the local backup directory")
	pruneCmd.Flags().BoolVar(&pruneRemoteOnly, "remote", false, "prune only the remote store")
	pruneCmd.MarkFlagsMutuallyExclusive("local", "remote")
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}

	var failed bool
	if !pruneRemoteOnly {
		local := remote.NewLocalStore(app.cfg.Paths.BackupDir)
		if err := pruneStore(ctx, app, "local", local, app.cfg.Retention.LocalKeep); err != nil {
			failed = true
		}
	}
	if !pruneLocalOnly {
		if err := pruneStore(ctx, app, "remote", app.store, app.cfg.Retention.RemoteKeep); err != nil {
			failed = true
		}
	}

	if failed {
		return errors.NewPruneFailure("pruning incomplete, see warnings above", nil)
	}
	return nil
}

func pruneStore(ctx context.Context, app *app, label string, store remote.Store, keep int) error {
	pruner := retention.NewPruner(store, keep, app.logger)

	if pruneDryRun {
		kept, victims, err := pruner.Plan(ctx)
		if err != nil {
			return err
		}
		app.printer.Infof("%s store: would keep %d, delete %d", label, len(kept), len(victims))
		if len(victims) > 0 {
			app.printer.Infof("  %s", strings.Join(victims, ", "))
		}
		return nil
	}

	result, err := pruner.Prune(ctx)
	if err != nil {
		app.printer.Warnf("%s store: %v", label, err)
		return err
	}
	app.printer.Successf("%s store: kept %d archives, deleted %s", label, len(result.Kept), pruneSummary(result.Deleted))
	return nil
}
