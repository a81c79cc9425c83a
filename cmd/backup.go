package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wp-guardian/internal/pipeline"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a backup and mirror it to the remote store",
	Long: `Takes one point-in-time backup: dumps the database, archives the site
file tree, bundles both into a checksummed archive, publishes it to the
local backup directory, uploads it to the remote store, verifies the
upload by reading the checksum back, and applies retention on both
stores. Concurrent runs are excluded by a lock file.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}

	p := pipeline.NewBackupPipeline(app.cfg, app.dumper, app.store, app.runner, app.logger)
	p.OnStage = func(stage pipeline.Stage) {
		app.printer.Stage(string(stage))
	}

	result, err := p.Run(ctx)
	if err != nil {
		return interrupted(ctx, err)
	}

	for _, warning := range result.Warnings {
		app.printer.Warnf("%s", warning)
	}

	rows := [][2]string{
		{"archive", result.Artifact.BundleName},
		{"digest", result.Artifact.Digest},
		{"duration", result.Duration.String()},
	}
	if result.LocalPrune != nil {
		rows = append(rows, [2]string{"pruned locally", pruneSummary(result.LocalPrune.Deleted)})
	}
	if result.RemotePrune != nil {
		rows = append(rows, [2]string{"pruned remotely", pruneSummary(result.RemotePrune.Deleted)})
	}
	app.printer.Summary("Backup complete", rows)
	app.printer.Successf("Backed up %s", result.Artifact.BundleName)
	return nil
}

func pruneSummary(deleted []string) string {
	if len(deleted) == 0 {
		return "nothing"
	}
	return fmt.Sprintf("%d files (%s)", len(deleted), strings.Join(deleted, ", "))
}
