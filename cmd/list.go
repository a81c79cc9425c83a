package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"wp-guardian/internal/archive"
	"wp-guardian/internal/remote"
)

var listLocal bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archives on the remote store",
	Long: `Lists the restorable archives, oldest first. The newest archive, the
default for restore, is marked.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listLocal, "local", false, "list the local backup directory instead")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}

	store := app.store
	if listLocal {
		store = remote.NewLocalStore(app.cfg.Paths.BackupDir)
	}

	names, err := store.List(ctx)
	if err != nil {
		return interrupted(ctx, err)
	}

	bundles := archive.FilterBundles(names)
	if len(bundles) == 0 {
		app.printer.Infof("No archives found")
		return nil
	}

	timestamps := make([]time.Time, len(bundles))
	for i, name := range bundles {
		timestamps[i], _ = archive.Timestamp(name)
	}
	app.printer.ArchiveList(bundles, timestamps)
	return nil
}
