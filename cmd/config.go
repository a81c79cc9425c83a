package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wp-guardian/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print an annotated sample configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.SampleYAML)
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		app, err := buildApp(ctx)
		if err != nil {
			return err
		}
		app.printer.Successf("Configuration is valid")
		app.printer.Summary("Effective configuration", [][2]string{
			{"site root", app.cfg.Paths.SiteRoot},
			{"backup dir", app.cfg.Paths.BackupDir},
			{"snapshot dir", app.cfg.Paths.SnapshotDir},
			{"database", fmt.Sprintf("%s@%s:%d/%s", app.cfg.Database.User, app.cfg.Database.Host, app.cfg.Database.Port, app.cfg.Database.Name)},
			{"remote", fmt.Sprintf("%s (%s)", app.cfg.Remote.Provider, app.cfg.Remote.Dir)},
			{"retention", fmt.Sprintf("local %d, remote %d", app.cfg.Retention.LocalKeep, app.cfg.Retention.RemoteKeep)},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
}
