package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wp-guardian/internal/config"
	"wp-guardian/internal/confirmation"
	"wp-guardian/internal/display"
	"wp-guardian/internal/dump"
	"wp-guardian/internal/errors"
	"wp-guardian/internal/execution"
	"wp-guardian/internal/logging"
	"wp-guardian/internal/pipeline"
	"wp-guardian/internal/remote"
)

var cfgFile string

// CLI flag variables
var (
	verbose     bool
	quiet       bool
	logFile     string
	yes         bool
	askPassword bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wp-guardian",
	Short: "Backup and restore tool for WordPress sites",
	Long: `wp-guardian takes lock-guarded, point-in-time backups of a WordPress
site (database dump plus file tree) as single checksummed archives,
mirrors them to a remote store with read-back verification, applies
keep-N retention on both sides, and restores selectively: database only,
uploads only, files, or the full site.

Examples:
  # Take a backup using /etc/wp-guardian/config.yaml
  wp-guardian backup

  # Restore the newest archive's database, no prompts
  wp-guardian restore --mode=1 --yes

  # Restore a specific archive completely
  wp-guardian restore --archive=wp-backup-2026-08-20_03-00-00.tar.gz --mode=4

  # See what retention would delete
  wp-guardian prune --dry-run

  # Undo the last restore from its safety snapshot
  wp-guardian restore --rollback-last`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. The process exit code encodes the failure kind
// so scripts and monitoring can react without parsing output.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	display.NewPrinter(false).Errorf("%v", err)
	os.Exit(errors.ExitCode(err))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/wp-guardian/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file as well")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "answer yes to all prompts")
	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-password", false, "prompt for the database password instead of reading it from config")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/wp-guardian")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.wp-guardian")
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("WP_GUARDIAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; env and flags may carry everything.
	viper.ReadInConfig()
}

// app bundles the wired components every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	printer *display.Printer
	runner  *execution.ExecRunner
	dumper  *dump.MySQLDumper
	store   remote.Store
}

// buildApp loads and validates configuration and wires the component
// graph. Errors here carry the configuration kind.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, errors.NewConfiguration("invalid configuration", err)
	}

	if askPassword {
		password, err := confirmation.NewPrompter(false).ReadPassword(
			"Database password for " + cfg.Database.User)
		if err != nil {
			return nil, errors.NewConfiguration("cannot read database password", err)
		}
		cfg.Database.Password = password
	}

	level := logging.LogLevelNormal
	switch {
	case cfg.Quiet:
		level = logging.LogLevelQuiet
	case cfg.Verbose:
		level = logging.LogLevelVerbose
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		LogFile: cfg.LogFile,
	})
	if err != nil {
		return nil, errors.NewConfiguration("cannot open log file", err)
	}

	runner := execution.NewRunner(logger)
	store, err := remote.NewStore(ctx, cfg, runner, logger)
	if err != nil {
		return nil, errors.NewConfiguration("cannot build remote store", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		printer: display.NewPrinter(cfg.Quiet),
		runner:  runner,
		dumper:  dump.NewMySQLDumper(cfg.Database, runner, logger),
		store:   store,
	}, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM, so an
// interrupted run releases its lock and cleans its staging directory.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// interrupted converts a context cancellation into the interrupted error
// kind for the exit code.
func interrupted(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return errors.New(errors.KindInterrupted, "run interrupted", err)
	}
	return err
}

// newRestorePipeline builds the restore pipeline for an app.
func (a *app) newRestorePipeline() *pipeline.RestorePipeline {
	return pipeline.NewRestorePipeline(a.cfg, a.dumper, a.store, a.runner, a.logger)
}
