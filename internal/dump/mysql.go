package dump

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"wp-guardian/internal/config"
	"wp-guardian/internal/execution"
	"wp-guardian/internal/logging"
)

// Binaries the dumper shells out to.
const (
	DumpBinary   = "mysqldump"
	ClientBinary = "mysql"
)

// MySQLDumper produces and applies logical dumps of the protected
// database. Dumps run with --single-transaction so they represent one
// consistent point in time without locking the running site.
type MySQLDumper struct {
	cfg    config.DatabaseConfig
	runner execution.Runner
	logger *logging.Logger

	// openDB is swapped out by tests
	openDB func(dsn string) (*sql.DB, error)
}

// NewMySQLDumper creates a dumper for the configured database.
func NewMySQLDumper(cfg config.DatabaseConfig, runner execution.Runner, logger *logging.Logger) *MySQLDumper {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &MySQLDumper{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		openDB: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

// Preflight verifies the database is reachable with the configured
// credentials before the pipeline commits to a run.
func (d *MySQLDumper) Preflight(ctx context.Context) error {
	db, err := d.openDB(d.cfg.DSN())
	if err != nil {
		return fmt.Errorf("cannot open database handle: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database %s on %s is not reachable: %w", d.cfg.Name, d.cfg.Host, err)
	}

	d.logger.Debugf("Database %s reachable on %s:%d", d.cfg.Name, d.cfg.Host, d.cfg.Port)
	return nil
}

// Dump writes a logical dump of the database to destPath. A partial file
// is removed on failure so the staging directory never holds a truncated
// dump under the expected name.
func (d *MySQLDumper) Dump(ctx context.Context, destPath string) error {
	file, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("cannot create dump file %s: %w", destPath, err)
	}

	err = d.runner.Run(ctx, execution.CommandSpec{
		Name:   DumpBinary,
		Args:   d.dumpArgs(),
		Stdout: file,
	})
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return err
	}
	return nil
}

// Apply replays a dump file into the database. Used by the restore
// pipeline after the dump has been extracted from a verified bundle.
func (d *MySQLDumper) Apply(ctx context.Context, dumpPath string) error {
	file, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("cannot open dump file %s: %w", dumpPath, err)
	}
	defer file.Close()

	return d.runner.Run(ctx, execution.CommandSpec{
		Name:  ClientBinary,
		Args:  d.clientArgs(),
		Stdin: file,
	})
}

// dumpArgs builds the mysqldump argument vector. Credentials travel as
// discrete arguments, never through a shell.
func (d *MySQLDumper) dumpArgs() []string {
	args := []string{
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		"--host=" + d.cfg.Host,
		"--port=" + strconv.Itoa(d.cfg.Port),
		"--user=" + d.cfg.User,
	}
	if d.cfg.Password != "" {
		args = append(args, "--password="+d.cfg.Password)
	}
	return append(args, d.cfg.Name)
}

func (d *MySQLDumper) clientArgs() []string {
	args := []string{
		"--host=" + d.cfg.Host,
		"--port=" + strconv.Itoa(d.cfg.Port),
		"--user=" + d.cfg.User,
	}
	if d.cfg.Password != "" {
		args = append(args, "--password="+d.cfg.Password)
	}
	return append(args, d.cfg.Name)
}
