package dump

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wp-guardian/internal/config"
	"wp-guardian/internal/execution"
)

var testDB = config.DatabaseConfig{
	Name:     "wordpress",
	User:     "wp",
	Password: "s3cret",
	Host:     "localhost",
	Port:     3306,
}

type recordingRunner struct {
	specs []execution.CommandSpec
	err   error
	// write is copied to spec.Stdout when set, mimicking tool output
	write string
}

func (r *recordingRunner) Run(ctx context.Context, spec execution.CommandSpec) error {
	r.specs = append(r.specs, spec)
	if r.err != nil {
		return r.err
	}
	if r.write != "" && spec.Stdout != nil {
		spec.Stdout.Write([]byte(r.write))
	}
	return nil
}

func (r *recordingRunner) RunOutput(ctx context.Context, spec execution.CommandSpec) ([]byte, error) {
	r.specs = append(r.specs, spec)
	return nil, r.err
}

func (r *recordingRunner) LookPath(name string) error {
	return nil
}

func TestDumpArgs(t *testing.T) {
	d := NewMySQLDumper(testDB, &recordingRunner{}, nil)

	args := d.dumpArgs()
	assert.Equal(t, []string{
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		"--host=localhost",
		"--port=3306",
		"--user=wp",
		"--password=s3cret",
		"wordpress",
	}, args)
}

func TestDumpArgsWithoutPassword(t *testing.T) {
	db := testDB
	db.Password = ""
	d := NewMySQLDumper(db, &recordingRunner{}, nil)

	for _, arg := range d.dumpArgs() {
		assert.NotContains(t, arg, "--password")
	}
}

func TestDumpWritesFile(t *testing.T) {
	runner := &recordingRunner{write: "-- MySQL dump"}
	d := NewMySQLDumper(testDB, runner, nil)

	dest := filepath.Join(t.TempDir(), "database.sql")
	require.NoError(t, d.Dump(context.Background(), dest))

	require.Len(t, runner.specs, 1)
	assert.Equal(t, DumpBinary, runner.specs[0].Name)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "-- MySQL dump", string(content))
}

func TestDumpFailureRemovesPartialFile(t *testing.T) {
	runner := &recordingRunner{err: fmt.Errorf("mysqldump exited 2")}
	d := NewMySQLDumper(testDB, runner, nil)

	dest := filepath.Join(t.TempDir(), "database.sql")
	require.Error(t, d.Dump(context.Background(), dest))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestApplyStreamsDumpToClient(t *testing.T) {
	runner := &recordingRunner{}
	d := NewMySQLDumper(testDB, runner, nil)

	dumpPath := filepath.Join(t.TempDir(), "database.sql")
	require.NoError(t, os.WriteFile(dumpPath, []byte("CREATE TABLE t (id int);"), 0600))

	require.NoError(t, d.Apply(context.Background(), dumpPath))

	require.Len(t, runner.specs, 1)
	assert.Equal(t, ClientBinary, runner.specs[0].Name)
	assert.NotNil(t, runner.specs[0].Stdin)
	assert.Contains(t, runner.specs[0].Args, "wordpress")
}

func TestPreflightSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	d := NewMySQLDumper(testDB, &recordingRunner{}, nil)
	d.openDB = func(dsn string) (*sql.DB, error) {
		assert.Equal(t, testDB.DSN(), dsn)
		return db, nil
	}

	require.NoError(t, d.Preflight(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreflightUnreachableDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(fmt.Errorf("connection refused"))
	mock.ExpectClose()

	d := NewMySQLDumper(testDB, &recordingRunner{}, nil)
	d.openDB = func(dsn string) (*sql.DB, error) { return db, nil }

	err = d.Preflight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}
