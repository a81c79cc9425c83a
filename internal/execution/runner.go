package execution

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"wp-guardian/internal/logging"
)

// Runner executes external commands. Commands are always invoked with
// argument vectors, never through a shell, so archive names, paths and
// credentials containing special characters cannot change the command.
type Runner interface {
	// Run executes the command and returns its combined stderr on failure.
	Run(ctx context.Context, spec CommandSpec) error
	// RunOutput executes the command and returns its stdout.
	RunOutput(ctx context.Context, spec CommandSpec) ([]byte, error)
	// LookPath reports whether the named binary is available.
	LookPath(name string) error
}

// CommandSpec describes one external command invocation
type CommandSpec struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stdin  io.Reader
}

// ExecRunner runs commands via os/exec
type ExecRunner struct {
	logger *logging.Logger
}

// NewRunner creates a new ExecRunner
func NewRunner(logger *logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ExecRunner{logger: logger}
}

// Run executes the command described by spec. The child's stderr is
// captured and folded into the returned error so dump and transfer
// failures carry the tool's own diagnostics.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	r.logger.LogExternalCommand(spec.Name, spec.Args, time.Since(start), err)

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", spec.Name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", spec.Name, err)
	}
	return nil
}

// RunOutput executes the command and returns its stdout.
func (r *ExecRunner) RunOutput(ctx context.Context, spec CommandSpec) ([]byte, error) {
	var out bytes.Buffer
	spec.Stdout = &out
	if err := r.Run(ctx, spec); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// LookPath reports whether the named binary is on PATH.
func (r *ExecRunner) LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("required binary %q not found: %w", name, err)
	}
	return nil
}

// Preflight verifies that every named binary is available before the
// pipeline starts so a missing dependency fails fast instead of mid-run.
func Preflight(runner Runner, binaries ...string) error {
	var missing []string
	for _, name := range binaries {
		if err := runner.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
	}
	return nil
}
