package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind categorizes pipeline failures. Each kind maps to a distinct
// process exit code so schedulers and monitoring can tell a benign
// lock-contention exit from a checksum mismatch.
type ErrorKind string

const (
	// KindLockContention means another pipeline run holds the lock
	KindLockContention ErrorKind = "lock_contention"
	// KindDependencyMissing means a required external binary is unavailable
	KindDependencyMissing ErrorKind = "dependency_missing"
	// KindConfiguration means the configuration failed validation
	KindConfiguration ErrorKind = "configuration"
	// KindDumpFailure means the logical database dump failed
	KindDumpFailure ErrorKind = "dump_failure"
	// KindArchiveFailure means building or publishing the bundle failed
	KindArchiveFailure ErrorKind = "archive_failure"
	// KindUploadFailure means a remote store transfer failed
	KindUploadFailure ErrorKind = "upload_failure"
	// KindChecksumMismatch means bundle and sidecar digests disagree
	KindChecksumMismatch ErrorKind = "checksum_mismatch"
	// KindPruneFailure means retention cleanup failed (non-fatal for backups)
	KindPruneFailure ErrorKind = "prune_failure"
	// KindRestoreValidation means a restore aborted before any destructive step
	KindRestoreValidation ErrorKind = "restore_validation"
	// KindRestoreStep means a destructive restore step failed mid-way
	KindRestoreStep ErrorKind = "restore_step"
	// KindInterrupted means the operation was canceled
	KindInterrupted ErrorKind = "interrupted"
	// KindUnknown is the fallback classification
	KindUnknown ErrorKind = "unknown"
)

// Exit codes, one per kind. 0 is success; 1 is reserved for unknown
// failures so an unclassified panic path still reports an error.
const (
	ExitOK                = 0
	ExitUnknown           = 1
	ExitLockContention    = 2
	ExitDependencyMissing = 3
	ExitConfiguration     = 4
	ExitDumpFailure       = 5
	ExitArchiveFailure    = 6
	ExitUploadFailure     = 7
	ExitChecksumMismatch  = 8
	ExitPruneFailure      = 9
	ExitRestoreValidation = 10
	ExitRestoreStep       = 11
	ExitInterrupted       = 12
)

var exitCodes = map[ErrorKind]int{
	KindLockContention:    ExitLockContention,
	KindDependencyMissing: ExitDependencyMissing,
	KindConfiguration:     ExitConfiguration,
	KindDumpFailure:       ExitDumpFailure,
	KindArchiveFailure:    ExitArchiveFailure,
	KindUploadFailure:     ExitUploadFailure,
	KindChecksumMismatch:  ExitChecksumMismatch,
	KindPruneFailure:      ExitPruneFailure,
	KindRestoreValidation: ExitRestoreValidation,
	KindRestoreStep:       ExitRestoreStep,
	KindInterrupted:       ExitInterrupted,
	KindUnknown:           ExitUnknown,
}

// PipelineError is the error type carried through the backup and restore
// pipelines. It wraps the underlying cause and records the failure kind
// plus free-form context for logging.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new PipelineError
func New(kind ErrorKind, message string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Common constructors

func NewLockContention(message string, cause error) *PipelineError {
	return New(KindLockContention, message, cause)
}

func NewDependencyMissing(message string, cause error) *PipelineError {
	return New(KindDependencyMissing, message, cause)
}

func NewConfiguration(message string, cause error) *PipelineError {
	return New(KindConfiguration, message, cause)
}

func NewDumpFailure(message string, cause error) *PipelineError {
	return New(KindDumpFailure, message, cause)
}

func NewArchiveFailure(message string, cause error) *PipelineError {
	return New(KindArchiveFailure, message, cause)
}

func NewUploadFailure(message string, cause error) *PipelineError {
	return New(KindUploadFailure, message, cause)
}

func NewChecksumMismatch(message string, cause error) *PipelineError {
	return New(KindChecksumMismatch, message, cause)
}

func NewPruneFailure(message string, cause error) *PipelineError {
	return New(KindPruneFailure, message, cause)
}

func NewRestoreValidation(message string, cause error) *PipelineError {
	return New(KindRestoreValidation, message, cause)
}

func NewRestoreStep(message string, cause error) *PipelineError {
	return New(KindRestoreStep, message, cause)
}

// KindOf returns the ErrorKind of err, walking the wrap chain. Context
// cancellation is classified as an interruption; anything unclassified is
// KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Kind
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindInterrupted
	}

	return KindUnknown
}

// ExitCode maps an error to the process exit code for that failure kind.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := exitCodes[KindOf(err)]; ok {
		return code
	}
	return ExitUnknown
}

// IsRetryable reports whether an operation that produced err may succeed on
// a later attempt. Only remote transfer failures qualify; everything else
// in this pipeline is deterministic.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUploadFailure
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler provides bounded retry with exponential backoff for
// operations prone to transient failure. MaxAttempts <= 1 disables
// retrying entirely, which tests rely on.
type RetryHandler struct {
	config RetryConfig
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryHandler{config: config}
}

// Retry executes operation, retrying retryable failures up to MaxAttempts.
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= rh.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return New(KindInterrupted, "operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return err
		}

		if attempt == rh.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return New(KindInterrupted, "operation canceled during retry", ctx.Err())
		case <-time.After(rh.calculateDelay(attempt)):
		}
	}

	return lastErr
}

// calculateDelay returns the backoff delay for a given attempt
func (rh *RetryHandler) calculateDelay(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= rh.config.Multiplier
	}

	delay := time.Duration(float64(rh.config.BaseDelay) * multiplier)
	if rh.config.MaxDelay > 0 && delay > rh.config.MaxDelay {
		delay = rh.config.MaxDelay
	}
	return delay
}
