package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorError(t *testing.T) {
	err := NewDumpFailure("database dump failed", fmt.Errorf("exit status 2"))
	assert.Contains(t, err.Error(), "dump_failure")
	assert.Contains(t, err.Error(), "exit status 2")

	bare := NewLockContention("another run holds the lock", nil)
	assert.Equal(t, "lock_contention: another run holds the lock", bare.Error())
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewUploadFailure("upload failed", cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestWithContext(t *testing.T) {
	err := NewArchiveFailure("publish failed", nil).
		WithContext("archive", "wp-backup-2026-08-20_03-00-00.tar.gz")
	assert.Equal(t, "wp-backup-2026-08-20_03-00-00.tar.gz", err.Context["archive"])
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect ErrorKind
	}{
		{"direct", NewChecksumMismatch("digest mismatch", nil), KindChecksumMismatch},
		{"wrapped", fmt.Errorf("outer: %w", NewLockContention("busy", nil)), KindLockContention},
		{"context canceled", context.Canceled, KindInterrupted},
		{"deadline", context.DeadlineExceeded, KindInterrupted},
		{"plain error", fmt.Errorf("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, KindOf(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitLockContention, ExitCode(NewLockContention("busy", nil)))
	assert.Equal(t, ExitChecksumMismatch, ExitCode(NewChecksumMismatch("bad", nil)))
	assert.Equal(t, ExitUnknown, ExitCode(fmt.Errorf("boom")))
	assert.Equal(t, ExitInterrupted, ExitCode(context.Canceled))
}

func TestExitCodesAreDistinct(t *testing.T) {
	seen := map[int]ErrorKind{}
	for kind, code := range exitCodes {
		if other, dup := seen[code]; dup {
			t.Fatalf("kinds %s and %s share exit code %d", kind, other, code)
		}
		seen[code] = kind
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewUploadFailure("transfer failed", nil)))
	assert.False(t, IsRetryable(NewDumpFailure("dump failed", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("boom")))
}

func TestRetryHandlerSucceedsAfterTransientFailures(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return NewUploadFailure("transient", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryHandlerStopsOnNonRetryable(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return NewDumpFailure("deterministic", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryHandlerExhaustsAttempts(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	})

	attempts := 0
	err := handler.Retry(context.Background(), func() error {
		attempts++
		return NewUploadFailure("still down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, KindUploadFailure, KindOf(err))
}

func TestRetryHandlerHonorsCancellation(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := handler.Retry(ctx, func() error {
		attempts++
		return NewUploadFailure("down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, KindInterrupted, KindOf(err))
	assert.Less(t, attempts, 10)
}
