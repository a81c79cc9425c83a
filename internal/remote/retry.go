package remote

import (
	"context"
	"fmt"
	"time"

	"wp-guardian/internal/errors"
)

// retryingStore decorates a Store with bounded retry. Every failure from
// the inner store is classified as a transfer failure so the handler
// treats it as retryable; non-remote errors never reach this layer.
type retryingStore struct {
	inner   Store
	handler *errors.RetryHandler
}

// WithRetry wraps store so each operation is retried with exponential
// backoff. attempts <= 1 returns the store unchanged.
func WithRetry(store Store, attempts int, baseWait time.Duration) Store {
	if attempts <= 1 {
		return store
	}

	cfg := errors.DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	if baseWait > 0 {
		cfg.BaseDelay = baseWait
	}

	return &retryingStore{
		inner:   store,
		handler: errors.NewRetryHandler(cfg),
	}
}

func (s *retryingStore) retry(ctx context.Context, what string, op func() error) error {
	return s.handler.Retry(ctx, func() error {
		if err := op(); err != nil {
			return errors.NewUploadFailure(fmt.Sprintf("remote %s failed", what), err)
		}
		return nil
	})
}

func (s *retryingStore) Upload(ctx context.Context, localPath, name string) error {
	return s.retry(ctx, "upload", func() error {
		return s.inner.Upload(ctx, localPath, name)
	})
}

func (s *retryingStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := s.retry(ctx, "list", func() error {
		var opErr error
		names, opErr = s.inner.List(ctx)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *retryingStore) Fetch(ctx context.Context, name, localPath string) error {
	return s.retry(ctx, "fetch", func() error {
		return s.inner.Fetch(ctx, name, localPath)
	})
}

func (s *retryingStore) Delete(ctx context.Context, names []string) error {
	return s.retry(ctx, "delete", func() error {
		return s.inner.Delete(ctx, names)
	})
}
