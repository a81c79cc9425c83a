package remote

import (
	"context"
	"fmt"

	"wp-guardian/internal/config"
	"wp-guardian/internal/execution"
	"wp-guardian/internal/logging"
)

// NewStore builds the configured Store implementation, wrapped with the
// configured retry policy.
func NewStore(ctx context.Context, cfg *config.Config, runner execution.Runner, logger *logging.Logger) (Store, error) {
	remote := cfg.Remote

	var store Store
	var err error

	switch remote.Provider {
	case "rclone":
		store = NewRcloneStore(remote.Name, remote.Dir, runner, logger)
	case "s3":
		store, err = NewS3Store(remote.S3, remote.Dir)
	case "gcs":
		store, err = NewGCSStore(ctx, remote.GCS, remote.Dir)
	case "azure":
		store, err = NewAzureStore(remote.Azure, remote.Dir)
	default:
		return nil, fmt.Errorf("unsupported remote provider: %s", remote.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(store, remote.RetryAttempts, remote.RetryBaseWait), nil
}

// RequiredBinaries returns the external binaries the configured provider
// depends on, for dependency preflight.
func RequiredBinaries(cfg *config.Config) []string {
	if cfg.Remote.Provider == "rclone" {
		return []string{Binary}
	}
	return nil
}
