package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable configuration value object for one process run.
// It is constructed once at startup, validated, and passed by reference to
// every component; nothing re-reads configuration mid-pipeline.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Retention RetentionConfig `mapstructure:"retention"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Cache     CacheConfig     `mapstructure:"cache"`
	LogFile   string          `mapstructure:"log_file"`
	Verbose   bool            `mapstructure:"verbose"`
	Quiet     bool            `mapstructure:"quiet"`
}

// DatabaseConfig holds the client credentials for the protected database
type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
}

// RemoteConfig selects and configures the remote store backend
type RemoteConfig struct {
	// Provider is one of rclone, s3, gcs, azure
	Provider string `mapstructure:"provider"`
	// Name is the configured rclone remote identifier (rclone provider only)
	Name string `mapstructure:"name"`
	// Dir is the flat remote directory (or object key prefix) holding archives
	Dir string `mapstructure:"dir"`

	S3    S3Config    `mapstructure:"s3"`
	GCS   GCSConfig   `mapstructure:"gcs"`
	Azure AzureConfig `mapstructure:"azure"`

	// RetryAttempts bounds transfer retries; values <= 1 disable retrying
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBaseWait time.Duration `mapstructure:"retry_base_wait"`
}

// S3Config configures the native S3 backend
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GCSConfig configures the native Google Cloud Storage backend
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// AzureConfig configures the native Azure Blob Storage backend
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
}

// RetentionConfig holds the two independent keep counts
type RetentionConfig struct {
	LocalKeep  int `mapstructure:"local_keep"`
	RemoteKeep int `mapstructure:"remote_keep"`
}

// PathsConfig holds the filesystem layout the pipeline operates on
type PathsConfig struct {
	// SiteRoot is the protected file tree (the WordPress installation)
	SiteRoot string `mapstructure:"site_root"`
	// BackupDir is the local archive directory
	BackupDir string `mapstructure:"backup_dir"`
	// SnapshotDir receives pre-restore safety snapshots
	SnapshotDir string `mapstructure:"snapshot_dir"`
	// LockFile guards the backup pipeline against concurrent runs
	LockFile string `mapstructure:"lock_file"`
	// UploadsDir is the media subtree, relative to SiteRoot
	UploadsDir string `mapstructure:"uploads_dir"`
}

// SnapshotConfig controls safety-snapshot behavior
type SnapshotConfig struct {
	// Compression for the pre-restore database dump: gzip, zstd or lz4
	Compression string `mapstructure:"compression"`
}

// CacheConfig holds this host's object-cache settings. A restored
// wp-config.php carries the cache settings of the site the backup was
// taken from; a full restore rewrites them to these values.
type CacheConfig struct {
	// Enabled toggles the WP_CACHE define
	Enabled bool `mapstructure:"enabled"`
	// Host is written to the WP_REDIS_HOST define
	Host string `mapstructure:"host"`
	// KeySalt is written to the WP_CACHE_KEY_SALT define
	KeySalt string `mapstructure:"key_salt"`
}

// Defaults applied before unmarshalling
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("remote.provider", "rclone")
	v.SetDefault("remote.retry_attempts", 3)
	v.SetDefault("remote.retry_base_wait", 2*time.Second)
	v.SetDefault("retention.local_keep", 5)
	v.SetDefault("retention.remote_keep", 10)
	v.SetDefault("paths.backup_dir", "/var/backups/wp-guardian")
	v.SetDefault("paths.snapshot_dir", "/var/backups/wp-guardian/snapshots")
	v.SetDefault("paths.lock_file", "/var/run/wp-guardian.lock")
	v.SetDefault("paths.uploads_dir", filepath.Join("wp-content", "uploads"))
	v.SetDefault("snapshot.compression", "gzip")
	v.SetDefault("log_file", "/var/log/wp-guardian.log")
}

// Load builds a Config from the given viper instance (config file, env
// vars and bound flags already merged) and validates it.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies. Retention counts
// must be non-negative; zero means "keep nothing after upload".
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Name == "" {
		errs = append(errs, "database.name is required")
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port %d is out of range", c.Database.Port))
	}

	if c.Retention.LocalKeep < 0 {
		errs = append(errs, "retention.local_keep must be non-negative")
	}
	if c.Retention.RemoteKeep < 0 {
		errs = append(errs, "retention.remote_keep must be non-negative")
	}

	if c.Paths.SiteRoot == "" {
		errs = append(errs, "paths.site_root is required")
	}
	if c.Paths.BackupDir == "" {
		errs = append(errs, "paths.backup_dir is required")
	}
	if c.Paths.LockFile == "" {
		errs = append(errs, "paths.lock_file is required")
	}
	if filepath.IsAbs(c.Paths.UploadsDir) {
		errs = append(errs, "paths.uploads_dir must be relative to site_root")
	}

	switch c.Remote.Provider {
	case "rclone":
		if c.Remote.Name == "" {
			errs = append(errs, "remote.name is required for the rclone provider")
		}
	case "s3":
		if c.Remote.S3.Bucket == "" || c.Remote.S3.Region == "" {
			errs = append(errs, "remote.s3.bucket and remote.s3.region are required")
		}
	case "gcs":
		if c.Remote.GCS.Bucket == "" {
			errs = append(errs, "remote.gcs.bucket is required")
		}
	case "azure":
		if c.Remote.Azure.AccountName == "" || c.Remote.Azure.Container == "" {
			errs = append(errs, "remote.azure.account_name and remote.azure.container are required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown remote.provider %q (rclone, s3, gcs, azure)", c.Remote.Provider))
	}
	if c.Remote.Dir == "" {
		errs = append(errs, "remote.dir is required")
	}

	switch c.Snapshot.Compression {
	case "gzip", "zstd", "lz4":
	default:
		errs = append(errs, fmt.Sprintf("unknown snapshot.compression %q (gzip, zstd, lz4)", c.Snapshot.Compression))
	}

	if c.Verbose && c.Quiet {
		errs = append(errs, "verbose and quiet are mutually exclusive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// UploadsPath returns the absolute path of the media uploads subtree.
func (c *Config) UploadsPath() string {
	return filepath.Join(c.Paths.SiteRoot, c.Paths.UploadsDir)
}

// DSN returns the MySQL driver connection string used by the dump preflight.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

// SampleYAML is an annotated configuration template emitted by the
// `config` subcommand.
const SampleYAML = `# wp-guardian configuration file

# Database client credentials for the protected WordPress database.
database:
  name: wordpress        # Database name
  user: wp               # Database user
  password: ""           # Prefer WP_GUARDIAN_DATABASE_PASSWORD over storing it here
  host: localhost        # Optional, defaults to localhost
  port: 3306

# Remote object store receiving archive mirrors.
remote:
  provider: rclone       # rclone, s3, gcs or azure
  name: offsite          # rclone remote identifier (rclone provider only)
  dir: wp-backups        # Flat remote directory holding archives
  retry_attempts: 3      # Transfer retries; 1 disables retrying
  retry_base_wait: 2s    # Base delay for exponential backoff
  s3:
    region: ""
    bucket: ""
    access_key: ""
    secret_key: ""
  gcs:
    bucket: ""
    credentials_file: ""
  azure:
    account_name: ""
    account_key: ""
    container: ""

# Independent keep counts for the local and remote stores.
retention:
  local_keep: 5
  remote_keep: 10

paths:
  site_root: /var/www/html
  backup_dir: /var/backups/wp-guardian
  snapshot_dir: /var/backups/wp-guardian/snapshots
  lock_file: /var/run/wp-guardian.lock
  uploads_dir: wp-content/uploads   # Relative to site_root

# Pre-restore safety snapshot settings.
snapshot:
  compression: gzip      # gzip, zstd or lz4

# Object-cache settings for this host. A full restore rewrites the
# matching defines in the restored wp-config.php to these values.
cache:
  enabled: false         # WP_CACHE
  host: ""               # WP_REDIS_HOST, e.g. 127.0.0.1
  key_salt: ""           # WP_CACHE_KEY_SALT

log_file: /var/log/wp-guardian.log
verbose: false
quiet: false

# Every key can be set via environment variables with the WP_GUARDIAN_
# prefix, e.g. WP_GUARDIAN_DATABASE_PASSWORD=secret
`
