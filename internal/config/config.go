// Package config provides configuration loading and management for tilesync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/urbanmap/tilesync/internal/telemetry"
	"github.com/urbanmap/tilesync/internal/tiles"
)

const (
	// StorageTypeDatabase stores features and runs in PostgreSQL/PostGIS
	StorageTypeDatabase = "database"

	// StorageTypeMemory keeps features and runs in process memory
	StorageTypeMemory = "memory"
)

const (
	defaultConcurrency        = 4
	defaultDelay              = 100 * time.Millisecond
	defaultTimeout            = 30 * time.Second
	defaultCheckpointInterval = 10
	defaultErrorLogLimit      = 100
)

// ErrInvalidBoundingBox is returned for a dataset area outside valid
// coordinate ranges or with inverted corners.
var ErrInvalidBoundingBox = tiles.ErrInvalidBoundingBox

// ErrInvalidZoom is returned for a zoom level outside the supported range.
var ErrInvalidZoom = tiles.ErrInvalidZoom

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Storage is "database" or "memory". Defaults to "database" when a
	// database section is present, "memory" otherwise.
	Storage   string            `yaml:"storage,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
	Datasets  []DatasetConfig   `yaml:"datasets"`
}

// DatasetConfig describes one synchronized tile dataset.
type DatasetConfig struct {
	// Name identifies the dataset in the API and in run history
	Name   string       `yaml:"name"`
	Source SourceConfig `yaml:"source"`
	Area   AreaConfig   `yaml:"area"`

	// Profile selects a built-in layer classification ("roads", "buildings").
	// Mutually exclusive with Layers.
	Profile string `yaml:"profile,omitempty"`

	// Layers is an explicit layer classification table
	Layers tiles.Classification `yaml:"layers,omitempty"`

	Sync     *SyncConfig     `yaml:"sync,omitempty"`
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
}

// SourceConfig defines the tile host
type SourceConfig struct {
	// BaseURL is the prefix of {baseUrl}/{z}/{x}/{y}.pbf
	BaseURL   string `yaml:"baseUrl"`
	UserAgent string `yaml:"userAgent,omitempty"`
	// Timeout bounds every tile request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`
}

// AreaConfig defines the covered area
type AreaConfig struct {
	BBox tiles.BoundingBox `yaml:"bbox"`
	Zoom int               `yaml:"zoom"`
}

// SyncConfig tunes the pipeline
type SyncConfig struct {
	// Concurrency is the number of tiles in flight
	Concurrency int `yaml:"concurrency,omitempty"`
	// Delay is the pause before each request, per worker (e.g. "100ms")
	Delay string `yaml:"delay,omitempty"`
	// RateLimit caps requests per second across workers; 0 disables it
	RateLimit int `yaml:"rateLimit,omitempty"`
	// CheckpointInterval is the number of processed tiles between checkpoints
	CheckpointInterval int `yaml:"checkpointInterval,omitempty"`
	// ErrorLogLimit is the number of error messages kept per run
	ErrorLogLimit int `yaml:"errorLogLimit,omitempty"`
}

// ScheduleConfig starts runs periodically
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
	// Resume continues the latest stopped run instead of starting over
	Resume bool `yaml:"resume,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing only the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database"`

	// SSLMode is one of disable, require, verify-ca, verify-full
	SSLMode string `yaml:"sslMode,omitempty"`

	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// PasswordEnvVar holds the database password when no password file is set.
const PasswordEnvVar = "TILESYNC_DATABASE_PASSWORD"

// GetPassword returns the database password, read from PasswordFile if
// specified and from TILESYNC_DATABASE_PASSWORD otherwise.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(PasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", PasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection URL with the password escaped.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String(), nil
}

// LoadConfig loads, parses and validates configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates YAML configuration
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns the configured storage type
func (c *Config) GetStorageType() string {
	if c.Storage != "" {
		return c.Storage
	}
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeMemory
}

// GetDataset returns the dataset with the given name
func (c *Config) GetDataset(name string) (*DatasetConfig, bool) {
	for i := range c.Datasets {
		if c.Datasets[i].Name == name {
			return &c.Datasets[i], true
		}
	}
	return nil, false
}

// Validate checks the whole configuration. Bounding box and zoom errors wrap
// ErrInvalidBoundingBox and ErrInvalidZoom.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStorageType() {
	case StorageTypeMemory:
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("database configuration is required for storage type %q", StorageTypeDatabase)
		}
		if err := c.Database.validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if len(c.Datasets) == 0 {
		return fmt.Errorf("at least one dataset must be configured")
	}

	names := make(map[string]bool)
	var errs []error
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if ds.Name == "" {
			errs = append(errs, fmt.Errorf("dataset[%d]: name is required", i))
			continue
		}
		if names[ds.Name] {
			errs = append(errs, fmt.Errorf("dataset[%d]: duplicate dataset name '%s'", i, ds.Name))
			continue
		}
		names[ds.Name] = true

		if err := ds.validate(); err != nil {
			errs = append(errs, fmt.Errorf("dataset[%d] (%s): %w", i, ds.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	switch {
	case d.Host == "":
		return fmt.Errorf("host is required")
	case d.Port == 0:
		return fmt.Errorf("port is required")
	case d.User == "":
		return fmt.Errorf("user is required")
	case d.Database == "":
		return fmt.Errorf("database name is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("invalid connMaxLifetime: %w", err)
		}
	}
	return nil
}

func (d *DatasetConfig) validate() error {
	if d.Source.BaseURL == "" {
		return fmt.Errorf("source.baseUrl is required")
	}
	u, err := url.Parse(d.Source.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source.baseUrl must be an http(s) URL, got %q", d.Source.BaseURL)
	}
	if _, err := parseDuration(d.Source.Timeout, defaultTimeout); err != nil {
		return fmt.Errorf("source.timeout: %w", err)
	}

	if err := d.Area.BBox.Validate(); err != nil {
		return fmt.Errorf("area.bbox: %w", err)
	}
	if err := tiles.ValidateZoom(d.Area.Zoom); err != nil {
		return fmt.Errorf("area.zoom: %w", err)
	}

	if d.Profile != "" && len(d.Layers) > 0 {
		return fmt.Errorf("only one of profile or layers may be specified")
	}
	if _, err := d.Classification(); err != nil {
		return err
	}

	if s := d.Sync; s != nil {
		if s.Concurrency < 0 {
			return fmt.Errorf("sync.concurrency must not be negative")
		}
		if s.RateLimit < 0 {
			return fmt.Errorf("sync.rateLimit must not be negative")
		}
		if s.CheckpointInterval < 0 {
			return fmt.Errorf("sync.checkpointInterval must not be negative")
		}
		if s.ErrorLogLimit < 0 {
			return fmt.Errorf("sync.errorLogLimit must not be negative")
		}
		delay, err := parseDuration(s.Delay, defaultDelay)
		if err != nil {
			return fmt.Errorf("sync.delay: %w", err)
		}
		if delay < 0 {
			return fmt.Errorf("sync.delay must not be negative")
		}
	}

	if d.Schedule != nil {
		interval, err := time.ParseDuration(d.Schedule.Interval)
		if err != nil {
			return fmt.Errorf("schedule.interval must be a valid duration (e.g., '30m', '24h'): %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("schedule.interval must be positive")
		}
	}
	return nil
}

// Classification returns the layer classification of the dataset
func (d *DatasetConfig) Classification() (tiles.Classification, error) {
	if len(d.Layers) > 0 {
		if err := d.Layers.Validate(); err != nil {
			return nil, fmt.Errorf("layers: %w", err)
		}
		return d.Layers, nil
	}
	if d.Profile == "" {
		return nil, fmt.Errorf("one of profile or layers must be specified")
	}
	c, err := tiles.Profile(d.Profile)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return c, nil
}

// GetTimeout returns the request timeout of the tile source
func (d *DatasetConfig) GetTimeout() time.Duration {
	t, _ := parseDuration(d.Source.Timeout, defaultTimeout)
	return t
}

// GetConcurrency returns the number of tiles in flight
func (d *DatasetConfig) GetConcurrency() int {
	if d.Sync == nil || d.Sync.Concurrency == 0 {
		return defaultConcurrency
	}
	return d.Sync.Concurrency
}

// GetDelay returns the per-request delay
func (d *DatasetConfig) GetDelay() time.Duration {
	if d.Sync == nil {
		return defaultDelay
	}
	delay, _ := parseDuration(d.Sync.Delay, defaultDelay)
	return delay
}

// GetRateLimit returns the global requests-per-second cap, 0 for none
func (d *DatasetConfig) GetRateLimit() int {
	if d.Sync == nil {
		return 0
	}
	return d.Sync.RateLimit
}

// GetCheckpointInterval returns the number of tiles between checkpoints
func (d *DatasetConfig) GetCheckpointInterval() int {
	if d.Sync == nil || d.Sync.CheckpointInterval == 0 {
		return defaultCheckpointInterval
	}
	return d.Sync.CheckpointInterval
}

// GetErrorLogLimit returns the number of error messages kept per run
func (d *DatasetConfig) GetErrorLogLimit() int {
	if d.Sync == nil || d.Sync.ErrorLogLimit == 0 {
		return defaultErrorLogLimit
	}
	return d.Sync.ErrorLogLimit
}

// GetScheduleInterval returns the schedule interval, 0 when unscheduled
func (d *DatasetConfig) GetScheduleInterval() time.Duration {
	if d.Schedule == nil {
		return 0
	}
	interval, _ := time.ParseDuration(d.Schedule.Interval)
	return interval
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
