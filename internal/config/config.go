// Package config provides unified configuration for the Sift service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the Sift service.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Auth configuration
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Index configuration
	Index IndexConfig `json:"index" yaml:"index"`

	// Detail retrieval configuration
	Detail DetailConfig `json:"detail" yaml:"detail"`

	// Retention/archival configuration
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Archive storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address for the API server
	Addr string `json:"addr" yaml:"addr"`

	// MetricsAddr is the HTTP address for the Prometheus metrics endpoint
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// TokenSecret is the HMAC key for signing session tokens and cursors
	TokenSecret string `json:"token_secret" yaml:"token_secret"`

	// TokenTTL is the session token lifetime
	TokenTTL time.Duration `json:"token_ttl" yaml:"token_ttl"`

	// Issuer is the token issuer claim
	Issuer string `json:"issuer" yaml:"issuer"`
}

// IndexConfig holds event index configuration.
type IndexConfig struct {
	// StorageTimeout is the per-call timeout for storage access
	StorageTimeout time.Duration `json:"storage_timeout" yaml:"storage_timeout"`

	// RetryAttempts is the max attempts for retryable storage failures
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RetryInitialDelay is the backoff delay before the first retry
	RetryInitialDelay time.Duration `json:"retry_initial_delay" yaml:"retry_initial_delay"`

	// ReadPoolSize is the maximum number of concurrent read connections
	ReadPoolSize int `json:"read_pool_size" yaml:"read_pool_size"`
}

// DetailConfig holds detail retrieval configuration.
type DetailConfig struct {
	// PageSize is the fixed number of records per detail page
	PageSize int `json:"page_size" yaml:"page_size"`
}

// RetentionConfig holds retention/archival daemon configuration.
type RetentionConfig struct {
	// Enabled controls whether the retention daemon runs
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TTL is the age after which records are archived out of the live index
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// CheckInterval is how often the daemon scans for expired records
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`

	// BatchSize is the max records archived per cycle per project
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// WorkDir is the temporary directory for segment assembly
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// StorageConfig holds archive storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/sift",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			MetricsAddr:  ":9100",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 72 * time.Hour,
			Issuer:   "sift",
		},
		Index: IndexConfig{
			StorageTimeout:    5 * time.Second,
			RetryAttempts:     3,
			RetryInitialDelay: 100 * time.Millisecond,
			ReadPoolSize:      8,
		},
		Detail: DetailConfig{
			PageSize: 50,
		},
		Retention: RetentionConfig{
			Enabled:       false,
			TTL:           30 * 24 * time.Hour,
			CheckInterval: 15 * time.Minute,
			BatchSize:     10000,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/sift"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "archive")
	}
	if c.Retention.WorkDir == "" {
		c.Retention.WorkDir = filepath.Join(c.DataDir, "retention")
	}
}

// DatabasePath returns the path to the sift database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "sift.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}

	if c.Detail.PageSize < 1 || c.Detail.PageSize > 1000 {
		return fmt.Errorf("detail.page_size must be between 1 and 1000, got %d", c.Detail.PageSize)
	}

	if c.Index.StorageTimeout <= 0 {
		return fmt.Errorf("index.storage_timeout must be positive, got %s", c.Index.StorageTimeout)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Retention.Enabled && c.Retention.TTL <= 0 {
		return fmt.Errorf("retention.ttl must be positive when retention is enabled")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SIFT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SIFT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("SIFT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("SIFT_METRICS_ADDR"); v != "" {
		cfg.HTTP.MetricsAddr = v
	}

	// Auth configuration
	if v := os.Getenv("SIFT_TOKEN_SECRET"); v != "" {
		cfg.Auth.TokenSecret = v
	}
	if v := os.Getenv("SIFT_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	// Index configuration
	if v := os.Getenv("SIFT_STORAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Index.StorageTimeout = d
		}
	}
	if v := os.Getenv("SIFT_READ_POOL_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Index.ReadPoolSize)
	}

	// Detail configuration
	if v := os.Getenv("SIFT_DETAIL_PAGE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Detail.PageSize)
	}

	// Retention configuration
	if v := os.Getenv("SIFT_RETENTION_ENABLED"); v != "" {
		cfg.Retention.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SIFT_RETENTION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.TTL = d
		}
	}
	if v := os.Getenv("SIFT_RETENTION_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.CheckInterval = d
		}
	}

	// Storage configuration
	if v := os.Getenv("SIFT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SIFT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SIFT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SIFT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SIFT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
		c.Retention.WorkDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
