package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "BOOKMARKVAULT_"

// Config holds all configuration options for a bookmark vault
type Config struct {
	// X API access
	X XConfig `yaml:"x" json:"x"`

	// Archive directory layout
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Manifest backend
	Manifest ManifestConfig `yaml:"manifest" json:"manifest"`

	// Sync engine tunables
	Sync SyncConfig `yaml:"sync" json:"sync"`

	// Shared retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Media download settings
	Media MediaConfig `yaml:"media" json:"media"`

	// Artifact rendering
	Render RenderConfig `yaml:"render" json:"render"`

	// Archive viewer and periodic sync
	Server ServerConfig `yaml:"server" json:"server"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// XConfig holds X API specific configuration
type XConfig struct {
	APIBaseURL     string        `yaml:"api_base_url" json:"api_base_url"`
	UserID         string        `yaml:"user_id" json:"user_id"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	DefaultAccount string        `yaml:"default_account" json:"default_account"`
	RequestsPerMin int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// ArchiveConfig holds the archive directory configuration
type ArchiveConfig struct {
	RootDir      string `yaml:"root_dir" json:"root_dir"`
	MediaDirName string `yaml:"media_dir_name" json:"media_dir_name"`
}

// ManifestConfig selects the manifest backend
type ManifestConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path overrides the default manifest location inside the archive root.
	Path string `yaml:"path" json:"path"`
}

// SyncConfig holds the sync engine tunables
type SyncConfig struct {
	PageSize          int           `yaml:"page_size" json:"page_size"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	MaxPages          int           `yaml:"max_pages" json:"max_pages"`
	MinRateLimitWait  time.Duration `yaml:"min_rate_limit_wait" json:"min_rate_limit_wait"`
	MaxRateLimitWaits int           `yaml:"max_rate_limit_waits" json:"max_rate_limit_waits"`
	Resume            bool          `yaml:"resume" json:"resume"`
}

// RetryConfig holds the backoff parameters shared by every retried call
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
	Jitter      float64       `yaml:"jitter" json:"jitter"`
}

// MediaConfig holds media download configuration
type MediaConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxBytes    int64         `yaml:"max_bytes" json:"max_bytes"`
	PerHostRPS  float64       `yaml:"per_host_rps" json:"per_host_rps"`
}

// RenderConfig holds artifact rendering options
type RenderConfig struct {
	Avatars bool `yaml:"avatars" json:"avatars"`
}

// ServerConfig holds the archive viewer configuration
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr" json:"listen_addr"`
	SyncInterval time.Duration `yaml:"sync_interval" json:"sync_interval"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	OnFailureOnly bool `yaml:"on_failure_only" json:"on_failure_only"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		X: XConfig{
			APIBaseURL:     "https://api.x.com",
			Timeout:        30 * time.Second,
			DefaultAccount: "default",
			RequestsPerMin: 60,
		},
		Archive: ArchiveConfig{
			RootDir:      "./archive",
			MediaDirName: "media",
		},
		Manifest: ManifestConfig{
			Backend: "jsonl",
		},
		Sync: SyncConfig{
			PageSize:          100,
			Concurrency:       6,
			MaxPages:          0,
			MinRateLimitWait:  time.Second,
			MaxRateLimitWaits: 5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
			Jitter:      0.1,
		},
		Media: MediaConfig{
			MaxAttempts: 3,
			Timeout:     60 * time.Second,
			MaxBytes:    512 << 20,
			PerHostRPS:  8,
		},
		Render: RenderConfig{
			Avatars: true,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:5000",
		},
		Notifications: NotificationConfig{
			Enabled:       false,
			OnFailureOnly: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// MediaDir returns the absolute-or-relative path of the shared media directory
func (c *Config) MediaDir() string {
	return filepath.Join(c.Archive.RootDir, c.Archive.MediaDirName)
}

// ManifestPath returns where the manifest lives for the selected backend
func (c *Config) ManifestPath() string {
	if c.Manifest.Path != "" {
		return c.Manifest.Path
	}
	if strings.ToLower(c.Manifest.Backend) == "sqlite" {
		return filepath.Join(c.Archive.RootDir, "manifest.db")
	}
	return filepath.Join(c.Archive.RootDir, "manifest.jsonl")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "API_BASE_URL"); v != "" {
		c.X.APIBaseURL = v
	}
	if v := os.Getenv(envPrefix + "USER_ID"); v != "" {
		c.X.UserID = v
	}
	if v := os.Getenv(envPrefix + "ACCOUNT"); v != "" {
		c.X.DefaultAccount = v
	}
	if v := os.Getenv(envPrefix + "ARCHIVE_DIR"); v != "" {
		c.Archive.RootDir = v
	}
	if v := os.Getenv(envPrefix + "MANIFEST_BACKEND"); v != "" {
		c.Manifest.Backend = v
	}
	if v := os.Getenv(envPrefix + "PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", envPrefix, err))
		} else if n > 0 {
			c.Sync.PageSize = n
		}
	}
	if v := os.Getenv(envPrefix + "CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err))
		} else if n > 0 {
			c.Sync.Concurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv(envPrefix + "SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSYNC_INTERVAL: %w", envPrefix, err))
		} else {
			c.Server.SyncInterval = d
		}
	}
	if v := os.Getenv(envPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultConfigPath is where `config init` writes a new file
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "bookmarkvault", "config.yaml")
}

func configHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"bookmarkvault.yaml",
		"bookmarkvault.yml",
		filepath.Join(configHome(), "bookmarkvault", "config.yaml"),
		filepath.Join(configHome(), "bookmarkvault", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".bookmarkvault", "config.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.X.APIBaseURL == "" {
		errs = append(errs, errors.New("x api base url is required"))
	}
	if c.X.Timeout <= 0 {
		errs = append(errs, errors.New("x api timeout must be positive"))
	}

	if c.Archive.RootDir == "" {
		errs = append(errs, errors.New("archive root directory is required"))
	}
	if c.Archive.MediaDirName == "" || strings.ContainsAny(c.Archive.MediaDirName, `/\`) {
		errs = append(errs, errors.New("media directory name must be a single path element"))
	}

	switch strings.ToLower(c.Manifest.Backend) {
	case "jsonl", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown manifest backend %q", c.Manifest.Backend))
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}
	if c.Sync.Concurrency < 4 || c.Sync.Concurrency > 8 {
		errs = append(errs, errors.New("concurrency must be between 4 and 8"))
	}
	if c.Sync.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Sync.MaxRateLimitWaits < 0 {
		errs = append(errs, errors.New("max rate limit waits cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		errs = append(errs, errors.New("retry jitter must be between 0 and 1"))
	}

	if c.Media.MaxAttempts < 1 {
		errs = append(errs, errors.New("media max attempts must be at least 1"))
	}
	if c.Media.Timeout <= 0 {
		errs = append(errs, errors.New("media timeout must be positive"))
	}
	if c.Media.MaxBytes < 0 {
		errs = append(errs, errors.New("media max bytes cannot be negative"))
	}

	if c.Server.SyncInterval < 0 {
		errs = append(errs, errors.New("sync interval cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["archive-dir"].(string); ok && dir != "" {
		c.Archive.RootDir = dir
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.X.DefaultAccount = account
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Sync.PageSize = pageSize
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Sync.MaxPages = maxPages
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Sync.Concurrency = concurrency
	}
	if resume, ok := flags["resume"].(bool); ok && resume {
		c.Sync.Resume = true
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.ListenAddr = addr
	}
	if interval, ok := flags["sync-interval"].(time.Duration); ok && interval > 0 {
		c.Server.SyncInterval = interval
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".bookmarkvault.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
