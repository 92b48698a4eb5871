package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collection harvester
type Config struct {
	// Collection endpoint settings
	Collection CollectionConfig `yaml:"collection" json:"collection"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Page fetch retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Metrics exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CollectionConfig identifies the remote collection and how to page it
type CollectionConfig struct {
	Slug      string `yaml:"slug" json:"slug"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	PageSize  int    `yaml:"page_size" json:"page_size"`
	StartPage int    `yaml:"start_page" json:"start_page"`
	MaxPages  int    `yaml:"max_pages" json:"max_pages"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	SaveJSON       bool   `yaml:"save_json" json:"save_json"`
	DownloadImages bool   `yaml:"download_images" json:"download_images"`
	Resume         bool   `yaml:"resume" json:"resume"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	SkipExisting        bool `yaml:"skip_existing" json:"skip_existing"`
	TimeoutSeconds      int  `yaml:"timeout_seconds" json:"timeout_seconds"`
	ProbeTimeoutSeconds int  `yaml:"probe_timeout_seconds" json:"probe_timeout_seconds"`
	ItemDelayMillis     int  `yaml:"item_delay_ms" json:"item_delay_ms"`
}

// Timeout returns the full-body download timeout.
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// ProbeTimeout returns the metadata probe timeout.
func (d DownloadConfig) ProbeTimeout() time.Duration {
	return time.Duration(d.ProbeTimeoutSeconds) * time.Second
}

// ItemDelay returns the politeness pause inserted between records.
func (d DownloadConfig) ItemDelay() time.Duration {
	return time.Duration(d.ItemDelayMillis) * time.Millisecond
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig controls page fetch retries. Asset downloads are never
// retried; a failed asset is logged and skipped.
type RetryConfig struct {
	MaxAttempts           int     `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoffSeconds int     `yaml:"initial_backoff_seconds" json:"initial_backoff_seconds"`
	MaxBackoffSeconds     int     `yaml:"max_backoff_seconds" json:"max_backoff_seconds"`
	Multiplier            float64 `yaml:"multiplier" json:"multiplier"`
	JitterFactor          float64 `yaml:"jitter_factor" json:"jitter_factor"`
}

// InitialBackoff returns the first retry delay.
func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffSeconds) * time.Second
}

// MaxBackoff returns the retry delay ceiling.
func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSeconds) * time.Second
}

// MetricsConfig controls the optional Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultBaseURL builds the listing URL for a collection slug.
func DefaultBaseURL(slug string) string {
	return "https://www.loc.gov/collections/" + slug + "/"
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Collection: CollectionConfig{
			Slug:      "brady-handy",
			BaseURL:   "",
			PageSize:  25,
			StartPage: 1,
			MaxPages:  0, // 0 means no limit
			UserAgent: "locscraper/1.0 (collection harvester)",
		},
		Output: OutputConfig{
			BaseDirectory:  "",
			SaveJSON:       true,
			DownloadImages: true,
			Resume:         false,
		},
		Download: DownloadConfig{
			SkipExisting:        true,
			TimeoutSeconds:      60,
			ProbeTimeoutSeconds: 15,
			ItemDelayMillis:     500,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Retry: RetryConfig{
			MaxAttempts:           3,
			InitialBackoffSeconds: 1,
			MaxBackoffSeconds:     60,
			Multiplier:            2.0,
			JitterFactor:          0.1,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":2112",
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "",
			NoColor: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if slug := os.Getenv("LOCSCRAPER_COLLECTION"); slug != "" {
		c.Collection.Slug = slug
	}
	if baseURL := os.Getenv("LOCSCRAPER_BASE_URL"); baseURL != "" {
		c.Collection.BaseURL = baseURL
	}
	if userAgent := os.Getenv("LOCSCRAPER_USER_AGENT"); userAgent != "" {
		c.Collection.UserAgent = userAgent
	}
	if pageSize := os.Getenv("LOCSCRAPER_PAGE_SIZE"); pageSize != "" {
		var val int
		fmt.Sscanf(pageSize, "%d", &val)
		if val > 0 {
			c.Collection.PageSize = val
		}
	}
	if startPage := os.Getenv("LOCSCRAPER_START_PAGE"); startPage != "" {
		var val int
		fmt.Sscanf(startPage, "%d", &val)
		if val > 0 {
			c.Collection.StartPage = val
		}
	}
	if maxPages := os.Getenv("LOCSCRAPER_MAX_PAGES"); maxPages != "" {
		var val int
		fmt.Sscanf(maxPages, "%d", &val)
		if val > 0 {
			c.Collection.MaxPages = val
		}
	}

	if outputDir := os.Getenv("LOCSCRAPER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if saveJSON := os.Getenv("LOCSCRAPER_SAVE_JSON"); saveJSON != "" {
		c.Output.SaveJSON = strings.ToLower(saveJSON) == "true"
	}
	if downloadImages := os.Getenv("LOCSCRAPER_DOWNLOAD_IMAGES"); downloadImages != "" {
		c.Output.DownloadImages = strings.ToLower(downloadImages) == "true"
	}

	if skipExisting := os.Getenv("LOCSCRAPER_SKIP_EXISTING"); skipExisting != "" {
		c.Download.SkipExisting = strings.ToLower(skipExisting) == "true"
	}
	if delay := os.Getenv("LOCSCRAPER_ITEM_DELAY_MS"); delay != "" {
		var val int
		fmt.Sscanf(delay, "%d", &val)
		if val >= 0 {
			c.Download.ItemDelayMillis = val
		}
	}

	if rpm := os.Getenv("LOCSCRAPER_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if metricsAddr := os.Getenv("LOCSCRAPER_METRICS_ADDR"); metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = metricsAddr
	}

	if logLevel := os.Getenv("LOCSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("LOCSCRAPER_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"locscraper.yaml",
		".locscraper.yaml",
		".locscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "locscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "locscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".locscraper.yaml"),
		filepath.Join(os.Getenv("HOME"), ".locscraper.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Normalize fills in values that derive from others: the listing URL and
// output directory both default from the collection slug.
func (c *Config) Normalize() {
	if c.Collection.BaseURL == "" && c.Collection.Slug != "" {
		c.Collection.BaseURL = DefaultBaseURL(c.Collection.Slug)
	}
	if c.Output.BaseDirectory == "" && c.Collection.Slug != "" {
		c.Output.BaseDirectory = filepath.Join("output", c.Collection.Slug)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Collection.Slug == "" && c.Collection.BaseURL == "" {
		errs = append(errs, errors.New("a collection slug or base URL is required"))
	}
	if c.Collection.PageSize <= 0 || c.Collection.PageSize > 1000 {
		errs = append(errs, errors.New("page size must be between 1 and 1000"))
	}
	if c.Collection.StartPage <= 0 {
		errs = append(errs, errors.New("start page must be positive"))
	}
	if c.Collection.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Download.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.ProbeTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}
	if c.Download.ItemDelayMillis < 0 {
		errs = append(errs, errors.New("item delay cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.MaxAttempts > 10 {
		errs = append(errs, errors.New("retry max attempts should not exceed 10"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
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

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied; the CLI layer puts a key in the
// map only when the flag was explicitly set.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if slug, ok := flags["collection"].(string); ok && slug != "" {
		c.Collection.Slug = slug
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Collection.BaseURL = baseURL
	}
	if userAgent, ok := flags["user-agent"].(string); ok && userAgent != "" {
		c.Collection.UserAgent = userAgent
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Collection.PageSize = pageSize
	}
	if startPage, ok := flags["start-page"].(int); ok && startPage > 0 {
		c.Collection.StartPage = startPage
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		c.Collection.MaxPages = maxPages
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if saveJSON, ok := flags["save-json"].(bool); ok {
		c.Output.SaveJSON = saveJSON
	}
	if downloadImages, ok := flags["download-images"].(bool); ok {
		c.Output.DownloadImages = downloadImages
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Output.Resume = resume
	}
	if skipExisting, ok := flags["skip-existing"].(bool); ok {
		c.Download.SkipExisting = skipExisting
	}
	if delay, ok := flags["delay-ms"].(int); ok && delay >= 0 {
		c.Download.ItemDelayMillis = delay
	}
	if metricsAddr, ok := flags["metrics-addr"].(string); ok && metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = metricsAddr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if noColor, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = noColor
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".locscraper.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Fill derived values, then validate the final configuration
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
