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

// Placeholder values shipped in sample .env files. Leaving any of them in place is a
// configuration error.
var placeholderValues = map[string]bool{
	"x":                  true,
	"your email here":    true,
	"your password here": true,
}

// Config holds all configuration options for blinksync
type Config struct {
	// Blink account and API endpoints
	Blink BlinkConfig `yaml:"blink" json:"blink"`

	// Local mirror destination
	Output OutputConfig `yaml:"output" json:"output"`

	// Poll loop timing
	Poll PollConfig `yaml:"poll" json:"poll"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// BlinkConfig holds the account credentials and API hosts
type BlinkConfig struct {
	Email     string `yaml:"email" json:"email"`
	Password  string `yaml:"password" json:"password"`
	APIServer string `yaml:"api_server" json:"api_server"`
	// RegionURL is the per-tier REST base URL; "{tier}" is replaced by the account tier.
	RegionURL  string        `yaml:"region_url" json:"region_url"`
	UniqueID   string        `yaml:"unique_id" json:"unique_id"`
	APITimeout time.Duration `yaml:"api_timeout" json:"api_timeout"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	SaveDirectory string `yaml:"save_directory" json:"save_directory"`
}

// PollConfig holds the poll loop timing
type PollConfig struct {
	Interval   time.Duration `yaml:"interval" json:"interval"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// Since is sent as the media listing lower bound on every cycle.
	Since string `yaml:"since" json:"since"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Blink: BlinkConfig{
			RegionURL:  "https://rest-{tier}.immedia-semi.com",
			APITimeout: 30 * time.Second,
		},
		Output: OutputConfig{
			SaveDirectory: "",
		},
		Poll: PollConfig{
			Interval:   30 * time.Minute,
			RetryDelay: 10 * time.Second,
			Since:      "2015-04-19T23:11:20+0000",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 1,
			DownloadTimeout:     10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
	}
}

// firstEnv returns the value of the first non-empty environment variable in keys
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables.
// The prefixed BLINKSYNC_* names win over the bare names used by older .env files.
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := firstEnv("BLINKSYNC_EMAIL", "EMAIL"); v != "" {
		c.Blink.Email = v
	}
	if v := firstEnv("BLINKSYNC_PASSWORD", "PASSWORD"); v != "" {
		c.Blink.Password = v
	}
	if v := firstEnv("BLINKSYNC_SAVE_DIRECTORY", "SAVE_DIRECTORY"); v != "" {
		c.Output.SaveDirectory = v
	}
	if v := firstEnv("BLINKSYNC_API_SERVER", "BLINK_API_SERVER"); v != "" {
		c.Blink.APIServer = v
	}
	if v := os.Getenv("BLINKSYNC_REGION_URL"); v != "" {
		c.Blink.RegionURL = v
	}
	if v := os.Getenv("BLINKSYNC_UNIQUE_ID"); v != "" {
		c.Blink.UniqueID = v
	}

	if v := os.Getenv("BLINKSYNC_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLINKSYNC_POLL_INTERVAL: %w", err))
		} else {
			c.Poll.Interval = d
		}
	}
	if v := os.Getenv("BLINKSYNC_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLINKSYNC_RETRY_DELAY: %w", err))
		} else {
			c.Poll.RetryDelay = d
		}
	}

	if v := os.Getenv("BLINKSYNC_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLINKSYNC_CONCURRENT_DOWNLOADS: %w", err))
		} else {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("BLINKSYNC_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLINKSYNC_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}

	if v := os.Getenv("BLINKSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BLINKSYNC_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv("BLINKSYNC_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("BLINKSYNC_METRICS_ADDRESS"); v != "" {
		c.Metrics.Address = v
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".blinksync.yaml",
		".blinksync.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "blinksync", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "blinksync", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".blinksync.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// IsPlaceholder reports whether v is empty or one of the sample placeholder values
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || placeholderValues[strings.ToLower(v)]
}

// Validate checks if the configuration is structurally valid.
// Credentials are checked separately by ValidateCredentials because the
// password may still be resolved from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Blink.RegionURL == "" {
		errs = append(errs, errors.New("region URL is required"))
	}
	if c.Blink.APITimeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Poll.RetryDelay <= 0 {
		errs = append(errs, errors.New("retry delay must be positive"))
	}
	if c.Poll.Since == "" {
		errs = append(errs, errors.New("media listing since timestamp is required"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

// ValidateCredentials checks the values the sync loop cannot start without
func (c *Config) ValidateCredentials() error {
	var errs []error

	if IsPlaceholder(c.Blink.Email) {
		errs = append(errs, errors.New("EMAIL is missing or still a placeholder"))
	}
	if IsPlaceholder(c.Blink.Password) {
		errs = append(errs, errors.New("PASSWORD is missing or still a placeholder"))
	}
	if IsPlaceholder(c.Output.SaveDirectory) {
		errs = append(errs, errors.New("SAVE_DIRECTORY is missing or still a placeholder"))
	}
	if IsPlaceholder(c.Blink.APIServer) {
		errs = append(errs, errors.New("BLINK_API_SERVER is missing or still a placeholder"))
	}

	return errors.Join(errs...)
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

// Redacted returns a copy safe for display
func (c *Config) Redacted() Config {
	out := *c
	out.Blink.Password = mask(out.Blink.Password)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if email, ok := flags["email"].(string); ok && email != "" {
		c.Blink.Email = email
	}
	if server, ok := flags["api-server"].(string); ok && server != "" {
		c.Blink.APIServer = server
	}
	if dir, ok := flags["save-directory"].(string); ok && dir != "" {
		c.Output.SaveDirectory = dir
	}
	if concurrent, ok := flags["concurrent-downloads"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if interval, ok := flags["poll-interval"].(time.Duration); ok && interval > 0 {
		c.Poll.Interval = interval
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["metrics-address"].(string); ok && addr != "" {
		c.Metrics.Address = addr
		c.Metrics.Enabled = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".blinksync.env"))

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
