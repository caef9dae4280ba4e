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

// Config holds all configuration options for the crawler pipeline
type Config struct {
	// Search engine configuration
	Engines EnginesConfig `yaml:"engines" json:"engines"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Conversion settings
	Convert ConvertConfig `yaml:"convert" json:"convert"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EnginesConfig holds search engine configuration
type EnginesConfig struct {
	// Selector is "google", "yandex" or "both"
	Selector       string        `yaml:"selector" json:"selector"`
	SearchTimeout  time.Duration `yaml:"search_timeout" json:"search_timeout"`
	ResultsPerPage int           `yaml:"results_per_page" json:"results_per_page"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	// Delay is the minimum spacing between download starts, shared
	// across all engines
	Delay        time.Duration `yaml:"delay" json:"delay"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	MaxImages           int           `yaml:"max_images" json:"max_images"`
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	MinFileSize         int64         `yaml:"min_file_size" json:"min_file_size"`
	MaxFileSize         int64         `yaml:"max_file_size" json:"max_file_size"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	CSVDirectory      string `yaml:"csv_directory" json:"csv_directory"`
	CreateRiskFolders bool   `yaml:"create_risk_folders" json:"create_risk_folders"`
}

// ConvertConfig holds WEBP to JPG conversion settings
type ConvertConfig struct {
	Quality        int  `yaml:"quality" json:"quality"`
	DeleteOriginal bool `yaml:"delete_original" json:"delete_original"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engines: EnginesConfig{
			Selector:       "google",
			SearchTimeout:  15 * time.Second,
			ResultsPerPage: 100,
		},
		RateLimit: RateLimitConfig{
			Delay:        2 * time.Second,
			JitterFactor: 0.2,
			MaxRetries:   3,
			RetryDelay:   2 * time.Second,
		},
		Download: DownloadConfig{
			MaxImages:           10,
			ConcurrentDownloads: 1,
			DownloadTimeout:     10 * time.Second,
			RetryAttempts:       3,
			MinFileSize:         1000,
			MaxFileSize:         0, // 0 means no limit
		},
		Output: OutputConfig{
			BaseDirectory:     filepath.Join("download", "images"),
			CSVDirectory:      "csv_output",
			CreateRiskFolders: true,
		},
		Convert: ConvertConfig{
			Quality:        95,
			DeleteOriginal: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if selector := os.Getenv("CROPCRAWLER_ENGINE"); selector != "" {
		c.Engines.Selector = strings.ToLower(selector)
	}
	if outputDir := os.Getenv("CROPCRAWLER_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if csvDir := os.Getenv("CROPCRAWLER_CSV_DIR"); csvDir != "" {
		c.Output.CSVDirectory = csvDir
	}
	if maxImages := os.Getenv("CROPCRAWLER_MAX_IMAGES"); maxImages != "" {
		var val int
		fmt.Sscanf(maxImages, "%d", &val)
		if val > 0 {
			c.Download.MaxImages = val
		}
	}
	if delay := os.Getenv("CROPCRAWLER_DELAY"); delay != "" {
		var val float64
		fmt.Sscanf(delay, "%g", &val)
		if val >= 0 {
			c.RateLimit.Delay = time.Duration(val * float64(time.Second))
		}
	}
	if concurrent := os.Getenv("CROPCRAWLER_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	if logLevel := os.Getenv("CROPCRAWLER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
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
	// Check in order of precedence
	locations := []string{
		".cropcrawler.yaml",
		".cropcrawler.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "cropcrawler", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "cropcrawler", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".cropcrawler.yaml"),
		filepath.Join(os.Getenv("HOME"), ".cropcrawler.yml"),
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

	// Validate engine selector
	switch strings.ToLower(c.Engines.Selector) {
	case "google", "yandex", "both":
	default:
		errs = append(errs, errors.New("engine selector must be google, yandex or both"))
	}
	if c.Engines.SearchTimeout <= 0 {
		errs = append(errs, errors.New("search timeout must be positive"))
	}

	// Validate rate limiting
	if c.RateLimit.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}
	if c.RateLimit.JitterFactor < 0 || c.RateLimit.JitterFactor > 1 {
		errs = append(errs, errors.New("jitter factor must be between 0 and 1"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	// Validate download settings
	if c.Download.MaxImages <= 0 {
		errs = append(errs, errors.New("max images must be positive"))
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

	// Validate output settings
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	// Validate conversion settings
	if c.Convert.Quality < 1 || c.Convert.Quality > 100 {
		errs = append(errs, errors.New("jpeg quality must be between 1 and 100"))
	}

	// Validate logging
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

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if selector, ok := flags["engine"].(string); ok && selector != "" {
		c.Engines.Selector = strings.ToLower(selector)
	}
	if maxImages, ok := flags["max-images"].(int); ok && maxImages > 0 {
		c.Download.MaxImages = maxImages
	}
	if delay, ok := flags["delay"].(float64); ok && delay >= 0 {
		c.RateLimit.Delay = time.Duration(delay * float64(time.Second))
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if csvDir, ok := flags["csv-dir"].(string); ok && csvDir != "" {
		c.Output.CSVDirectory = csvDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if timeout, ok := flags["timeout"].(int); ok && timeout > 0 {
		c.Download.DownloadTimeout = time.Duration(timeout) * time.Second
	}
	if retries, ok := flags["max-retries"].(int); ok && retries >= 0 {
		c.Download.RetryAttempts = retries
	}
	if quality, ok := flags["quality"].(int); ok && quality > 0 {
		c.Convert.Quality = quality
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cropcrawler.env"))

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

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
