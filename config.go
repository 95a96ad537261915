package portsweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config errors
var (
	ErrInvalidThreads     = errors.New("invalid thread count")
	ErrInvalidTimeout     = errors.New("invalid connect timeout")
	ErrInvalidBannerBytes = errors.New("invalid banner byte limit")
	ErrInvalidPath        = errors.New("invalid path")
	ErrMissingCredentials = errors.New("missing credentials for metrics authentication")
)

// Config represents the configuration for a portsweep run.
type Config struct {
	// Scan configuration
	TargetInput    string  `json:"target_input"`
	PortsInput     string  `json:"ports_input"`
	Threads        int     `json:"threads"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	BannerBytes    int     `json:"banner_bytes"`
	Quiet          bool    `json:"quiet"`
	EnableCaching  bool    `json:"enable_caching"`
	CacheTTL       int     `json:"cache_ttl_minutes"`

	// Logging configuration
	LogDir   string `json:"log_dir"`
	LogLevel string `json:"log_level"`

	// Report configuration
	ReportDir     string   `json:"report_dir"`
	ReportFormats []string `json:"report_formats"`
	JSONPath      string   `json:"json_path"`
	ConsoleReport bool     `json:"console_report"`

	// Metrics configuration
	MetricsEnabled  bool   `json:"metrics_enabled"`
	MetricsPort     string `json:"metrics_port"`
	MetricsTLS      bool   `json:"metrics_tls"`
	MetricsHostname string `json:"metrics_hostname"`
	MetricsAuth     bool   `json:"metrics_auth"`
	MetricsUsername string `json:"metrics_username"`
	MetricsPassword string `json:"metrics_password"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		PortsInput:     "1-1024",
		Threads:        200,
		TimeoutSeconds: 0.8,
		BannerBytes:    1024,
		EnableCaching:  true,
		CacheTTL:       60,

		LogDir:   "logs",
		LogLevel: "info",

		ReportDir:     "reports",
		ReportFormats: []string{"json"},
		ConsoleReport: true,

		MetricsEnabled:  false,
		MetricsPort:     "8080",
		MetricsTLS:      false,
		MetricsHostname: "localhost",
		MetricsAuth:     false,
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the current configuration to a file.
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidThreads, c.Threads)
	}

	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTimeout, c.TimeoutSeconds)
	}

	// Zero disables banner capture; negative values make no sense.
	if c.BannerBytes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBannerBytes, c.BannerBytes)
	}

	if c.CacheTTL < 1 {
		c.CacheTTL = 60
	}

	if c.LogDir == "" || c.ReportDir == "" {
		return fmt.Errorf("%w: directory paths cannot be empty", ErrInvalidPath)
	}

	logLevel := strings.ToLower(c.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		c.LogLevel = "info"
	}

	if c.MetricsAuth && (c.MetricsUsername == "" || c.MetricsPassword == "") {
		return fmt.Errorf("%w: both username and password required when auth enabled", ErrMissingCredentials)
	}

	validFormats := map[string]bool{
		"json": true,
		"csv":  true,
		"pdf":  true,
	}
	var formats []string
	for _, format := range c.ReportFormats {
		format = strings.ToLower(format)
		if validFormats[format] {
			formats = append(formats, format)
		}
	}
	c.ReportFormats = formats

	return nil
}

// Timeout returns the connect timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// BannerGrab reports whether banner capture is enabled.
func (c *Config) BannerGrab() bool {
	return c.BannerBytes > 0
}
