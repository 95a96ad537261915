package portsweep

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "1-1024", config.PortsInput)
	assert.Equal(t, 200, config.Threads)
	assert.Equal(t, 0.8, config.TimeoutSeconds)
	assert.Equal(t, 1024, config.BannerBytes)
	assert.True(t, config.EnableCaching)
	assert.Equal(t, 60, config.CacheTTL)
	assert.Equal(t, "logs", config.LogDir)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, []string{"json"}, config.ReportFormats)
	assert.True(t, config.ConsoleReport)
	assert.False(t, config.MetricsEnabled)

	require.NoError(t, config.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "zero threads",
			mutate:  func(c *Config) { c.Threads = 0 },
			wantErr: ErrInvalidThreads,
		},
		{
			name:    "negative threads",
			mutate:  func(c *Config) { c.Threads = -5 },
			wantErr: ErrInvalidThreads,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.TimeoutSeconds = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative banner bytes",
			mutate:  func(c *Config) { c.BannerBytes = -1 },
			wantErr: ErrInvalidBannerBytes,
		},
		{
			name:    "empty log dir",
			mutate:  func(c *Config) { c.LogDir = "" },
			wantErr: ErrInvalidPath,
		},
		{
			name:    "empty report dir",
			mutate:  func(c *Config) { c.ReportDir = "" },
			wantErr: ErrInvalidPath,
		},
		{
			name: "auth without credentials",
			mutate: func(c *Config) {
				c.MetricsAuth = true
				c.MetricsUsername = "admin"
			},
			wantErr: ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	config := DefaultConfig()
	config.LogLevel = "VERBOSE"
	config.CacheTTL = 0
	config.ReportFormats = []string{"JSON", "xml", "Pdf", "csv"}

	require.NoError(t, config.Validate())

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 60, config.CacheTTL)
	assert.Equal(t, []string{"json", "pdf", "csv"}, config.ReportFormats)
}

func TestValidateAllowsZeroBannerBytes(t *testing.T) {
	config := DefaultConfig()
	config.BannerBytes = 0

	require.NoError(t, config.Validate())
	assert.False(t, config.BannerGrab())
}

func TestConfigTimeout(t *testing.T) {
	config := DefaultConfig()
	config.TimeoutSeconds = 0.5

	assert.Equal(t, 500*time.Millisecond, config.Timeout())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	config := DefaultConfig()
	config.TargetInput = "192.168.1.0/24"
	config.PortsInput = "top"
	config.Threads = 50
	config.TimeoutSeconds = 1.5
	config.MetricsEnabled = true
	config.MetricsPort = "9090"

	require.NoError(t, config.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config, loaded)
}

func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	config := DefaultConfig()
	require.NoError(t, config.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 200, loaded.Threads)
	assert.Equal(t, "1-1024", loaded.PortsInput)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
