package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestConstants tests the package-level constants.
func TestConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024*1024, DefaultMaxLogLength)
	assert.Equal(t, 1, minQuality)
	assert.Equal(t, 3, maxQuality)
}

func validBaseConfig() *Config {
	return &Config{
		SecretKey:              "valid_secret",
		LibraryDir:             "/tmp/library",
		AppLogLevel:            "info",
		RetryAttemptsCount:     3,
		MinRetryPause:          "1s",
		MaxRetryPause:          "5s",
		MaxConcurrentDownloads: 2,
		SearchConcurrency:      4,
		YoutubeSearchTimeout:   "8s",
	}
}

// TestLoadConfig tests that LoadConfig reads from the environment and applies defaults.
func TestLoadConfig(t *testing.T) {
	t.Setenv("SECRET_KEY", "env_secret")
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "env_secret", cfg.SecretKey)
	assert.Equal(t, int64(5), cfg.MaxConcurrentDownloads)
	assert.Equal(t, "./library", cfg.LibraryDir)
	assert.Equal(t, "yt-dlp", cfg.YtDlpBin)
	assert.Equal(t, "ffmpeg", cfg.FfmpegBin)
}

// TestValidateConfig tests ValidateConfig across a table of valid and invalid configurations.
//
//nolint:tparallel // It's a test function and it's not parallel to avoid race conditions.
func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(cfg *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(_ *Config) {},
			expectError: false,
		},
		{
			name:        "empty secret key",
			mutate:      func(cfg *Config) { cfg.SecretKey = "" },
			expectError: true,
			errorMsg:    "SECRET_KEY cannot be empty",
		},
		{
			name:        "whitespace secret key",
			mutate:      func(cfg *Config) { cfg.SecretKey = "   " },
			expectError: true,
			errorMsg:    "SECRET_KEY cannot be empty",
		},
		{
			name:        "empty library dir",
			mutate:      func(cfg *Config) { cfg.LibraryDir = "" },
			expectError: true,
			errorMsg:    "library_dir cannot be empty",
		},
		{
			name:        "min_quality zero is accepted",
			mutate:      func(cfg *Config) { cfg.MinQuality = 0 },
			expectError: false,
		},
		{
			name:        "min_quality too high",
			mutate:      func(cfg *Config) { cfg.MinQuality = 4 },
			expectError: true,
			errorMsg:    "invalid min_quality",
		},
		{
			name:        "invalid log level",
			mutate:      func(cfg *Config) { cfg.AppLogLevel = "invalid" },
			expectError: true,
			errorMsg:    "unknown log level",
		},
		{
			name:        "invalid retry attempts count",
			mutate:      func(cfg *Config) { cfg.RetryAttemptsCount = 0 },
			expectError: true,
			errorMsg:    "retry_attempts_count must be a positive integer",
		},
		{
			name:        "invalid min retry pause",
			mutate:      func(cfg *Config) { cfg.MinRetryPause = "invalid" },
			expectError: true,
			errorMsg:    "min_retry_pause must be positive",
		},
		{
			name:        "invalid max retry pause",
			mutate:      func(cfg *Config) { cfg.MaxRetryPause = "invalid" },
			expectError: true,
			errorMsg:    "max_retry_pause must be positive",
		},
		{
			name:        "invalid max concurrent downloads",
			mutate:      func(cfg *Config) { cfg.MaxConcurrentDownloads = 0 },
			expectError: true,
			errorMsg:    "max_concurrent_downloads must be a positive integer",
		},
		{
			name:        "invalid search concurrency",
			mutate:      func(cfg *Config) { cfg.SearchConcurrency = 0 },
			expectError: true,
			errorMsg:    "search_concurrency must be a positive integer",
		},
		{
			name:        "invalid youtube search timeout",
			mutate:      func(cfg *Config) { cfg.YoutubeSearchTimeout = "invalid" },
			expectError: true,
			errorMsg:    "youtube_search_timeout must be positive",
		},
		{
			name:        "invalid download speed limit",
			mutate:      func(cfg *Config) { cfg.DownloadSpeedLimit = "invalid" },
			expectError: true,
			errorMsg:    "failed to parse download speed limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBaseConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, zapcore.InfoLevel, cfg.ParsedLogLevel)
			}
		})
	}
}

// TestValidateConfig_DownloadSpeedLimit tests download speed limit parsing.
func TestValidateConfig_DownloadSpeedLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		speedLimit    string
		expectedBytes int64
	}{
		{name: "empty limit", speedLimit: "", expectedBytes: 0},
		{name: "zero limit", speedLimit: "0", expectedBytes: 0},
		{name: "1KB limit", speedLimit: "1KB", expectedBytes: 1000},
		{name: "1MB limit", speedLimit: "1MB", expectedBytes: 1000000},
		{name: "1GB limit", speedLimit: "1GB", expectedBytes: 1000000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBaseConfig()
			cfg.DownloadSpeedLimit = tt.speedLimit

			require.NoError(t, ValidateConfig(cfg))
			assert.Equal(t, tt.expectedBytes, cfg.ParsedDownloadSpeedLimit)
		})
	}
}

// TestValidateConfig_DurationSettings tests min_duration and max_duration validation.
func TestValidateConfig_DurationSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		minDuration   string
		maxDuration   string
		expectError   bool
		errorContains string
	}{
		{name: "no duration filtering", minDuration: "", maxDuration: "", expectError: false},
		{name: "only min set", minDuration: "30s", maxDuration: "", expectError: false},
		{name: "only max set", minDuration: "", maxDuration: "10m", expectError: false},
		{name: "both set with valid range", minDuration: "30s", maxDuration: "10m", expectError: false},
		{
			name: "invalid min_duration format", minDuration: "invalid", maxDuration: "",
			expectError: true, errorContains: "min_duration must be positive",
		},
		{
			name: "negative min_duration", minDuration: "-30s", maxDuration: "",
			expectError: true, errorContains: "min_duration must be positive",
		},
		{
			name: "zero max_duration", minDuration: "", maxDuration: "0s",
			expectError: true, errorContains: "max_duration must be positive",
		},
		{
			name: "max_duration equals min_duration", minDuration: "5m", maxDuration: "5m",
			expectError: true, errorContains: "max_duration must be greater than min_duration",
		},
		{
			name: "max_duration less than min_duration", minDuration: "10m", maxDuration: "5m",
			expectError: true, errorContains: "max_duration must be greater than min_duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBaseConfig()
			cfg.MinDuration = tt.minDuration
			cfg.MaxDuration = tt.maxDuration

			err := ValidateConfig(cfg)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)

				return
			}

			require.NoError(t, err)

			if tt.minDuration != "" {
				expected, parseErr := time.ParseDuration(tt.minDuration)
				require.NoError(t, parseErr)
				assert.Equal(t, expected, cfg.ParsedMinDuration)
			}

			if tt.maxDuration != "" {
				expected, parseErr := time.ParseDuration(tt.maxDuration)
				require.NoError(t, parseErr)
				assert.Equal(t, expected, cfg.ParsedMaxDuration)
			}
		})
	}
}

// TestEnsureLibraryDir tests that EnsureLibraryDir creates the configured directory.
func TestEnsureLibraryDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/library"
	cfg := &Config{LibraryDir: dir}

	require.NoError(t, EnsureLibraryDir(cfg))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
