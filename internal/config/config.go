// Package config loads and validates trackgrab's process configuration from
// environment variables and an optional .env file, following the same
// viper-backed shape as the teacher project's config package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/trackgrab/internal/logger"
	"github.com/oshokin/trackgrab/internal/utils"
)

// Config holds all configuration settings recognized by the service (spec.md §6).
type Config struct {
	// SecretKey encrypts OAuth refresh tokens at rest.
	SecretKey string `mapstructure:"secret_key"`
	// DatabaseURL is the sqlite3 DSN (or bare file path) for the catalog database.
	DatabaseURL string `mapstructure:"database_url"`
	// SpotifyClientID is the OAuth client id for the streaming provider.
	SpotifyClientID string `mapstructure:"spotify_client_id"`
	// SpotifyClientSecret is the OAuth client secret for the streaming provider.
	SpotifyClientSecret string `mapstructure:"spotify_client_secret"`
	// SpotifyRedirectURI is the OAuth PKCE redirect target.
	SpotifyRedirectURI string `mapstructure:"spotify_redirect_uri"`
	// LibraryDir is the directory library files are written to and served from.
	LibraryDir string `mapstructure:"library_dir"`
	// YtDlpBin is the path to the extractor binary.
	YtDlpBin string `mapstructure:"yt_dlp_bin"`
	// FfmpegBin is the path to the mux binary.
	FfmpegBin string `mapstructure:"ffmpeg_bin"`
	// PreferredAudioFormat is passed through to the extractor download step.
	PreferredAudioFormat string `mapstructure:"preferred_audio_format"`
	// DownloadFake enables the extractor's fixture download mode for tests.
	DownloadFake bool `mapstructure:"download_fake"`
	// YoutubeSearchFake enables the extractor's fixture search mode for tests.
	YoutubeSearchFake bool `mapstructure:"youtube_search_fake"`
	// YoutubeSearchFallbackFake is loaded from the environment, but no search path
	// reads it: a timed-out real search does not fall back to canned results.
	YoutubeSearchFallbackFake bool `mapstructure:"youtube_search_fallback_fake"`
	// YoutubeSearchLimit is loaded from the environment, but no search path reads it:
	// it does not cap the number of candidates a search returns.
	YoutubeSearchLimit int `mapstructure:"youtube_search_limit"`
	// YoutubeSearchTimeout is the wall-clock budget for one search call (e.g. "8s").
	YoutubeSearchTimeout string `mapstructure:"youtube_search_timeout"`
	// YoutubeSearchMaxPages bounds how many result pages a search will page through.
	YoutubeSearchMaxPages int `mapstructure:"youtube_search_max_pages"`
	// YoutubeSearchPageSize is the page size requested per search page.
	YoutubeSearchPageSize int `mapstructure:"youtube_search_page_size"`
	// YoutubeSearchPageStopThreshold is passed to searches as SearchOptions.StopScore.
	// The real extractor client does not score hits while paging, so it never stops
	// early on it; paging ends after YoutubeSearchMaxPages pages or at an empty page.
	YoutubeSearchPageStopThreshold float64 `mapstructure:"youtube_search_page_stop_threshold"`
	// YoutubeSearchGraphQLURL is the search backend's GraphQL endpoint.
	YoutubeSearchGraphQLURL string `mapstructure:"youtube_search_graphql_url"`
	// DisableDownloadWorker starts the scheduler without spinning up worker goroutines.
	DisableDownloadWorker bool `mapstructure:"disable_download_worker"`
	// DownloadYtdlpExtractorArgs is passed verbatim to the extractor's --extractor-args flag.
	DownloadYtdlpExtractorArgs string `mapstructure:"download_ytdlp_extractor_args"`
	// DownloadEmbedThumbnail enables embedding the extractor-provided thumbnail as a cover fallback.
	DownloadEmbedThumbnail bool `mapstructure:"download_embed_thumbnail"`
	// CorsOrigins is a comma-separated allowlist for the orchestration API.
	CorsOrigins string `mapstructure:"cors_origins"`
	// AppLogLevel specifies the logging verbosity level.
	AppLogLevel string `mapstructure:"app_log_level"`
	// MinQuality is validated (1-3, or 0 for unset) but no other package reads it;
	// candidates are not filtered by audio quality.
	MinQuality uint8 `mapstructure:"min_quality"`
	// MinDuration (e.g. "30s") is parsed into ParsedMinDuration; no other package
	// reads it, so tracks are not skipped for being too short.
	MinDuration string `mapstructure:"min_duration"`
	// MaxDuration (e.g. "10m") is parsed into ParsedMaxDuration; no other package
	// reads it, so tracks are not skipped for being too long.
	MaxDuration string `mapstructure:"max_duration"`
	// MaxConcurrentDownloads bounds the scheduler's worker pool size.
	MaxConcurrentDownloads int64 `mapstructure:"max_concurrent_downloads"`
	// SearchConcurrency bounds the bulk auto-download path's parallel extractor searches.
	SearchConcurrency int64 `mapstructure:"search_concurrency"`
	// HistoryKeep is how many terminal Download rows the periodic sweep retains.
	HistoryKeep int64 `mapstructure:"history_keep"`
	// RetryAttemptsCount is the number of retry attempts for failed downloads.
	RetryAttemptsCount int64 `mapstructure:"retry_attempts_count"`
	// MinRetryPause is the minimum pause duration before retrying.
	MinRetryPause string `mapstructure:"min_retry_pause"`
	// MaxRetryPause is the maximum pause duration before retrying.
	MaxRetryPause string `mapstructure:"max_retry_pause"`
	// DownloadSpeedLimit sets the maximum download speed (e.g., "1MB", "500KB").
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`
	// MinAutochooseScore is the minimum ranking score for bulk auto-download to pick a candidate.
	MinAutochooseScore float64 `mapstructure:"min_autochoose_score"`
	// ListenAddress is the address the orchestration API listens on.
	ListenAddress string `mapstructure:"listen_address"`
	// TrackFilenameTemplate is an html/template (escaping undone) rendering a track's tags into
	// a library filename stem; empty falls back to naming.DefaultTrackFilenameTemplate.
	TrackFilenameTemplate string `mapstructure:"track_filename_template"`

	// ParsedMinDuration is the parsed minimum track duration.
	ParsedMinDuration time.Duration
	// ParsedMaxDuration is the parsed maximum track duration.
	ParsedMaxDuration time.Duration
	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes.
	ParsedDownloadSpeedLimit int64
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
	// ParsedMinRetryPause is the parsed minimum retry pause duration.
	ParsedMinRetryPause time.Duration
	// ParsedMaxRetryPause is the parsed maximum retry pause duration.
	ParsedMaxRetryPause time.Duration
	// ParsedYoutubeSearchTimeout is the parsed extractor search wall-clock budget.
	ParsedYoutubeSearchTimeout time.Duration
}

const (
	// DefaultMaxLogLength is the default maximum size (in bytes) for HTTP transport debug dumps.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// minQuality is the minimum valid quality value.
	minQuality = 1
	// maxQuality is the maximum valid quality value.
	maxQuality = 3

	// defaultLibraryDirPermissions mirrors the teacher's defaultFolderPermissions literal.
	defaultLibraryDirPermissions = 0o755
)

// Static error definitions for better error handling.
var (
	ErrEmptySecretKey             = errors.New("SECRET_KEY cannot be empty")
	ErrInvalidMinQuality          = errors.New("invalid min_quality")
	ErrInvalidMinDuration         = errors.New("min_duration must be positive")
	ErrInvalidMaxDuration         = errors.New("max_duration must be positive")
	ErrMaxDurationTooLow          = errors.New("max_duration must be greater than min_duration")
	ErrUnknownLogLevel            = errors.New("unknown log level")
	ErrInvalidRetryAttempts       = errors.New("retry_attempts_count must be a positive integer")
	ErrInvalidMinRetryPause       = errors.New("min_retry_pause must be positive")
	ErrInvalidMaxRetryPause       = errors.New("max_retry_pause must be positive")
	ErrInvalidConcurrentDownloads = errors.New("max_concurrent_downloads must be a positive integer")
	ErrInvalidSearchConcurrency   = errors.New("search_concurrency must be a positive integer")
	ErrInvalidSearchTimeout       = errors.New("youtube_search_timeout must be positive")
	ErrEmptyLibraryDir            = errors.New("library_dir cannot be empty")
)

// setDefaults mirrors the teacher's viper.SetDefault convention.
func setDefaults() {
	viper.SetDefault("library_dir", "./library")
	viper.SetDefault("database_url", "./trackgrab.db")
	viper.SetDefault("yt_dlp_bin", "yt-dlp")
	viper.SetDefault("ffmpeg_bin", "ffmpeg")
	viper.SetDefault("preferred_audio_format", "mp3")
	viper.SetDefault("app_log_level", "info")
	viper.SetDefault("max_concurrent_downloads", 2)
	viper.SetDefault("search_concurrency", 4)
	viper.SetDefault("history_keep", 30)
	viper.SetDefault("retry_attempts_count", 3)
	viper.SetDefault("min_retry_pause", "2s")
	viper.SetDefault("max_retry_pause", "10s")
	viper.SetDefault("download_speed_limit", "")
	viper.SetDefault("youtube_search_limit", 15)
	viper.SetDefault("youtube_search_timeout", "8s")
	viper.SetDefault("youtube_search_max_pages", 3)
	viper.SetDefault("youtube_search_page_size", 20)
	viper.SetDefault("youtube_search_page_stop_threshold", 120.0)
	viper.SetDefault("youtube_search_graphql_url", "https://music.youtube.com/youtubei/v1/search")
	viper.SetDefault("min_autochoose_score", 60.0)
	viper.SetDefault("listen_address", ":8080")
	viper.SetDefault("download_embed_thumbnail", true)
	viper.SetDefault("track_filename_template", "{{.artists}} - {{.title}}")
	viper.SetDefault("secret_key", "")
	viper.SetDefault("spotify_client_id", "")
	viper.SetDefault("spotify_client_secret", "")
	viper.SetDefault("spotify_redirect_uri", "")
	viper.SetDefault("download_fake", false)
	viper.SetDefault("youtube_search_fake", false)
	viper.SetDefault("youtube_search_fallback_fake", false)
	viper.SetDefault("disable_download_worker", false)
	viper.SetDefault("download_ytdlp_extractor_args", "")
	viper.SetDefault("cors_origins", "")
	viper.SetDefault("min_quality", 0)
	viper.SetDefault("min_duration", "")
	viper.SetDefault("max_duration", "")
}

// LoadConfig loads configuration from a .env file (if present) plus the process environment.
func LoadConfig(envFilename string) (*Config, error) {
	// Loading a .env file is best-effort: its absence is normal in container deployments
	// where variables are injected directly, matching godotenv's typical usage elsewhere in the pack.
	if envFilename == "" {
		envFilename = ".env"
	}

	_ = godotenv.Load(envFilename)

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,gocognit,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return ErrEmptySecretKey
	}

	if strings.TrimSpace(cfg.LibraryDir) == "" {
		return ErrEmptyLibraryDir
	}

	if cfg.MinQuality > 0 && (cfg.MinQuality < minQuality || cfg.MinQuality > maxQuality) {
		return fmt.Errorf("%w: must be between %d and %d, or 0 to disable",
			ErrInvalidMinQuality, minQuality, maxQuality)
	}

	if err := parseDurationFields(cfg); err != nil {
		return err
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.AppLogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.AppLogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	if err := parseSpeedLimit(cfg); err != nil {
		return err
	}

	if cfg.RetryAttemptsCount <= 0 {
		return ErrInvalidRetryAttempts
	}

	var err error

	cfg.ParsedMinRetryPause, err = time.ParseDuration(cfg.MinRetryPause)
	if err != nil || cfg.ParsedMinRetryPause <= 0 {
		return ErrInvalidMinRetryPause
	}

	cfg.ParsedMaxRetryPause, err = time.ParseDuration(cfg.MaxRetryPause)
	if err != nil || cfg.ParsedMaxRetryPause <= 0 {
		return ErrInvalidMaxRetryPause
	}

	if cfg.MaxConcurrentDownloads <= 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.SearchConcurrency <= 0 {
		return ErrInvalidSearchConcurrency
	}

	cfg.ParsedYoutubeSearchTimeout, err = time.ParseDuration(cfg.YoutubeSearchTimeout)
	if err != nil || cfg.ParsedYoutubeSearchTimeout <= 0 {
		return ErrInvalidSearchTimeout
	}

	return nil
}

func parseDurationFields(cfg *Config) error {
	if cfg.MinDuration != "" {
		parsed, err := time.ParseDuration(cfg.MinDuration)
		if err != nil || parsed <= 0 {
			return ErrInvalidMinDuration
		}

		cfg.ParsedMinDuration = parsed
	}

	if cfg.MaxDuration != "" {
		parsed, err := time.ParseDuration(cfg.MaxDuration)
		if err != nil || parsed <= 0 {
			return ErrInvalidMaxDuration
		}

		cfg.ParsedMaxDuration = parsed

		if cfg.MinDuration != "" && cfg.ParsedMaxDuration <= cfg.ParsedMinDuration {
			return ErrMaxDurationTooLow
		}
	}

	return nil
}

func parseSpeedLimit(cfg *Config) error {
	downloadSpeedLimit := strings.TrimSpace(cfg.DownloadSpeedLimit)
	if downloadSpeedLimit == "" || downloadSpeedLimit == "0" {
		return nil
	}

	parsed, err := humanize.ParseBytes(downloadSpeedLimit)
	if err != nil {
		return fmt.Errorf("failed to parse download speed limit: %w", err)
	}

	// io.CopyN accepts only int64 so we transform it safely in order to use it later.
	cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsed)

	return nil
}

// EnsureLibraryDir creates the configured library directory if it doesn't already exist.
func EnsureLibraryDir(cfg *Config) error {
	return os.MkdirAll(cfg.LibraryDir, defaultLibraryDirPermissions)
}
