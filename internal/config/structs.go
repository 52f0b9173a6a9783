//nolint:lll
package config

// Config represents the complete configuration for the qrscan application.
// It includes settings for all commands (decode, batch, pdf, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Decoder configuration
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// PDF configuration (for pdf command)
	PDF PDFConfig `mapstructure:"pdf" yaml:"pdf" json:"pdf"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Scan history
	History HistoryConfig `mapstructure:"history" yaml:"history" json:"history"`
}

// ScanConfig contains binarizer and decoder settings.
type ScanConfig struct {
	Binarizer       string `mapstructure:"binarizer" yaml:"binarizer" json:"binarizer"`
	Threshold       int    `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	MaxPixels       int    `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
	AreaGrid        int    `mapstructure:"area_grid" yaml:"area_grid" json:"area_grid"`
	TryHarder       bool   `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	PureFirst       bool   `mapstructure:"pure_first" yaml:"pure_first" json:"pure_first"`
	InvertRetry     bool   `mapstructure:"invert_retry" yaml:"invert_retry" json:"invert_retry"`
	CharsetFallback string `mapstructure:"charset_fallback" yaml:"charset_fallback" json:"charset_fallback"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include   []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude   []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// PDFConfig contains PDF scanning settings.
type PDFConfig struct {
	Pages          string `mapstructure:"pages" yaml:"pages" json:"pages"`
	TargetDPI      int    `mapstructure:"target_dpi" yaml:"target_dpi" json:"target_dpi"`
	MaxWorkers     int    `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	AllowPasswords bool   `mapstructure:"allow_passwords" yaml:"allow_passwords" json:"allow_passwords"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits for the server.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxDataPerMinute  int64 `mapstructure:"max_data_per_minute" yaml:"max_data_per_minute" json:"max_data_per_minute"`
}

// HistoryConfig controls the on-disk log of decoded symbols.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}
