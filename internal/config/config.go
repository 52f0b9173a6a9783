package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/binarize"
	"github.com/MeKo-Tech/qrscan/internal/charset"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// HistoryFileName is the database file created under the data directory.
const HistoryFileName = "history.db"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	bin := binarize.DefaultConfig()
	pdfDefaults := pdf.DefaultProcessorConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Scan: ScanConfig{
			Binarizer:       string(bin.Method),
			Threshold:       int(bin.Threshold),
			MaxPixels:       bin.MaxPixels,
			AreaGrid:        bin.AreaGrid,
			TryHarder:       false,
			PureFirst:       true,
			InvertRetry:     false,
			CharsetFallback: charset.DefaultFallback,
		},
		Output: OutputConfig{
			Format: string(pipeline.OutputText),
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
		},
		PDF: PDFConfig{
			TargetDPI:      pdfDefaults.TargetDPI,
			AllowPasswords: pdfDefaults.AllowPasswords,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxDataPerMinute:  100 * 1024 * 1024,
			},
		},
		History: HistoryConfig{
			Enabled: false,
		},
	}
}

// DefaultHistoryPath is $XDG_DATA_HOME/qrscan/history.db, falling back to
// ~/.local/share.
func DefaultHistoryPath() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, ConfigFileName, HistoryFileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", ConfigFileName, HistoryFileName)
	}
	return filepath.Join(os.TempDir(), ConfigFileName, HistoryFileName)
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := pipeline.ParseOutputFormat(c.Output.Format); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	if _, err := binarize.ParseMethod(c.Scan.Binarizer); err != nil {
		return fmt.Errorf("invalid scan.binarizer: %w", err)
	}
	if c.Scan.Threshold < 0 || c.Scan.Threshold > 255 {
		return fmt.Errorf("invalid scan.threshold: %d (must be between 0 and 255)", c.Scan.Threshold)
	}
	if c.Scan.MaxPixels < 0 {
		return fmt.Errorf("invalid scan.max_pixels: %d (must not be negative)", c.Scan.MaxPixels)
	}
	if c.Scan.AreaGrid < 0 {
		return fmt.Errorf("invalid scan.area_grid: %d (must not be negative)", c.Scan.AreaGrid)
	}
	if c.Scan.CharsetFallback != "" {
		if _, err := charset.Lookup(c.Scan.CharsetFallback); err != nil {
			return fmt.Errorf("invalid scan.charset_fallback: %w", err)
		}
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.PDF.TargetDPI < 0 {
		return fmt.Errorf("invalid pdf.target_dpi: %d (must not be negative)", c.PDF.TargetDPI)
	}
	if c.PDF.MaxWorkers < 0 {
		return fmt.Errorf("invalid pdf.max_workers: %d (must not be negative)", c.PDF.MaxWorkers)
	}
	if c.PDF.Pages != "" {
		if _, err := pdf.ParsePageRange(c.PDF.Pages); err != nil {
			return fmt.Errorf("invalid pdf.pages: %w", err)
		}
	}

	return c.Server.validate()
}

func (s *ServerConfig) validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", s.Port)
	}
	if s.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", s.MaxUploadMB)
	}
	if s.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", s.TimeoutSec)
	}
	if s.ShutdownTimeout < 0 {
		return errors.New("invalid shutdown timeout: must not be negative")
	}
	if s.RateLimit.Enabled && s.RateLimit.RequestsPerMinute <= 0 && s.RateLimit.RequestsPerHour <= 0 {
		return errors.New("rate limit enabled without requests_per_minute or requests_per_hour")
	}
	return nil
}

// NewPipelineBuilder returns a pipeline builder carrying the scan settings.
func (c *Config) NewPipelineBuilder() *pipeline.Builder {
	method, err := binarize.ParseMethod(c.Scan.Binarizer)
	if err != nil {
		// Build reports the invalid method.
		method = binarize.Method(c.Scan.Binarizer)
	}
	return pipeline.NewBuilder().
		WithBinarizer(method).
		WithThreshold(uint8(max(0, min(c.Scan.Threshold, 255)))).
		WithMaxPixels(c.Scan.MaxPixels).
		WithAreaGrid(c.Scan.AreaGrid).
		WithTryHarder(c.Scan.TryHarder).
		WithPureFirst(c.Scan.PureFirst).
		WithInvertRetry(c.Scan.InvertRetry).
		WithCharsetFallback(c.Scan.CharsetFallback).
		WithParallelWorkers(c.Batch.Workers)
}

// ScanOptions converts the scan section to decoder options.
func (c *Config) ScanOptions() barcode.Options {
	return c.NewPipelineBuilder().Config().Scan
}

// ToBatchConfig converts the batch and output sections to a batch.Config.
func (c *Config) ToBatchConfig() *batch.Config {
	bc := batch.DefaultConfig()
	bc.Scan = c.ScanOptions()
	bc.Workers = c.Batch.Workers
	bc.Recursive = c.Batch.Recursive
	bc.IncludePatterns = c.Batch.Include
	bc.ExcludePatterns = c.Batch.Exclude
	bc.Format = c.Output.Format
	bc.OutputFile = c.Output.File
	bc.OverlayDir = c.Output.OverlayDir
	return bc
}

// ToPDFConfig converts the pdf section to a processor configuration.
func (c *Config) ToPDFConfig() *pdf.ProcessorConfig {
	return &pdf.ProcessorConfig{
		AllowPasswords: c.PDF.AllowPasswords,
		TargetDPI:      c.PDF.TargetDPI,
		MaxWorkers:     c.PDF.MaxWorkers,
	}
}

// HistoryPath returns the configured history database or the default one.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return DefaultHistoryPath()
}
