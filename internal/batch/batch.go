// Package batch scans many image files with one pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// ProcessBatch scans a batch of images with the given configuration.
func ProcessBatch(imagePaths []string, config *Config) (*Result, error) {
	return ProcessBatchContext(context.Background(), imagePaths, config)
}

// ProcessBatchContext is ProcessBatch with cancellation. Files that fail to
// load or hold no decodable symbol are recorded in Result.Errors.
func ProcessBatchContext(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}

	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progressCallback = pipeline.NewConsoleProgressCallback(
			config.stdout(),
			"Scanning: ",
		).WithUpdateInterval(config.ProgressInterval)
	}

	pl, err := buildPipeline(config, progressCallback)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	startTime := time.Now()
	images, errs := loadImages(files)
	results, err := scanImages(ctx, pl, files, images, errs)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	if config.OverlayDir != "" {
		if err := saveOverlays(config.OverlayDir, files, images, results); err != nil {
			slog.Warn("some overlays were not written", "dir", config.OverlayDir, "error", err)
		}
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Result{
		Results:     results,
		Errors:      errs,
		ImagePaths:  files,
		Duration:    duration,
		WorkerCount: min(workers, len(files)),
	}, nil
}

// Run scans, writes the formatted results and prints statistics unless quiet.
func Run(ctx context.Context, imagePaths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	result, err := ProcessBatchContext(ctx, imagePaths, config)
	if err != nil {
		return nil, err
	}
	out := config.stdout()
	if err := result.SaveResults(out, config.Format, config.OutputFile, config.Quiet); err != nil {
		return result, err
	}
	result.PrintStats(out, config.Quiet)
	return result, nil
}
