package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/binarize"
	"github.com/MeKo-Tech/qrscan/internal/charset"
)

// Config holds configuration for the scan pipeline.
type Config struct {
	Scan barcode.Options

	// Parallel processing configuration
	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Scan:     barcode.DefaultOptions(),
		Parallel: DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	backend barcode.Backend
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithBinarizer selects the thresholding method.
func (b *Builder) WithBinarizer(method binarize.Method) *Builder {
	if method != "" {
		b.cfg.Scan.Binarizer.Method = method
	}
	return b
}

// WithThreshold sets the level used by the fixed binarizer.
func (b *Builder) WithThreshold(level uint8) *Builder {
	b.cfg.Scan.Binarizer.Threshold = level
	return b
}

// WithMaxPixels sets the pixel budget above which images are downscaled.
func (b *Builder) WithMaxPixels(n int) *Builder {
	if n >= 0 {
		b.cfg.Scan.Binarizer.MaxPixels = n
	}
	return b
}

// WithAreaGrid sets the number of areas per side for the area binarizer.
func (b *Builder) WithAreaGrid(n int) *Builder {
	if n > 0 {
		b.cfg.Scan.Binarizer.AreaGrid = n
	}
	return b
}

// WithTryHarder enables the exhaustive finder pattern search.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.Scan.TryHarder = enabled
	return b
}

// WithPureFirst tries the pure extractor before the detector.
func (b *Builder) WithPureFirst(enabled bool) *Builder {
	b.cfg.Scan.PureFirst = enabled
	return b
}

// WithInvertRetry retries every image with inverted brightness.
func (b *Builder) WithInvertRetry(enabled bool) *Builder {
	b.cfg.Scan.InvertRetry = enabled
	return b
}

// WithCharsetFallback names the encoding for untagged non-UTF-8 byte data.
func (b *Builder) WithCharsetFallback(name string) *Builder {
	if name != "" {
		b.cfg.Scan.CharsetFallback = name
	}
	return b
}

// WithROI restricts scanning to a rectangle of every image.
func (b *Builder) WithROI(roi image.Rectangle) *Builder {
	b.cfg.Scan.ROI = roi
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// WithBackend replaces the native decoder backend.
func (b *Builder) WithBackend(backend barcode.Backend) *Builder {
	b.backend = backend
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if _, err := binarize.ParseMethod(string(b.cfg.Scan.Binarizer.Method)); err != nil {
		return err
	}
	if b.cfg.Scan.Binarizer.MaxPixels < 0 {
		return errors.New("max pixels must be >= 0")
	}
	if b.cfg.Scan.Binarizer.AreaGrid < 0 {
		return errors.New("area grid must be >= 0")
	}
	if fb := b.cfg.Scan.CharsetFallback; fb != "" {
		if _, err := charset.Lookup(fb); err != nil {
			return fmt.Errorf("charset fallback: %w", err)
		}
	}
	if b.cfg.Parallel.MaxWorkers < 0 {
		return errors.New("parallel workers must be >= 0")
	}
	return nil
}

// Pipeline turns images into decoded QR codes.
type Pipeline struct {
	cfg      Config
	Backend  barcode.Backend
	Profiler *Profiler
}

// Build validates the configuration and initializes the decoder backend.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	backend := b.backend
	if backend == nil {
		var err error
		backend, err = barcode.NewBackend()
		if err != nil {
			return nil, fmt.Errorf("init barcode backend: %w", err)
		}
	}
	return &Pipeline{cfg: b.cfg, Backend: backend, Profiler: &Profiler{}}, nil
}

// Close releases the backend. The pipeline cannot be used afterwards.
func (p *Pipeline) Close() error {
	p.Backend = nil
	return nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	scan := p.cfg.Scan
	info := map[string]any{
		"binarizer":        string(scan.Binarizer.Method),
		"threshold":        scan.Binarizer.Threshold,
		"max_pixels":       scan.Binarizer.MaxPixels,
		"try_harder":       scan.TryHarder,
		"pure_first":       scan.PureFirst,
		"invert_retry":     scan.InvertRetry,
		"charset_fallback": scan.CharsetFallback,
		"parallel": map[string]any{
			"max_workers":           p.cfg.Parallel.MaxWorkers,
			"has_progress_callback": p.cfg.Parallel.ProgressCallback != nil,
		},
	}
	if p.Profiler != nil {
		info["profile"] = p.Profiler.Snapshot()
	}
	return info
}
