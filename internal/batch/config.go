package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// Config holds all configuration for batch scanning.
type Config struct {
	// Scan settings passed to the pipeline.
	Scan       barcode.Options
	OverlayDir string
	Format     string
	OutputFile string

	// Parallel processing settings
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration

	// Stdout receives results and statistics; nil means os.Stdout.
	Stdout io.Writer
}

// DefaultConfig scans with the default options, one worker per CPU and text
// output.
func DefaultConfig() *Config {
	return &Config{
		Scan:             barcode.DefaultOptions(),
		Format:           "text",
		ProgressInterval: 100 * time.Millisecond,
	}
}

func (c *Config) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// Result holds the result of a batch run. Results, Errors and ImagePaths
// are index-aligned; a nil result has a matching non-nil error.
type Result struct {
	Results     []*pipeline.ScanImageResult
	Errors      []error
	ImagePaths  []string
	Duration    time.Duration
	WorkerCount int
}

// Failed returns the number of files that could not be loaded or scanned.
func (r *Result) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// CodeCount returns the number of decoded symbols across all files.
func (r *Result) CodeCount() int {
	n := 0
	for _, res := range r.Results {
		if res != nil {
			n += len(res.Codes)
		}
	}
	return n
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r, format)
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(w, output)
	if output != "" && output[len(output)-1] != '\n' {
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Decoded: %d\n", stats.DecodedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(w, "  Codes: %d\n", r.CodeCount())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
