package cmd

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/qrscan/internal/config"
)

// addScanFlags registers the decoder flags shared by every scanning command.
func addScanFlags(cmd *cobra.Command) {
	d := config.DefaultConfig().Scan
	f := cmd.Flags()
	f.String("binarizer", d.Binarizer, "binarizer method: area, otsu or fixed")
	f.Int("threshold", d.Threshold, "luminance threshold for the fixed binarizer (0-255)")
	f.Int("max-pixels", d.MaxPixels, "downscale images above this many pixels before binarizing")
	f.Int("area-grid", d.AreaGrid, "regions per side for the area binarizer")
	f.Bool("try-harder", d.TryHarder, "spend more time looking for finder patterns")
	f.Bool("pure-first", d.PureFirst, "try the pure-symbol fast path before the detector")
	f.Bool("invert", d.InvertRetry, "retry with inverted luminance for light-on-dark symbols")
	f.String("charset", d.CharsetFallback, "charset for byte segments that are not valid UTF-8")
}

// addOutputFlags registers the result formatting flags.
func addOutputFlags(cmd *cobra.Command) {
	d := config.DefaultConfig().Output
	f := cmd.Flags()
	f.StringP("format", "f", d.Format, "output format: text, json, yaml or csv")
	f.StringP("output", "o", d.File, "write results to a file instead of stdout")
	f.String("overlay-dir", d.OverlayDir, "write overlay PNGs marking decoded symbols to this directory")
}

// applyFlagOverrides copies explicitly set command flags over cfg.
// Flags that are absent from cmd or left at their default are ignored.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	var errs []string
	set := func(name string, apply func(f *pflag.Flag) error) {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			return
		}
		if err := apply(f); err != nil {
			errs = append(errs, fmt.Sprintf("--%s: %v", name, err))
		}
	}
	str := func(dst *string) func(*pflag.Flag) error {
		return func(f *pflag.Flag) error {
			*dst = f.Value.String()
			return nil
		}
	}
	integer := func(dst *int) func(*pflag.Flag) error {
		return func(f *pflag.Flag) (err error) {
			*dst, err = strconv.Atoi(f.Value.String())
			return err
		}
	}
	int64v := func(dst *int64) func(*pflag.Flag) error {
		return func(f *pflag.Flag) (err error) {
			*dst, err = strconv.ParseInt(f.Value.String(), 10, 64)
			return err
		}
	}
	boolean := func(dst *bool) func(*pflag.Flag) error {
		return func(f *pflag.Flag) (err error) {
			*dst, err = strconv.ParseBool(f.Value.String())
			return err
		}
	}
	strSlice := func(dst *[]string) func(*pflag.Flag) error {
		return func(f *pflag.Flag) (err error) {
			*dst, err = fs.GetStringSlice(f.Name)
			return err
		}
	}

	// scan
	set("binarizer", str(&cfg.Scan.Binarizer))
	set("threshold", integer(&cfg.Scan.Threshold))
	set("max-pixels", integer(&cfg.Scan.MaxPixels))
	set("area-grid", integer(&cfg.Scan.AreaGrid))
	set("try-harder", boolean(&cfg.Scan.TryHarder))
	set("pure-first", boolean(&cfg.Scan.PureFirst))
	set("invert", boolean(&cfg.Scan.InvertRetry))
	set("charset", str(&cfg.Scan.CharsetFallback))

	// output
	set("format", str(&cfg.Output.Format))
	set("output", str(&cfg.Output.File))
	set("overlay-dir", str(&cfg.Output.OverlayDir))

	// batch
	set("workers", integer(&cfg.Batch.Workers))
	set("recursive", boolean(&cfg.Batch.Recursive))
	set("include", strSlice(&cfg.Batch.Include))
	set("exclude", strSlice(&cfg.Batch.Exclude))

	// pdf
	set("pages", str(&cfg.PDF.Pages))
	set("target-dpi", integer(&cfg.PDF.TargetDPI))
	set("pdf-workers", integer(&cfg.PDF.MaxWorkers))

	// server
	set("host", str(&cfg.Server.Host))
	set("port", integer(&cfg.Server.Port))
	set("cors-origin", str(&cfg.Server.CORSOrigin))
	set("max-upload-size", int64v(&cfg.Server.MaxUploadMB))
	set("timeout", integer(&cfg.Server.TimeoutSec))
	set("shutdown-timeout", integer(&cfg.Server.ShutdownTimeout))
	set("overlay-enable", boolean(&cfg.Server.OverlayEnabled))
	set("rate-limit-enabled", boolean(&cfg.Server.RateLimit.Enabled))
	set("requests-per-minute", integer(&cfg.Server.RateLimit.RequestsPerMinute))
	set("requests-per-hour", integer(&cfg.Server.RateLimit.RequestsPerHour))
	set("max-data-per-minute", int64v(&cfg.Server.RateLimit.MaxDataPerMinute))

	if len(errs) > 0 {
		return fmt.Errorf("invalid flags: %s", strings.Join(errs, "; "))
	}
	return nil
}

// parseROI parses "x,y,w,h" into a rectangle. The empty string means the
// whole image.
func parseROI(s string) (image.Rectangle, error) {
	if strings.TrimSpace(s) == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid roi %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid roi %q: %w", s, err)
		}
		v[i] = n
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid roi %q: offsets must be non-negative and sizes positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
