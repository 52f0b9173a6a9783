package cmd

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func newDecodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decode [files...]",
		Aliases: []string{"image"},
		Short:   "Decode QR codes in image files",
		Long: `Decode the QR Code symbols in one or more image files.

Supported formats: PNG, JPEG, GIF, BMP, TIFF, WebP

Files without a decodable symbol are reported on stderr and make the
command exit non-zero; the other files are still printed.

Examples:
  qrscan decode ticket.png
  qrscan decode *.png --format json
  qrscan decode photo.jpg --roi 100,100,400,400 --try-harder
  qrscan decode scan.png --overlay-dir overlays/`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDecode(cmd, args)
		},
	}
	addScanFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().String("roi", "", "restrict the scan to a region: x,y,w,h in pixels")
	return cmd
}

func (a *app) runDecode(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errNoInput
	}
	cfg := a.cfg

	format, err := pipeline.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	roiFlag, _ := cmd.Flags().GetString("roi")
	roi, err := parseROI(roiFlag)
	if err != nil {
		return err
	}

	b := cfg.NewPipelineBuilder()
	if !roi.Empty() {
		b = b.WithROI(roi)
	}
	pl, err := b.Build()
	if err != nil {
		return fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	hist, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(hist)

	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	results := make([]*pipeline.ScanImageResult, 0, len(args))
	var failed []string
	for _, path := range args {
		if !utils.IsSupportedImage(path) {
			_, _ = fmt.Fprintf(stderr, "%s: unsupported image format\n", path)
			failed = append(failed, path)
			continue
		}
		img, _, err := utils.LoadImage(path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failed = append(failed, path)
			continue
		}
		res, err := pl.ProcessImageContext(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, _ = fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failed = append(failed, path)
			continue
		}
		res.Source = path
		pipeline.SortCodesTopLeft(res)
		results = append(results, res)

		if cfg.Output.OverlayDir != "" {
			if err := saveOverlay(cfg.Output.OverlayDir, path, img, res); err != nil {
				slog.Warn("Failed to write overlay", "file", path, "error", err)
			}
		}
		if hist != nil {
			if err := hist.Record(ctx, originCLI, res); err != nil {
				slog.Warn("Failed to record scan history", "file", path, "error", err)
			}
		}
	}

	if len(results) > 0 {
		out, err := pipeline.FormatImages(results, format)
		if err != nil {
			return fmt.Errorf("failed to format results: %w", err)
		}
		if err := writeOutput(cmd.OutOrStdout(), out, cfg.Output.File); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d file(s) could not be decoded: %s", len(failed), len(args), strings.Join(failed, ", "))
	}
	return nil
}

// saveOverlay writes <dir>/<name>_overlay.png.
func saveOverlay(dir, path string, img image.Image, res *pipeline.ScanImageResult) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay dir: %w", err)
	}
	base := filepath.Base(path)
	out := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	return pipeline.SaveOverlay(out, img, res, pipeline.DefaultOverlayStyle())
}
