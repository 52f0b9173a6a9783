package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// loadImages loads every path. Failed loads keep a nil image and their error.
func loadImages(paths []string) ([]image.Image, []error) {
	images := make([]image.Image, len(paths))
	errs := make([]error, len(paths))
	for i, loaded := range utils.BatchLoadImages(paths) {
		if loaded.Err != nil {
			errs[i] = fmt.Errorf("failed to load %s: %w", loaded.Path, loaded.Err)
			continue
		}
		images[i] = loaded.Img
	}
	return images, errs
}

// scanImages runs the loaded images through the pipeline's worker pool and
// merges decode failures into errs. Per-image failures are not fatal; only
// cancellation aborts the run.
func scanImages(ctx context.Context, pl *pipeline.Pipeline, paths []string, images []image.Image,
	errs []error) ([]*pipeline.ScanImageResult, error) {
	results := make([]*pipeline.ScanImageResult, len(paths))

	var batchImages []image.Image
	var index []int
	for i, img := range images {
		if img != nil {
			batchImages = append(batchImages, img)
			index = append(index, i)
		}
	}
	if len(batchImages) == 0 {
		return results, nil
	}

	cfg := pl.Config().Parallel
	cfg.ErrorHandler = func(i int, _ image.Image, err error) {
		errs[index[i]] = err
	}
	scanned, err := pl.ProcessImagesParallelContext(ctx, batchImages, cfg)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && scanned == nil {
		return nil, err
	}

	for i, res := range scanned {
		if res == nil {
			continue
		}
		res.Source = paths[index[i]]
		pipeline.SortCodesTopLeft(res)
		results[index[i]] = res
	}
	return results, nil
}

// saveOverlays renders the decoded symbols over every successfully scanned image.
func saveOverlays(dir string, paths []string, images []image.Image, results []*pipeline.ScanImageResult) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay dir: %w", err)
	}
	style := pipeline.DefaultOverlayStyle()
	var errs []error
	for i, res := range results {
		if res == nil || images[i] == nil {
			continue
		}
		out := overlayPath(dir, paths[i])
		if err := pipeline.SaveOverlay(out, images[i], res, style); err != nil {
			slog.Warn("failed to save overlay", "file", paths[i], "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func overlayPath(dir, path string) string {
	base := filepath.Base(path)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}
