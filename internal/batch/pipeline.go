package batch

import (
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// buildPipeline creates a scan pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	scan := config.Scan
	b := pipeline.NewBuilder().
		WithBinarizer(scan.Binarizer.Method).
		WithThreshold(scan.Binarizer.Threshold).
		WithMaxPixels(scan.Binarizer.MaxPixels).
		WithAreaGrid(scan.Binarizer.AreaGrid).
		WithTryHarder(scan.TryHarder).
		WithPureFirst(scan.PureFirst).
		WithInvertRetry(scan.InvertRetry).
		WithCharsetFallback(scan.CharsetFallback).
		WithParallelWorkers(config.Workers).
		WithProgressCallback(progressCallback)

	if !scan.ROI.Empty() {
		b = b.WithROI(scan.ROI)
	}
	return b.Build()
}
