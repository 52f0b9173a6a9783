package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ProcessImages scans multiple images sequentially. Results keep the input
// order; an image that failed to decode leaves a nil entry, and the first
// such failure is returned alongside the results.
func (p *Pipeline) ProcessImages(images []image.Image) ([]*ScanImageResult, error) {
	return p.ProcessImagesContext(context.Background(), images)
}

// ProcessImagesContext processes images with context cancellation support.
func (p *Pipeline) ProcessImagesContext(ctx context.Context, images []image.Image) ([]*ScanImageResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Backend == nil {
		return nil, errors.New("pipeline not initialized")
	}

	results := make([]*ScanImageResult, len(images))
	var firstErr error
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.ProcessImageContext(ctx, img)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("image %d: %w", i, err)
			}
			continue
		}
		results[i] = res
	}
	return results, firstErr
}
