package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the images handed to the scanner.
type ImageConstraints struct {
	// MaxPixels is the pixel budget above which images are downscaled.
	MaxPixels int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints allows one megapixel and symbols of at least
// 21x21 pixels.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxPixels: 1024 * 1024,
		MinWidth:  21,
		MinHeight: 21,
	}
}

// ValidateImageConstraints checks dimensions against the provided constraints.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return &ImageProcessingError{
			Operation: "validate",
			Err: fmt.Errorf(
				"image too small: %dx%d < %dx%d",
				w, h, constraints.MinWidth, constraints.MinHeight,
			),
		}
	}
	return nil
}

// DownscaleFactor returns the factor (<= 1) that brings a width x height
// image within maxPixels while keeping its aspect ratio.
func DownscaleFactor(width, height, maxPixels int) float64 {
	if maxPixels <= 0 || width*height <= maxPixels {
		return 1.0
	}
	return math.Sqrt(float64(maxPixels) / float64(width*height))
}

// ResizeImage shrinks img to fit MaxPixels and returns the factor applied.
// Images already within budget are returned unchanged with factor 1.
// Box filtering keeps module edges sharp.
func ResizeImage(img image.Image, constraints ImageConstraints) (image.Image, float64, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	scale := DownscaleFactor(b.Dx(), b.Dy(), constraints.MaxPixels)
	if scale >= 1.0 {
		return img, 1.0, nil
	}
	newWidth := max(1, int(float64(b.Dx())*scale))
	newHeight := max(1, int(float64(b.Dy())*scale))
	return imaging.Resize(img, newWidth, newHeight, imaging.Box), scale, nil
}
