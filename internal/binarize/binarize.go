// Package binarize turns decoded images into the dark/light bitmaps the QR
// detector reads.
package binarize

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Method selects the thresholding strategy.
type Method string

const (
	// MethodArea thresholds each cell of a coarse grid at the midpoint of
	// its darkest and brightest pixel.
	MethodArea Method = "area"
	// MethodOtsu uses one global threshold maximising between-class variance.
	MethodOtsu Method = "otsu"
	// MethodFixed compares against Config.Threshold.
	MethodFixed Method = "fixed"
)

// Methods lists the accepted method names.
var Methods = []Method{MethodArea, MethodOtsu, MethodFixed}

// ParseMethod converts a config or flag value to a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MethodArea, nil
	}
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown binarizer method %q (want area, otsu or fixed)", s)
}

const (
	defaultAreaGrid = 4
	// minDynamicRange is the smallest min/max spread treated as content.
	// Flatter cells are all light.
	minDynamicRange = 24
)

// Config controls ToBitmap.
type Config struct {
	Method Method
	// Threshold is the luma level for MethodFixed; darker pixels are dark.
	Threshold uint8
	// MaxPixels bounds the working resolution; larger images are
	// downscaled first. Zero disables downscaling.
	MaxPixels int
	// AreaGrid is the number of cells per side for MethodArea.
	AreaGrid int
	// Invert swaps dark and light for light-on-dark symbols.
	Invert bool
}

// DefaultConfig returns the area method over a 4x4 grid with a one
// megapixel budget.
func DefaultConfig() Config {
	return Config{
		Method:    MethodArea,
		Threshold: 128,
		MaxPixels: 1024 * 1024,
		AreaGrid:  defaultAreaGrid,
	}
}

// Result is a binarized image.
type Result struct {
	Bits *bitgrid.BitGrid
	// Scale maps result coordinates back to the source: source = result / Scale.
	Scale float64
	// Threshold is the global level used by the otsu and fixed methods.
	Threshold uint8
}

// ToBitmap downscales, converts to luma and thresholds img.
func ToBitmap(img image.Image, cfg Config) (*Result, error) {
	if img == nil {
		return nil, errors.New("binarize: nil image")
	}
	if img.Bounds().Empty() {
		return nil, errors.New("binarize: empty image")
	}
	method := cfg.Method
	if method == "" {
		method = MethodArea
	}

	work, scale, err := utils.ResizeImage(img, utils.ImageConstraints{MaxPixels: cfg.MaxPixels})
	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}
	lum, pooled := pooledLuminance(work)
	if pooled {
		defer mempool.PutBytes(lum.Pix)
	}

	res := &Result{Scale: scale}
	switch method {
	case MethodArea:
		grid := cfg.AreaGrid
		if grid <= 0 {
			grid = defaultAreaGrid
		}
		res.Bits = areaThreshold(lum, grid)
	case MethodOtsu:
		res.Threshold = OtsuThreshold(lum)
		res.Bits = globalThreshold(lum, res.Threshold+1)
	case MethodFixed:
		res.Threshold = cfg.Threshold
		res.Bits = globalThreshold(lum, cfg.Threshold)
	default:
		return nil, fmt.Errorf("binarize: unknown method %q", method)
	}

	if cfg.Invert {
		invert(res.Bits)
	}
	return res, nil
}

// Luminance converts img to a luma plane whose bounds start at the origin.
func Luminance(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	fillLuminance(out, img)
	return out
}

// pooledLuminance is Luminance backed by a pooled buffer. pooled reports
// whether the plane must be returned with mempool.PutBytes.
func pooledLuminance(img image.Image) (lum *image.Gray, pooled bool) {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g, false
	}
	b := img.Bounds()
	out := &image.Gray{
		Pix:    mempool.GetBytes(b.Dx() * b.Dy()),
		Stride: b.Dx(),
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
	fillLuminance(out, img)
	return out, true
}

// fillLuminance writes every pixel of out.
func fillLuminance(out *image.Gray, img image.Image) {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	for y := range b.Dy() {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+4*b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			// Grayscale leaves R=G=B; alpha is dropped.
			dst[x] = src[4*x]
		}
	}
}

// globalThreshold marks pixels with luma below level as dark.
func globalThreshold(lum *image.Gray, level uint8) *bitgrid.BitGrid {
	w, h := lum.Rect.Dx(), lum.Rect.Dy()
	bits := bitgrid.New(w, h)
	for y := range h {
		row := lum.Pix[y*lum.Stride : y*lum.Stride+w]
		for x, v := range row {
			if v < level {
				bits.Set(x, y)
			}
		}
	}
	return bits
}

// areaThreshold splits the image into grid x grid cells and thresholds each
// at the midpoint of its own darkest and brightest pixel. Leftover rows and
// columns join the last cell.
func areaThreshold(lum *image.Gray, grid int) *bitgrid.BitGrid {
	w, h := lum.Rect.Dx(), lum.Rect.Dy()
	grid = min(grid, w, h)
	areaWidth, areaHeight := w/grid, h/grid
	cell := func(x, y int) (int, int) {
		return min(x/areaWidth, grid-1), min(y/areaHeight, grid-1)
	}

	lo := mempool.GetBytes(grid * grid)
	hi := mempool.GetBytes(grid * grid)
	defer mempool.PutBytes(lo)
	defer mempool.PutBytes(hi)
	for i := range lo {
		lo[i] = 255
		hi[i] = 0
	}
	for y := range h {
		row := lum.Pix[y*lum.Stride : y*lum.Stride+w]
		for x, v := range row {
			ax, ay := cell(x, y)
			i := ay*grid + ax
			lo[i] = min(lo[i], v)
			hi[i] = max(hi[i], v)
		}
	}

	middle := mempool.GetInts(grid * grid)
	defer mempool.PutInts(middle)
	for i := range middle {
		if int(hi[i])-int(lo[i]) < minDynamicRange {
			middle[i] = 0
			continue
		}
		middle[i] = (int(lo[i]) + int(hi[i])) / 2
	}

	bits := bitgrid.New(w, h)
	for y := range h {
		row := lum.Pix[y*lum.Stride : y*lum.Stride+w]
		for x, v := range row {
			ax, ay := cell(x, y)
			if int(v) < middle[ay*grid+ax] {
				bits.Set(x, y)
			}
		}
	}
	return bits
}

func invert(bits *bitgrid.BitGrid) {
	for y := range bits.Height() {
		for x := range bits.Width() {
			bits.Flip(x, y)
		}
	}
}
