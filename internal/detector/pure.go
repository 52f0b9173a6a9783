package detector

import (
	"math"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// ExtractPureBits samples an axis-aligned, unrotated symbol that is the only
// dark content in image, such as a freshly rendered code. It is much faster
// than Detect but fails on anything else.
func ExtractPureBits(image bitgrid.Bitmap) (*bitgrid.BitGrid, error) {
	bits, _, err := extractPure(image)
	return bits, err
}

// DetectPure is ExtractPureBits returning a DetectorResult whose points are
// the finder pattern centers implied by the symbol's extent.
func DetectPure(image bitgrid.Bitmap) (*DetectorResult, error) {
	bits, g, err := extractPure(image)
	if err != nil {
		return nil, err
	}
	near := 3.5 * g.moduleSize
	far := (float64(bits.Width()) - 3.5) * g.moduleSize
	x0, y0 := float64(g.left), float64(g.top)
	return &DetectorResult{
		Bits: bits,
		Points: []ResultPoint{
			{X: x0 + near, Y: y0 + far},
			{X: x0 + near, Y: y0 + near},
			{X: x0 + far, Y: y0 + near},
		},
	}, nil
}

type pureGeometry struct {
	left, top  int
	moduleSize float64
}

func extractPure(image bitgrid.Bitmap) (*bitgrid.BitGrid, pureGeometry, error) {
	left, top, ok := topLeftOnBit(image)
	if !ok {
		return nil, pureGeometry{}, qrerr.NotFound("pure", "image has no dark pixels")
	}
	right, bottom, _ := bottomRightOnBit(image)

	moduleSize, err := pureModuleSize(image, left, top)
	if err != nil {
		return nil, pureGeometry{}, err
	}
	geometry := pureGeometry{left: left, top: top, moduleSize: moduleSize}
	if left >= right || top >= bottom {
		return nil, geometry, qrerr.NotFound("pure", "degenerate bounds (%d,%d)-(%d,%d)", left, top, right, bottom)
	}
	if bottom-top != right-left {
		// The bottom-right corner module may be light; trust the height.
		right = left + (bottom - top)
		if right >= image.Width() {
			return nil, geometry, qrerr.NotFound("pure", "symbol runs off the right edge")
		}
	}

	matrixWidth := int(math.Round(float64(right-left+1) / moduleSize))
	matrixHeight := int(math.Round(float64(bottom-top+1) / moduleSize))
	if matrixWidth <= 0 || matrixHeight <= 0 {
		return nil, geometry, qrerr.NotFound("pure", "empty matrix")
	}
	if matrixWidth != matrixHeight {
		return nil, geometry, qrerr.NotFound("pure", "matrix is %dx%d", matrixWidth, matrixHeight)
	}

	// Move to module centers, then pull back if the last module overshoots.
	nudge := int(moduleSize / 2.0)
	top += nudge
	left += nudge
	if nudgedTooFarRight := left + int(float64(matrixWidth-1)*moduleSize) - right; nudgedTooFarRight > 0 {
		if nudgedTooFarRight > nudge {
			return nil, geometry, qrerr.NotFound("pure", "sampling overshoots right edge by %d", nudgedTooFarRight)
		}
		left -= nudgedTooFarRight
	}
	if nudgedTooFarDown := top + int(float64(matrixHeight-1)*moduleSize) - bottom; nudgedTooFarDown > 0 {
		if nudgedTooFarDown > nudge {
			return nil, geometry, qrerr.NotFound("pure", "sampling overshoots bottom edge by %d", nudgedTooFarDown)
		}
		top -= nudgedTooFarDown
	}

	bits := bitgrid.New(matrixWidth, matrixHeight)
	for y := range matrixHeight {
		iOffset := top + int(float64(y)*moduleSize)
		for x := range matrixWidth {
			if image.IsDark(left+int(float64(x)*moduleSize), iOffset) {
				bits.Set(x, y)
			}
		}
	}
	return bits, geometry, nil
}

// pureModuleSize walks the diagonal from the top-left corner through the
// finder pattern. The fifth color change is 7 modules in.
func pureModuleSize(image bitgrid.Bitmap, left, top int) (float64, error) {
	width, height := image.Width(), image.Height()
	x, y := left, top
	inBlack := true
	transitions := 0
	for x < width && y < height {
		if inBlack != image.IsDark(x, y) {
			transitions++
			if transitions == 5 {
				break
			}
			inBlack = !inBlack
		}
		x++
		y++
	}
	if x == width || y == height {
		return 0, qrerr.NotFound("pure", "finder diagonal reaches the image edge")
	}
	return float64(x-left) / 7.0, nil
}

func topLeftOnBit(image bitgrid.Bitmap) (x, y int, ok bool) {
	for y := range image.Height() {
		for x := range image.Width() {
			if image.IsDark(x, y) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

func bottomRightOnBit(image bitgrid.Bitmap) (x, y int, ok bool) {
	for y := image.Height() - 1; y >= 0; y-- {
		for x := image.Width() - 1; x >= 0; x-- {
			if image.IsDark(x, y) {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}
