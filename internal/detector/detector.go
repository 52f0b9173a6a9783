// Package detector locates a QR symbol in a binarized image and samples its
// module grid. It finds the three finder patterns, estimates module size and
// dimension, optionally refines the bottom-right corner with an alignment
// pattern and maps the symbol through a perspective transform.
package detector

import (
	"log/slog"
	"math"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/rectify"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// Options configures Detect.
type Options struct {
	TryHarder bool
	// Variance is passed to the finder pattern search; zero selects 0.5.
	Variance float64
}

// DetectorResult is a sampled module grid and the image points it was
// located from: bottom-left, top-left and top-right finder centers, then the
// alignment pattern center when one was found.
type DetectorResult struct {
	Bits   *bitgrid.BitGrid `json:"-"`
	Points []ResultPoint    `json:"points"`
}

// Alignment search radii in modules, tried in order.
var allowanceFactors = []float64{4, 8, 16}

// Detector runs detection against one bitmap.
type Detector struct {
	image bitgrid.Bitmap
}

// New returns a Detector for image.
func New(image bitgrid.Bitmap) *Detector {
	return &Detector{image: image}
}

// Detect locates and samples a single symbol in image.
func Detect(image bitgrid.Bitmap, opts Options) (*DetectorResult, error) {
	return New(image).Detect(opts)
}

// Detect locates and samples a single symbol.
func (d *Detector) Detect(opts Options) (*DetectorResult, error) {
	info, err := FindFinderPatterns(d.image, FinderOptions{TryHarder: opts.TryHarder, Variance: opts.Variance})
	if err != nil {
		return nil, err
	}
	return d.processFinderPatternInfo(info)
}

func (d *Detector) processFinderPatternInfo(info FinderPatternInfo) (*DetectorResult, error) {
	topLeft := info.TopLeft.ResultPoint
	topRight := info.TopRight.ResultPoint
	bottomLeft := info.BottomLeft.ResultPoint

	moduleSize := d.calculateModuleSize(topLeft, topRight, bottomLeft)
	if math.IsNaN(moduleSize) || moduleSize < 1.0 {
		return nil, qrerr.NotFound("detect", "module size %.2f too small", moduleSize)
	}
	dimension, err := computeDimension(topLeft, topRight, bottomLeft, moduleSize)
	if err != nil {
		return nil, err
	}
	provisionalVersion, err := symbol.ProvisionalVersionForDimension(dimension)
	if err != nil {
		return nil, err
	}
	modulesBetweenFPCenters := provisionalVersion.Dimension() - 7

	var alignment *AlignmentPattern
	if len(provisionalVersion.AlignmentPatternCenters()) > 0 {
		// Guess where a bottom-right finder would be, then pull the estimate
		// three modules back towards the top-left onto the alignment pattern.
		bottomRightX := topRight.X - topLeft.X + bottomLeft.X
		bottomRightY := topRight.Y - topLeft.Y + bottomLeft.Y
		correctionToTopLeft := 1.0 - 3.0/float64(modulesBetweenFPCenters)
		estAlignmentX := int(topLeft.X + correctionToTopLeft*(bottomRightX-topLeft.X))
		estAlignmentY := int(topLeft.Y + correctionToTopLeft*(bottomRightY-topLeft.Y))

		for _, factor := range allowanceFactors {
			ap, err := d.findAlignmentInRegion(moduleSize, estAlignmentX, estAlignmentY, factor)
			if err == nil {
				alignment = &ap
				break
			}
		}
		if alignment == nil {
			slog.Debug("No alignment pattern found, using finder patterns only",
				"version", provisionalVersion.Number(),
				"estimate_x", estAlignmentX,
				"estimate_y", estAlignmentY)
		}
	}

	transform := createTransform(topLeft, topRight, bottomLeft, alignment, dimension)
	bits, err := rectify.SampleGrid(d.image, dimension, dimension, transform)
	if err != nil {
		return nil, err
	}

	points := []ResultPoint{bottomLeft, topLeft, topRight}
	if alignment != nil {
		points = append(points, alignment.ResultPoint)
	}
	return &DetectorResult{Bits: bits, Points: points}, nil
}

// createTransform maps symbol space onto the image. Finder centers sit 3.5
// modules in from their corners; the alignment pattern 3 modules further in
// from the bottom-right finder's would-be center.
func createTransform(topLeft, topRight, bottomLeft ResultPoint, alignment *AlignmentPattern, dimension int) *rectify.PerspectiveTransform {
	dimMinusThree := float64(dimension) - 3.5
	var bottomRightX, bottomRightY, sourceBottomRightX, sourceBottomRightY float64
	if alignment != nil {
		bottomRightX = alignment.X
		bottomRightY = alignment.Y
		sourceBottomRightX = dimMinusThree - 3.0
		sourceBottomRightY = sourceBottomRightX
	} else {
		bottomRightX = topRight.X - topLeft.X + bottomLeft.X
		bottomRightY = topRight.Y - topLeft.Y + bottomLeft.Y
		sourceBottomRightX = dimMinusThree
		sourceBottomRightY = dimMinusThree
	}
	return rectify.QuadrilateralToQuadrilateral(
		3.5, 3.5,
		dimMinusThree, 3.5,
		sourceBottomRightX, sourceBottomRightY,
		3.5, dimMinusThree,
		topLeft.X, topLeft.Y,
		topRight.X, topRight.Y,
		bottomRightX, bottomRightY,
		bottomLeft.X, bottomLeft.Y,
	)
}

// computeDimension estimates the symbol side from finder spacing and snaps
// it to a valid 4k+1 value.
func computeDimension(topLeft, topRight, bottomLeft ResultPoint, moduleSize float64) (int, error) {
	tltrCentersDimension := int(math.Round(Distance(topLeft, topRight) / moduleSize))
	tlblCentersDimension := int(math.Round(Distance(topLeft, bottomLeft) / moduleSize))
	dimension := (tltrCentersDimension+tlblCentersDimension)/2 + 7
	switch dimension & 0x03 {
	case 0:
		dimension++
	case 2:
		dimension--
	case 3:
		return 0, qrerr.Format("detect", "estimated dimension %d is not 4k+1", dimension)
	}
	return dimension, nil
}

// calculateModuleSize averages the module size measured along the top edge
// and the left edge.
func (d *Detector) calculateModuleSize(topLeft, topRight, bottomLeft ResultPoint) float64 {
	return (d.calculateModuleSizeOneWay(topLeft, topRight) +
		d.calculateModuleSizeOneWay(topLeft, bottomLeft)) / 2.0
}

// calculateModuleSizeOneWay measures the 1:1:3:1:1 run through both
// patterns along the line joining them. Each full run spans 7 modules.
func (d *Detector) calculateModuleSizeOneWay(pattern, otherPattern ResultPoint) float64 {
	moduleSizeEst1 := d.sizeOfBlackWhiteBlackRunBothWays(int(pattern.X), int(pattern.Y),
		int(otherPattern.X), int(otherPattern.Y))
	moduleSizeEst2 := d.sizeOfBlackWhiteBlackRunBothWays(int(otherPattern.X), int(otherPattern.Y),
		int(pattern.X), int(pattern.Y))
	switch {
	case math.IsNaN(moduleSizeEst1):
		return moduleSizeEst2 / 7.0
	case math.IsNaN(moduleSizeEst2):
		return moduleSizeEst1 / 7.0
	}
	return (moduleSizeEst1 + moduleSizeEst2) / 14.0
}

// sizeOfBlackWhiteBlackRunBothWays measures the run from (fromX, fromY)
// towards (toX, toY) and in the mirrored direction, clamped to the image.
// The center pixel is counted by both halves.
func (d *Detector) sizeOfBlackWhiteBlackRunBothWays(fromX, fromY, toX, toY int) float64 {
	result := d.sizeOfBlackWhiteBlackRun(fromX, fromY, toX, toY)

	scale := 1.0
	otherToX := fromX - (toX - fromX)
	if otherToX < 0 {
		scale = float64(fromX) / float64(fromX-otherToX)
		otherToX = 0
	} else if otherToX >= d.image.Width() {
		scale = float64(d.image.Width()-1-fromX) / float64(otherToX-fromX)
		otherToX = d.image.Width() - 1
	}
	otherToY := int(float64(fromY) - float64(toY-fromY)*scale)

	scale = 1.0
	if otherToY < 0 {
		scale = float64(fromY) / float64(fromY-otherToY)
		otherToY = 0
	} else if otherToY >= d.image.Height() {
		scale = float64(d.image.Height()-1-fromY) / float64(otherToY-fromY)
		otherToY = d.image.Height() - 1
	}
	otherToX = int(float64(fromX) + float64(otherToX-fromX)*scale)

	result += d.sizeOfBlackWhiteBlackRun(fromX, fromY, otherToX, otherToY)
	return result - 1.0
}

// sizeOfBlackWhiteBlackRun walks a Bresenham line from the center of a
// finder pattern out through its light ring and dark ring, returning the
// distance to the first light pixel beyond. NaN means the line ended before
// the dark ring was crossed.
func (d *Detector) sizeOfBlackWhiteBlackRun(fromX, fromY, toX, toY int) float64 {
	steep := abs(toY-fromY) > abs(toX-fromX)
	if steep {
		fromX, fromY = fromY, fromX
		toX, toY = toY, toX
	}

	dx := abs(toX - fromX)
	dy := abs(toY - fromY)
	errAcc := -dx / 2
	xstep, ystep := -1, -1
	if fromX < toX {
		xstep = 1
	}
	if fromY < toY {
		ystep = 1
	}

	// 0: dark center, 1: light ring, 2: dark ring.
	state := 0
	xLimit := toX + xstep
	for x, y := fromX, fromY; x != xLimit; x += xstep {
		realX, realY := x, y
		if steep {
			realX, realY = y, x
		}
		if (state == 1) == d.image.IsDark(realX, realY) {
			if state == 2 {
				return Distance(ResultPoint{X: float64(x), Y: float64(y)}, ResultPoint{X: float64(fromX), Y: float64(fromY)})
			}
			state++
		}
		errAcc += dy
		if errAcc > 0 {
			if y == toY {
				break
			}
			y += ystep
			errAcc -= dx
		}
	}
	// Still in the dark ring at the end point: assume the next pixel is light.
	if state == 2 {
		return Distance(ResultPoint{X: float64(toX + xstep), Y: float64(toY)}, ResultPoint{X: float64(fromX), Y: float64(fromY)})
	}
	return math.NaN()
}

// findAlignmentInRegion searches a square of allowanceFactor modules
// around the estimate.
func (d *Detector) findAlignmentInRegion(moduleSize float64, estAlignmentX, estAlignmentY int, allowanceFactor float64) (AlignmentPattern, error) {
	allowance := int(allowanceFactor * moduleSize)
	left := max(0, estAlignmentX-allowance)
	right := min(d.image.Width()-1, estAlignmentX+allowance)
	if float64(right-left) < moduleSize*3 {
		return AlignmentPattern{}, qrerr.NotFound("alignment", "search region too narrow")
	}
	top := max(0, estAlignmentY-allowance)
	bottom := min(d.image.Height()-1, estAlignmentY+allowance)
	if float64(bottom-top) < moduleSize*3 {
		return AlignmentPattern{}, qrerr.NotFound("alignment", "search region too short")
	}
	return FindAlignmentPattern(d.image, left, top, right-left, bottom-top, moduleSize)
}
