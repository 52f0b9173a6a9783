package detector

import (
	"math"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// AlignmentPattern is a located 1:1:1 alignment pattern center.
type AlignmentPattern struct {
	ResultPoint
	EstimatedModuleSize float64 `json:"module_size"`
}

func (p *AlignmentPattern) aboutEquals(moduleSize, i, j float64) bool {
	if math.Abs(i-p.Y) <= moduleSize && math.Abs(j-p.X) <= moduleSize {
		moduleSizeDiff := math.Abs(moduleSize - p.EstimatedModuleSize)
		return moduleSizeDiff <= 1.0 || moduleSizeDiff <= p.EstimatedModuleSize
	}
	return false
}

// alignmentPatternFinder searches a rectangular region for the dark center
// module and surrounding light ring of an alignment pattern. The outer dark
// ring is not checked since it often merges with neighbouring data.
type alignmentPatternFinder struct {
	image           bitgrid.Bitmap
	startX, startY  int
	width, height   int
	moduleSize      float64
	possibleCenters []*AlignmentPattern
	stateCount      [3]int
}

// FindAlignmentPattern searches the region starting at (startX, startY) of
// the given size for an alignment pattern whose modules measure about
// moduleSize pixels.
func FindAlignmentPattern(image bitgrid.Bitmap, startX, startY, width, height int, moduleSize float64) (AlignmentPattern, error) {
	f := &alignmentPatternFinder{
		image:      image,
		startX:     startX,
		startY:     startY,
		width:      width,
		height:     height,
		moduleSize: moduleSize,
	}
	return f.find()
}

func (f *alignmentPatternFinder) find() (AlignmentPattern, error) {
	maxJ := f.startX + f.width
	middleI := f.startY + f.height/2
	var stateCount [3]int
	for iGen := range f.height {
		// Rows from the middle outwards.
		i := middleI - (iGen+1)/2
		if iGen&1 == 0 {
			i = middleI + (iGen+1)/2
		}
		if i < 0 || i >= f.image.Height() {
			continue
		}
		stateCount = [3]int{}
		j := f.startX
		// Skip light pixels that can't start a pattern.
		for j < maxJ && !f.image.IsDark(j, i) {
			j++
		}
		currentState := 0
		for ; j < maxJ; j++ {
			if f.image.IsDark(j, i) {
				switch currentState {
				case 1:
					stateCount[1]++
				case 2:
					if f.foundPatternCross(stateCount) {
						if confirmed := f.handlePossibleCenter(stateCount, i, j); confirmed != nil {
							return *confirmed, nil
						}
					}
					stateCount[0] = stateCount[2]
					stateCount[1] = 1
					stateCount[2] = 0
					currentState = 1
				default:
					currentState++
					stateCount[currentState]++
				}
				continue
			}
			if currentState == 1 {
				currentState++
			}
			stateCount[currentState]++
		}
		if f.foundPatternCross(stateCount) {
			if confirmed := f.handlePossibleCenter(stateCount, i, maxJ); confirmed != nil {
				return *confirmed, nil
			}
		}
	}

	// Fall back to the first candidate seen only once.
	if len(f.possibleCenters) > 0 {
		return *f.possibleCenters[0], nil
	}
	return AlignmentPattern{}, qrerr.NotFound("alignment", "no alignment pattern in %dx%d region at (%d,%d)",
		f.width, f.height, f.startX, f.startY)
}

func alignmentCenterFromEnd(stateCount [3]int, end int) float64 {
	return float64(end-stateCount[2]) - float64(stateCount[1])/2.0
}

func (f *alignmentPatternFinder) foundPatternCross(stateCount [3]int) bool {
	maxVariance := f.moduleSize / 2.0
	for _, count := range stateCount {
		if math.Abs(f.moduleSize-float64(count)) >= maxVariance {
			return false
		}
	}
	return true
}

func (f *alignmentPatternFinder) crossCheckVertical(startI, centerJ, maxCount, originalStateCountTotal int) float64 {
	img := f.image
	maxI := img.Height()
	f.stateCount = [3]int{}
	stateCount := &f.stateCount

	i := startI
	for i >= 0 && img.IsDark(centerJ, i) && stateCount[1] <= maxCount {
		stateCount[1]++
		i--
	}
	if i < 0 || stateCount[1] > maxCount {
		return math.NaN()
	}
	for i >= 0 && !img.IsDark(centerJ, i) && stateCount[0] <= maxCount {
		stateCount[0]++
		i--
	}
	if stateCount[0] > maxCount {
		return math.NaN()
	}

	i = startI + 1
	for i < maxI && img.IsDark(centerJ, i) && stateCount[1] <= maxCount {
		stateCount[1]++
		i++
	}
	if i == maxI || stateCount[1] > maxCount {
		return math.NaN()
	}
	for i < maxI && !img.IsDark(centerJ, i) && stateCount[2] <= maxCount {
		stateCount[2]++
		i++
	}
	if stateCount[2] > maxCount {
		return math.NaN()
	}

	stateCountTotal := stateCount[0] + stateCount[1] + stateCount[2]
	if 5*abs(stateCountTotal-originalStateCountTotal) >= 2*originalStateCountTotal {
		return math.NaN()
	}
	if !f.foundPatternCross(*stateCount) {
		return math.NaN()
	}
	return alignmentCenterFromEnd(*stateCount, i)
}

// handlePossibleCenter returns a pattern once it has been seen twice.
func (f *alignmentPatternFinder) handlePossibleCenter(stateCount [3]int, i, j int) *AlignmentPattern {
	stateCountTotal := stateCount[0] + stateCount[1] + stateCount[2]
	centerJ := alignmentCenterFromEnd(stateCount, j)
	centerI := f.crossCheckVertical(i, int(centerJ), 2*stateCount[1], stateCountTotal)
	if math.IsNaN(centerI) {
		return nil
	}
	estimatedModuleSize := float64(stateCountTotal) / 3.0
	for _, center := range f.possibleCenters {
		if center.aboutEquals(estimatedModuleSize, centerI, centerJ) {
			return &AlignmentPattern{
				ResultPoint:         ResultPoint{X: (center.X + centerJ) / 2, Y: (center.Y + centerI) / 2},
				EstimatedModuleSize: (center.EstimatedModuleSize + estimatedModuleSize) / 2,
			}
		}
	}
	f.possibleCenters = append(f.possibleCenters, &AlignmentPattern{
		ResultPoint:         ResultPoint{X: centerJ, Y: centerI},
		EstimatedModuleSize: estimatedModuleSize,
	})
	return nil
}
