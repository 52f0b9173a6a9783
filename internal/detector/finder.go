package detector

import (
	"cmp"
	"math"
	"slices"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

const (
	minSkip = 3
	// maxModules bounds the row skip so symbols up to version 20 filling the
	// image are still hit by several scan rows.
	maxModules   = 97
	centerQuorum = 2
	// defaultVariance is the tolerated deviation from the 1:1:3:1:1 ratio as
	// a fraction of one module.
	defaultVariance = 0.5
)

// FinderPattern is a candidate finder pattern center.
type FinderPattern struct {
	ResultPoint
	EstimatedModuleSize float64 `json:"module_size"`
	Count               int     `json:"count"`
}

// aboutEquals reports whether an observation at row i, column j with the
// given module size is the same pattern.
func (p *FinderPattern) aboutEquals(moduleSize, i, j float64) bool {
	if math.Abs(i-p.Y) <= moduleSize && math.Abs(j-p.X) <= moduleSize {
		moduleSizeDiff := math.Abs(moduleSize - p.EstimatedModuleSize)
		return moduleSizeDiff <= 1.0 || moduleSizeDiff <= p.EstimatedModuleSize
	}
	return false
}

// combineEstimate averages a new observation into p, weighted by count.
func (p *FinderPattern) combineEstimate(i, j, newModuleSize float64) {
	n := float64(p.Count)
	combined := n + 1
	p.X = (n*p.X + j) / combined
	p.Y = (n*p.Y + i) / combined
	p.EstimatedModuleSize = (n*p.EstimatedModuleSize + newModuleSize) / combined
	p.Count++
}

// FinderPatternInfo holds the three finder patterns of one symbol.
type FinderPatternInfo struct {
	BottomLeft FinderPattern
	TopLeft    FinderPattern
	TopRight   FinderPattern
}

// FinderOptions tunes the finder pattern search.
type FinderOptions struct {
	// TryHarder scans every third row regardless of image size.
	TryHarder bool
	// Variance is the tolerated ratio deviation as a fraction of a module.
	// Zero selects 0.5.
	Variance float64
}

type finderPatternFinder struct {
	image           bitgrid.Bitmap
	possibleCenters []*FinderPattern
	hasSkipped      bool
	variance        float64
	stateCount      [5]int
}

// FindFinderPatterns locates the three finder patterns in image.
func FindFinderPatterns(image bitgrid.Bitmap, opts FinderOptions) (FinderPatternInfo, error) {
	f := &finderPatternFinder{image: image, variance: opts.Variance}
	if f.variance <= 0 {
		f.variance = defaultVariance
	}
	return f.find(opts.TryHarder)
}

func (f *finderPatternFinder) find(tryHarder bool) (FinderPatternInfo, error) {
	maxI := f.image.Height()
	maxJ := f.image.Width()
	// Assume the symbol takes at least three quarters of the image height.
	iSkip := (3 * maxI) / (4 * maxModules)
	if iSkip < minSkip || tryHarder {
		iSkip = minSkip
	}

	done := false
	var stateCount [5]int
	for i := iSkip - 1; i < maxI && !done; i += iSkip {
		stateCount = [5]int{}
		currentState := 0
		for j := 0; j < maxJ; j++ {
			if f.image.IsDark(j, i) {
				if currentState&1 == 1 {
					currentState++
				}
				stateCount[currentState]++
				continue
			}
			if currentState&1 == 1 {
				stateCount[currentState]++
				continue
			}
			if currentState != 4 {
				currentState++
				stateCount[currentState]++
				continue
			}
			if !f.foundPatternCross(stateCount) {
				shiftCounts2(&stateCount)
				currentState = 3
				continue
			}
			if !f.handlePossibleCenter(stateCount, i, j) {
				shiftCounts2(&stateCount)
				currentState = 3
				continue
			}
			// Every other row from here on.
			iSkip = 2
			if f.hasSkipped {
				done = f.haveMultiplyConfirmedCenters()
			} else if rowSkip := f.findRowSkip(); rowSkip > stateCount[2] {
				// Jump towards the presumed third pattern, backing off by the
				// center width and the skip about to be re-added.
				i += rowSkip - stateCount[2] - iSkip
				j = maxJ - 1
			}
			currentState = 0
			stateCount = [5]int{}
		}
		if f.foundPatternCross(stateCount) && f.handlePossibleCenter(stateCount, i, maxJ) {
			iSkip = stateCount[0]
			if f.hasSkipped {
				done = f.haveMultiplyConfirmedCenters()
			}
		}
	}

	bestPatterns, err := f.selectBestPatterns()
	if err != nil {
		return FinderPatternInfo{}, err
	}
	bottomLeft, topLeft, topRight := orderBestPatterns(bestPatterns[0], bestPatterns[1], bestPatterns[2])
	return FinderPatternInfo{BottomLeft: *bottomLeft, TopLeft: *topLeft, TopRight: *topRight}, nil
}

func shiftCounts2(stateCount *[5]int) {
	stateCount[0] = stateCount[2]
	stateCount[1] = stateCount[3]
	stateCount[2] = stateCount[4]
	stateCount[3] = 1
	stateCount[4] = 0
}

func centerFromEnd(stateCount [5]int, end int) float64 {
	return float64(end-stateCount[4]-stateCount[3]) - float64(stateCount[2])/2.0
}

// foundPatternCross checks run lengths against 1:1:3:1:1.
func (f *finderPatternFinder) foundPatternCross(stateCount [5]int) bool {
	return checkRatios(stateCount, f.variance)
}

// foundPatternDiagonal is foundPatternCross with the looser tolerance that
// diagonal sampling needs.
func (f *finderPatternFinder) foundPatternDiagonal(stateCount [5]int) bool {
	return checkRatios(stateCount, f.variance*1.5)
}

func checkRatios(stateCount [5]int, variance float64) bool {
	totalModuleSize := 0
	for _, count := range stateCount {
		if count == 0 {
			return false
		}
		totalModuleSize += count
	}
	if totalModuleSize < 7 {
		return false
	}
	moduleSize := float64(totalModuleSize) / 7.0
	maxVariance := moduleSize * variance
	return math.Abs(moduleSize-float64(stateCount[0])) < maxVariance &&
		math.Abs(moduleSize-float64(stateCount[1])) < maxVariance &&
		math.Abs(3.0*moduleSize-float64(stateCount[2])) < 3*maxVariance &&
		math.Abs(moduleSize-float64(stateCount[3])) < maxVariance &&
		math.Abs(moduleSize-float64(stateCount[4])) < maxVariance
}

func (f *finderPatternFinder) crossCheckStateCount() *[5]int {
	f.stateCount = [5]int{}
	return &f.stateCount
}

// crossCheckDiagonal walks the main diagonal through the center.
func (f *finderPatternFinder) crossCheckDiagonal(centerI, centerJ int) bool {
	stateCount := f.crossCheckStateCount()
	img := f.image

	// Up and to the left: center, white ring, black ring.
	i := 0
	for centerI >= i && centerJ >= i && img.IsDark(centerJ-i, centerI-i) {
		stateCount[2]++
		i++
	}
	if stateCount[2] == 0 {
		return false
	}
	for centerI >= i && centerJ >= i && !img.IsDark(centerJ-i, centerI-i) {
		stateCount[1]++
		i++
	}
	if stateCount[1] == 0 {
		return false
	}
	for centerI >= i && centerJ >= i && img.IsDark(centerJ-i, centerI-i) {
		stateCount[0]++
		i++
	}
	if stateCount[0] == 0 {
		return false
	}

	maxI := img.Height()
	maxJ := img.Width()

	// Down and to the right.
	i = 1
	for centerI+i < maxI && centerJ+i < maxJ && img.IsDark(centerJ+i, centerI+i) {
		stateCount[2]++
		i++
	}
	for centerI+i < maxI && centerJ+i < maxJ && !img.IsDark(centerJ+i, centerI+i) {
		stateCount[3]++
		i++
	}
	if stateCount[3] == 0 {
		return false
	}
	for centerI+i < maxI && centerJ+i < maxJ && img.IsDark(centerJ+i, centerI+i) {
		stateCount[4]++
		i++
	}
	if stateCount[4] == 0 {
		return false
	}
	return f.foundPatternDiagonal(*stateCount)
}

// crossCheckVertical re-measures the pattern along column centerJ and
// returns the vertical center, or NaN when the column does not match.
func (f *finderPatternFinder) crossCheckVertical(startI, centerJ, maxCount, originalStateCountTotal int) float64 {
	img := f.image
	maxI := img.Height()
	stateCount := f.crossCheckStateCount()

	i := startI
	for i >= 0 && img.IsDark(centerJ, i) {
		stateCount[2]++
		i--
	}
	if i < 0 {
		return math.NaN()
	}
	for i >= 0 && !img.IsDark(centerJ, i) && stateCount[1] <= maxCount {
		stateCount[1]++
		i--
	}
	if i < 0 || stateCount[1] > maxCount {
		return math.NaN()
	}
	for i >= 0 && img.IsDark(centerJ, i) && stateCount[0] <= maxCount {
		stateCount[0]++
		i--
	}
	if stateCount[0] > maxCount {
		return math.NaN()
	}

	i = startI + 1
	for i < maxI && img.IsDark(centerJ, i) {
		stateCount[2]++
		i++
	}
	if i == maxI {
		return math.NaN()
	}
	for i < maxI && !img.IsDark(centerJ, i) && stateCount[3] < maxCount {
		stateCount[3]++
		i++
	}
	if i == maxI || stateCount[3] >= maxCount {
		return math.NaN()
	}
	for i < maxI && img.IsDark(centerJ, i) && stateCount[4] < maxCount {
		stateCount[4]++
		i++
	}
	if stateCount[4] >= maxCount {
		return math.NaN()
	}

	// More than 40% off the horizontal run is a false positive.
	stateCountTotal := stateCount[0] + stateCount[1] + stateCount[2] + stateCount[3] + stateCount[4]
	if 5*abs(stateCountTotal-originalStateCountTotal) >= 2*originalStateCountTotal {
		return math.NaN()
	}
	if !f.foundPatternCross(*stateCount) {
		return math.NaN()
	}
	return centerFromEnd(*stateCount, i)
}

// crossCheckHorizontal re-measures along row centerI around startJ.
func (f *finderPatternFinder) crossCheckHorizontal(startJ, centerI, maxCount, originalStateCountTotal int) float64 {
	img := f.image
	maxJ := img.Width()
	stateCount := f.crossCheckStateCount()

	j := startJ
	for j >= 0 && img.IsDark(j, centerI) {
		stateCount[2]++
		j--
	}
	if j < 0 {
		return math.NaN()
	}
	for j >= 0 && !img.IsDark(j, centerI) && stateCount[1] <= maxCount {
		stateCount[1]++
		j--
	}
	if j < 0 || stateCount[1] > maxCount {
		return math.NaN()
	}
	for j >= 0 && img.IsDark(j, centerI) && stateCount[0] <= maxCount {
		stateCount[0]++
		j--
	}
	if stateCount[0] > maxCount {
		return math.NaN()
	}

	j = startJ + 1
	for j < maxJ && img.IsDark(j, centerI) {
		stateCount[2]++
		j++
	}
	if j == maxJ {
		return math.NaN()
	}
	for j < maxJ && !img.IsDark(j, centerI) && stateCount[3] < maxCount {
		stateCount[3]++
		j++
	}
	if j == maxJ || stateCount[3] >= maxCount {
		return math.NaN()
	}
	for j < maxJ && img.IsDark(j, centerI) && stateCount[4] < maxCount {
		stateCount[4]++
		j++
	}
	if stateCount[4] >= maxCount {
		return math.NaN()
	}

	// Tighter than the vertical check: the row was already measured once.
	stateCountTotal := stateCount[0] + stateCount[1] + stateCount[2] + stateCount[3] + stateCount[4]
	if 5*abs(stateCountTotal-originalStateCountTotal) >= originalStateCountTotal {
		return math.NaN()
	}
	if !f.foundPatternCross(*stateCount) {
		return math.NaN()
	}
	return centerFromEnd(*stateCount, j)
}

// handlePossibleCenter confirms a horizontal hit ending at column j of row
// i vertically, horizontally and diagonally, then records it.
func (f *finderPatternFinder) handlePossibleCenter(stateCount [5]int, i, j int) bool {
	stateCountTotal := stateCount[0] + stateCount[1] + stateCount[2] + stateCount[3] + stateCount[4]
	centerJ := centerFromEnd(stateCount, j)
	centerI := f.crossCheckVertical(i, int(centerJ), stateCount[2], stateCountTotal)
	if math.IsNaN(centerI) {
		return false
	}
	centerJ = f.crossCheckHorizontal(int(centerJ), int(centerI), stateCount[2], stateCountTotal)
	if math.IsNaN(centerJ) || !f.crossCheckDiagonal(int(centerI), int(centerJ)) {
		return false
	}

	estimatedModuleSize := float64(stateCountTotal) / 7.0
	for _, center := range f.possibleCenters {
		if center.aboutEquals(estimatedModuleSize, centerI, centerJ) {
			center.combineEstimate(centerI, centerJ, estimatedModuleSize)
			return true
		}
	}
	f.possibleCenters = append(f.possibleCenters, &FinderPattern{
		ResultPoint:         ResultPoint{X: centerJ, Y: centerI},
		EstimatedModuleSize: estimatedModuleSize,
		Count:               1,
	})
	return true
}

// findRowSkip estimates how many rows can be skipped once two patterns are
// confirmed: at worst the third lies the difference of their x and y
// offsets further down.
func (f *finderPatternFinder) findRowSkip() int {
	if len(f.possibleCenters) <= 1 {
		return 0
	}
	var firstConfirmedCenter *FinderPattern
	for _, center := range f.possibleCenters {
		if center.Count < centerQuorum {
			continue
		}
		if firstConfirmedCenter == nil {
			firstConfirmedCenter = center
			continue
		}
		f.hasSkipped = true
		return int(math.Abs(firstConfirmedCenter.X-center.X)-math.Abs(firstConfirmedCenter.Y-center.Y)) / 2
	}
	return 0
}

// haveMultiplyConfirmedCenters reports whether at least three candidates
// reached quorum and their module sizes deviate by no more than 5% in
// total.
func (f *finderPatternFinder) haveMultiplyConfirmedCenters() bool {
	confirmedCount := 0
	totalModuleSize := 0.0
	for _, pattern := range f.possibleCenters {
		if pattern.Count >= centerQuorum {
			confirmedCount++
			totalModuleSize += pattern.EstimatedModuleSize
		}
	}
	if confirmedCount < 3 {
		return false
	}
	average := totalModuleSize / float64(len(f.possibleCenters))
	totalDeviation := 0.0
	for _, pattern := range f.possibleCenters {
		totalDeviation += math.Abs(pattern.EstimatedModuleSize - average)
	}
	return totalDeviation <= 0.05*totalModuleSize
}

// selectBestPatterns picks the triple closest to a right isosceles triangle
// among candidates whose module sizes agree within 40%. Candidates seen at
// least twice are preferred when there are three or more of them.
func (f *finderPatternFinder) selectBestPatterns() ([3]*FinderPattern, error) {
	var best [3]*FinderPattern
	if len(f.possibleCenters) < 3 {
		return best, qrerr.NotFound("finder", "%d finder pattern candidates, need 3", len(f.possibleCenters))
	}

	candidates := f.possibleCenters
	confirmed := make([]*FinderPattern, 0, len(candidates))
	for _, c := range candidates {
		if c.Count >= centerQuorum {
			confirmed = append(confirmed, c)
		}
	}
	if len(confirmed) >= 3 {
		candidates = confirmed
	} else {
		candidates = slices.Clone(candidates)
	}
	slices.SortStableFunc(candidates, func(a, b *FinderPattern) int {
		return cmp.Compare(a.EstimatedModuleSize, b.EstimatedModuleSize)
	})

	distortion := math.MaxFloat64
	for i := 0; i < len(candidates)-2; i++ {
		fpi := candidates[i]
		minModuleSize := fpi.EstimatedModuleSize
		for j := i + 1; j < len(candidates)-1; j++ {
			fpj := candidates[j]
			squares0 := squaredDistance(fpi.ResultPoint, fpj.ResultPoint)
			for k := j + 1; k < len(candidates); k++ {
				fpk := candidates[k]
				if fpk.EstimatedModuleSize > minModuleSize*1.4 {
					continue
				}
				sides := []float64{
					squares0,
					squaredDistance(fpj.ResultPoint, fpk.ResultPoint),
					squaredDistance(fpi.ResultPoint, fpk.ResultPoint),
				}
				slices.Sort(sides)
				a, b, c := sides[0], sides[1], sides[2]
				// Zero for a right isosceles triangle: c = 2a = 2b.
				d := math.Abs(c-2*b) + math.Abs(c-2*a)
				if d < distortion {
					distortion = d
					best = [3]*FinderPattern{fpi, fpj, fpk}
				}
			}
		}
	}
	if distortion == math.MaxFloat64 {
		return best, qrerr.NotFound("finder", "no finder pattern triple with consistent module sizes")
	}
	return best, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
