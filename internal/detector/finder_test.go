package detector

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// modulePixel is the pixel coordinate of a module-space position in a
// rendered symbol.
func modulePixel(cfg testutil.SymbolConfig, m float64) float64 {
	return (float64(cfg.QuietZone) + m) * float64(cfg.Scale)
}

func TestFindFinderPatterns_VersionOne(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	img, err := testutil.RenderBitmap(cfg)
	require.NoError(t, err)

	info, err := FindFinderPatterns(img, FinderOptions{})
	require.NoError(t, err)

	near, far := modulePixel(cfg, 3.5), modulePixel(cfg, 17.5)
	assert.InDelta(t, near, info.TopLeft.X, 1.0)
	assert.InDelta(t, near, info.TopLeft.Y, 1.0)
	assert.InDelta(t, far, info.TopRight.X, 1.0)
	assert.InDelta(t, near, info.TopRight.Y, 1.0)
	assert.InDelta(t, near, info.BottomLeft.X, 1.0)
	assert.InDelta(t, far, info.BottomLeft.Y, 1.0)
	for _, p := range []FinderPattern{info.TopLeft, info.TopRight, info.BottomLeft} {
		assert.InDelta(t, float64(cfg.Scale), p.EstimatedModuleSize, 0.5)
		assert.GreaterOrEqual(t, p.Count, 1)
	}
}

func TestFindFinderPatterns_TryHarder(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Version = 3
	cfg.Scale = 3
	img, err := testutil.RenderBitmap(cfg)
	require.NoError(t, err)

	info, err := FindFinderPatterns(img, FinderOptions{TryHarder: true})
	require.NoError(t, err)
	assert.InDelta(t, modulePixel(cfg, 3.5), info.TopLeft.X, 1.0)
	assert.InDelta(t, modulePixel(cfg, 25.5), info.TopRight.X, 1.0)
}

func TestFindFinderPatterns_NotFound(t *testing.T) {
	_, err := FindFinderPatterns(bitgrid.New(120, 80), FinderOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)

	// A single finder-shaped square is not a symbol.
	img := bitgrid.New(60, 60)
	require.NoError(t, img.SetRegion(10, 10, 21, 21))
	for y := 13; y < 28; y++ {
		for x := 13; x < 28; x++ {
			img.Unset(x, y)
		}
	}
	require.NoError(t, img.SetRegion(16, 16, 9, 9))
	_, err = FindFinderPatterns(img, FinderOptions{})
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}

func TestCheckRatios(t *testing.T) {
	tests := []struct {
		name       string
		stateCount [5]int
		want       bool
	}{
		{"exact", [5]int{4, 4, 12, 4, 4}, true},
		{"slightly off", [5]int{3, 5, 11, 4, 5}, true},
		{"zero run", [5]int{0, 4, 12, 4, 4}, false},
		{"too small", [5]int{1, 1, 1, 1, 1}, false},
		{"center too thin", [5]int{4, 4, 4, 4, 4}, false},
		{"ring too wide", [5]int{4, 9, 12, 4, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkRatios(tt.stateCount, defaultVariance))
		})
	}
}

func TestFinderPattern_CombineEstimate(t *testing.T) {
	p := &FinderPattern{ResultPoint: ResultPoint{X: 10, Y: 20}, EstimatedModuleSize: 4, Count: 1}
	assert.True(t, p.aboutEquals(4.5, 22, 12))
	assert.False(t, p.aboutEquals(4, 30, 10))
	assert.False(t, p.aboutEquals(12, 20, 10))

	p.combineEstimate(22, 12, 6)
	assert.Equal(t, 2, p.Count)
	assert.InDelta(t, 11.0, p.X, 1e-9)
	assert.InDelta(t, 21.0, p.Y, 1e-9)
	assert.InDelta(t, 5.0, p.EstimatedModuleSize, 1e-9)
}

func TestSelectBestPatterns_PrefersConfirmed(t *testing.T) {
	fp := func(x, y float64, count int) *FinderPattern {
		return &FinderPattern{ResultPoint: ResultPoint{X: x, Y: y}, EstimatedModuleSize: 4, Count: count}
	}
	f := &finderPatternFinder{possibleCenters: []*FinderPattern{
		fp(30, 30, 3), fp(86, 30, 2), fp(30, 86, 4),
		// Seen once, but completes an equally good triangle.
		fp(86, 86, 1),
	}}
	best, err := f.selectBestPatterns()
	require.NoError(t, err)
	for _, p := range best {
		assert.GreaterOrEqual(t, p.Count, centerQuorum)
	}

	f = &finderPatternFinder{possibleCenters: []*FinderPattern{fp(30, 30, 1), fp(86, 30, 1)}}
	_, err = f.selectBestPatterns()
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}

func TestSelectBestPatterns_RejectsInconsistentSizes(t *testing.T) {
	f := &finderPatternFinder{possibleCenters: []*FinderPattern{
		{ResultPoint: ResultPoint{X: 30, Y: 30}, EstimatedModuleSize: 2, Count: 2},
		{ResultPoint: ResultPoint{X: 86, Y: 30}, EstimatedModuleSize: 4, Count: 2},
		{ResultPoint: ResultPoint{X: 30, Y: 86}, EstimatedModuleSize: 8, Count: 2},
	}}
	_, err := f.selectBestPatterns()
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}

var permutations = [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

func TestOrderBestPatterns_AnyRotationAndOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("labels survive rotation and input order", prop.ForAll(
		func(angle, side float64, perm int) bool {
			sin, cos := math.Sincos(angle)
			tl := &FinderPattern{ResultPoint: ResultPoint{X: 500, Y: 500}}
			tr := &FinderPattern{ResultPoint: ResultPoint{X: 500 + side*cos, Y: 500 + side*sin}}
			bl := &FinderPattern{ResultPoint: ResultPoint{X: 500 - side*sin, Y: 500 + side*cos}}
			in := [3]*FinderPattern{tl, tr, bl}
			p := permutations[perm]

			gotBL, gotTL, gotTR := orderBestPatterns(in[p[0]], in[p[1]], in[p[2]])
			return gotBL == bl && gotTL == tl && gotTR == tr
		},
		gen.Float64Range(0, 2*math.Pi),
		gen.Float64Range(20, 400),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func TestFindAlignmentPattern(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Version = 2
	img, err := testutil.RenderBitmap(cfg)
	require.NoError(t, err)

	// Version 2 has its alignment pattern centered on module (18, 18).
	center := modulePixel(cfg, 18.5)
	radius := 4 * cfg.Scale
	start := int(center) - radius
	ap, err := FindAlignmentPattern(img, start, start, 2*radius, 2*radius, float64(cfg.Scale))
	require.NoError(t, err)
	assert.InDelta(t, center, ap.X, 1.5)
	assert.InDelta(t, center, ap.Y, 1.5)
	assert.InDelta(t, float64(cfg.Scale), ap.EstimatedModuleSize, 1.0)

	_, err = FindAlignmentPattern(bitgrid.New(40, 40), 0, 0, 39, 39, 4)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}
