package rectify

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
)

const epsilon = 1e-6

type quad [8]float64

func mapQuad(src, dst quad) *PerspectiveTransform {
	return QuadrilateralToQuadrilateral(
		src[0], src[1], src[2], src[3], src[4], src[5], src[6], src[7],
		dst[0], dst[1], dst[2], dst[3], dst[4], dst[5], dst[6], dst[7])
}

func TestSquareToQuadrilateralCorners(t *testing.T) {
	tests := []struct {
		name string
		dst  quad
	}{
		{"affine", quad{10, 10, 110, 10, 110, 110, 10, 110}},
		{"skewed", quad{0, 0, 100, 20, 120, 140, -10, 90}},
		{"keystone", quad{20, 0, 80, 0, 100, 100, 0, 100}},
	}
	unit := [8]float64{0, 0, 1, 0, 1, 1, 0, 1}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.dst
			tr := SquareToQuadrilateral(d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7])
			pts := unit
			tr.TransformPoints(pts[:])
			for i := range pts {
				assert.InDelta(t, d[i], pts[i], epsilon, "coordinate %d", i)
			}
		})
	}
}

func TestQuadrilateralToQuadrilateralCorners(t *testing.T) {
	src := quad{3.5, 3.5, 17.5, 3.5, 14.5, 14.5, 3.5, 17.5}
	dst := quad{40, 52, 180, 38, 160, 170, 30, 200}
	tr := mapQuad(src, dst)
	for i := 0; i < 8; i += 2 {
		x, y := tr.Transform(src[i], src[i+1])
		assert.InDelta(t, dst[i], x, epsilon)
		assert.InDelta(t, dst[i+1], y, epsilon)
	}
}

func TestAdjointInvertsTransform(t *testing.T) {
	tr := SquareToQuadrilateral(0, 0, 100, 20, 120, 140, -10, 90)
	inv := tr.BuildAdjoint()
	x, y := tr.Transform(0.25, 0.75)
	bx, by := inv.Transform(x, y)
	assert.InDelta(t, 0.25, bx, epsilon)
	assert.InDelta(t, 0.75, by, epsilon)
}

func TestMatrixOfIdentity(t *testing.T) {
	tr := SquareToQuadrilateral(0, 0, 1, 0, 1, 1, 0, 1)
	assert.Equal(t, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, tr.Matrix())
}

// solveHomography is an independent 8x8 Gauss-Jordan solve of the same
// mapping, used to cross-check the closed form.
func solveHomography(src, dst quad) ([9]float64, bool) {
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := src[2*i], src[2*i+1]
		x, y := dst[2*i], dst[2*i+1]
		r := 2 * i
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if a[pivot][col] == 0 {
			return [9]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]
		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div
		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			factor := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}
	return [9]float64{b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7], 1}, true
}

func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	return (h[0]*x + h[1]*y + h[2]) / denom, (h[3]*x + h[4]*y + h[5]) / denom
}

func TestClosedFormMatchesLinearSolve(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("closed form agrees with Gauss-Jordan on interior points", prop.ForAll(
		func(jitter []float64, u, v float64) bool {
			src := quad{0, 0, 100, 0, 100, 100, 0, 100}
			dst := quad{50, 50, 250, 50, 250, 250, 50, 250}
			for i := range dst {
				dst[i] += jitter[i]
			}
			h, ok := solveHomography(src, dst)
			if !ok {
				return true
			}
			tr := mapQuad(src, dst)
			x, y := tr.Transform(u, v)
			hx, hy := applyHomography(h, u, v)
			return math.Abs(x-hx) < 1e-4 && math.Abs(y-hy) < 1e-4
		},
		gen.SliceOfN(8, gen.Float64Range(-30, 30)),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestSampleGridIdentityScale(t *testing.T) {
	// 3x3 checkerboard drawn at 4 pixels per module.
	img := bitgrid.New(12, 12)
	for y := range 12 {
		for x := range 12 {
			if (x/4+y/4)%2 == 0 {
				img.Set(x, y)
			}
		}
	}
	tr := QuadrilateralToQuadrilateral(0, 0, 3, 0, 3, 3, 0, 3, 0, 0, 12, 0, 12, 12, 0, 12)
	bits, err := SampleGrid(img, 3, 3, tr)
	require.NoError(t, err)
	for y := range 3 {
		for x := range 3 {
			assert.Equal(t, (x+y)%2 == 0, bits.Get(x, y), "(%d,%d)", x, y)
		}
	}
}

func TestSampleGridOutOfBounds(t *testing.T) {
	img := bitgrid.New(10, 10)
	tr := QuadrilateralToQuadrilateral(0, 0, 3, 0, 3, 3, 0, 3, 0, 0, 30, 0, 30, 30, 0, 30)
	_, err := SampleGrid(img, 3, 3, tr)
	require.Error(t, err)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)

	_, err = SampleGrid(img, 0, 3, tr)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}
