// Package rectify maps between symbol space and image space with planar
// projective transforms and samples module grids through them.
package rectify

// PerspectiveTransform is a 3x3 homogeneous matrix applied to row vectors:
//
//	[x' y' w'] = [x y 1] * | a11 a12 a13 |
//	                       | a21 a22 a23 |
//	                       | a31 a32 a33 |
type PerspectiveTransform struct {
	a11, a12, a13 float64
	a21, a22, a23 float64
	a31, a32, a33 float64
}

func newTransform(a11, a21, a31, a12, a22, a32, a13, a23, a33 float64) *PerspectiveTransform {
	return &PerspectiveTransform{
		a11: a11, a12: a12, a13: a13,
		a21: a21, a22: a22, a23: a23,
		a31: a31, a32: a32, a33: a33,
	}
}

// QuadrilateralToQuadrilateral returns the transform taking the quadrilateral
// (x0,y0)..(x3,y3) onto (x0p,y0p)..(x3p,y3p), corner for corner.
func QuadrilateralToQuadrilateral(
	x0, y0, x1, y1, x2, y2, x3, y3 float64,
	x0p, y0p, x1p, y1p, x2p, y2p, x3p, y3p float64,
) *PerspectiveTransform {
	qToS := QuadrilateralToSquare(x0, y0, x1, y1, x2, y2, x3, y3)
	sToQ := SquareToQuadrilateral(x0p, y0p, x1p, y1p, x2p, y2p, x3p, y3p)
	return sToQ.Times(qToS)
}

// SquareToQuadrilateral maps the unit square corners (0,0), (1,0), (1,1),
// (0,1) onto the given corners in that order.
func SquareToQuadrilateral(x0, y0, x1, y1, x2, y2, x3, y3 float64) *PerspectiveTransform {
	dx3 := x0 - x1 + x2 - x3
	dy3 := y0 - y1 + y2 - y3
	if dx3 == 0 && dy3 == 0 {
		// Affine
		return newTransform(x1-x0, x2-x1, x0,
			y1-y0, y2-y1, y0,
			0, 0, 1)
	}
	dx1 := x1 - x2
	dx2 := x3 - x2
	dy1 := y1 - y2
	dy2 := y3 - y2
	denominator := dx1*dy2 - dx2*dy1
	a13 := (dx3*dy2 - dx2*dy3) / denominator
	a23 := (dx1*dy3 - dx3*dy1) / denominator
	return newTransform(x1-x0+a13*x1, x3-x0+a23*x3, x0,
		y1-y0+a13*y1, y3-y0+a23*y3, y0,
		a13, a23, 1)
}

// QuadrilateralToSquare is the inverse mapping of SquareToQuadrilateral, up
// to scale.
func QuadrilateralToSquare(x0, y0, x1, y1, x2, y2, x3, y3 float64) *PerspectiveTransform {
	return SquareToQuadrilateral(x0, y0, x1, y1, x2, y2, x3, y3).BuildAdjoint()
}

// BuildAdjoint returns the adjugate matrix, which inverts the transform up to
// a scale factor that the homogeneous divide cancels.
func (t *PerspectiveTransform) BuildAdjoint() *PerspectiveTransform {
	return newTransform(
		t.a22*t.a33-t.a23*t.a32,
		t.a23*t.a31-t.a21*t.a33,
		t.a21*t.a32-t.a22*t.a31,
		t.a13*t.a32-t.a12*t.a33,
		t.a11*t.a33-t.a13*t.a31,
		t.a12*t.a31-t.a11*t.a32,
		t.a12*t.a23-t.a13*t.a22,
		t.a13*t.a21-t.a11*t.a23,
		t.a11*t.a22-t.a12*t.a21,
	)
}

// Times composes two transforms: the result applies other first, then t.
func (t *PerspectiveTransform) Times(other *PerspectiveTransform) *PerspectiveTransform {
	return newTransform(
		t.a11*other.a11+t.a21*other.a12+t.a31*other.a13,
		t.a11*other.a21+t.a21*other.a22+t.a31*other.a23,
		t.a11*other.a31+t.a21*other.a32+t.a31*other.a33,
		t.a12*other.a11+t.a22*other.a12+t.a32*other.a13,
		t.a12*other.a21+t.a22*other.a22+t.a32*other.a23,
		t.a12*other.a31+t.a22*other.a32+t.a32*other.a33,
		t.a13*other.a11+t.a23*other.a12+t.a33*other.a13,
		t.a13*other.a21+t.a23*other.a22+t.a33*other.a23,
		t.a13*other.a31+t.a23*other.a32+t.a33*other.a33,
	)
}

// TransformPoints maps interleaved x,y pairs in place.
func (t *PerspectiveTransform) TransformPoints(points []float64) {
	for i := 0; i+1 < len(points); i += 2 {
		x := points[i]
		y := points[i+1]
		denominator := t.a13*x + t.a23*y + t.a33
		points[i] = (t.a11*x + t.a21*y + t.a31) / denominator
		points[i+1] = (t.a12*x + t.a22*y + t.a32) / denominator
	}
}

// Transform maps a single point.
func (t *PerspectiveTransform) Transform(x, y float64) (float64, float64) {
	p := [2]float64{x, y}
	t.TransformPoints(p[:])
	return p[0], p[1]
}

// Matrix returns the coefficients row by row.
func (t *PerspectiveTransform) Matrix() [9]float64 {
	return [9]float64{
		t.a11, t.a12, t.a13,
		t.a21, t.a22, t.a23,
		t.a31, t.a32, t.a33,
	}
}
