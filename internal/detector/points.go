package detector

import "math"

// ResultPoint is a location in bitmap pixel coordinates.
type ResultPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b ResultPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func squaredDistance(a, b ResultPoint) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// crossProductZ is the z component of the cross product BC x BA.
func crossProductZ(a, b, c ResultPoint) float64 {
	return (c.X-b.X)*(a.Y-b.Y) - (c.Y-b.Y)*(a.X-b.X)
}

// orderBestPatterns returns the three points as bottom-left, top-left and
// top-right. The point opposite the longest side is the top-left; the sign
// of the cross product decides which of the other two is the bottom-left.
func orderBestPatterns(p0, p1, p2 *FinderPattern) (bottomLeft, topLeft, topRight *FinderPattern) {
	zeroOneDistance := Distance(p0.ResultPoint, p1.ResultPoint)
	oneTwoDistance := Distance(p1.ResultPoint, p2.ResultPoint)
	zeroTwoDistance := Distance(p0.ResultPoint, p2.ResultPoint)

	var pointA, pointB, pointC *FinderPattern
	switch {
	case oneTwoDistance >= zeroOneDistance && oneTwoDistance >= zeroTwoDistance:
		pointB, pointA, pointC = p0, p1, p2
	case zeroTwoDistance >= oneTwoDistance && zeroTwoDistance >= zeroOneDistance:
		pointB, pointA, pointC = p1, p0, p2
	default:
		pointB, pointA, pointC = p2, p0, p1
	}

	if crossProductZ(pointA.ResultPoint, pointB.ResultPoint, pointC.ResultPoint) < 0 {
		pointA, pointC = pointC, pointA
	}
	return pointA, pointB, pointC
}
