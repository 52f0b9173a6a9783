package rectify

import (
	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// SampleGrid reads a dimX x dimY module grid from image, mapping each module
// center through transform. Any center that falls outside the image aborts
// the sampling with a not-found error.
func SampleGrid(image bitgrid.Bitmap, dimX, dimY int, transform *PerspectiveTransform) (*bitgrid.BitGrid, error) {
	if dimX <= 0 || dimY <= 0 {
		return nil, qrerr.NotFound("sample grid", "invalid grid size %dx%d", dimX, dimY)
	}
	width, height := image.Width(), image.Height()
	bits := bitgrid.New(dimX, dimY)
	points := make([]float64, 2*dimX)
	for y := range dimY {
		iValue := float64(y) + 0.5
		for x := 0; x < len(points); x += 2 {
			points[x] = float64(x/2) + 0.5
			points[x+1] = iValue
		}
		transform.TransformPoints(points)
		for x := 0; x < len(points); x += 2 {
			px, py := points[x], points[x+1]
			// Written so NaN and infinities fail as well.
			if !(px >= 0 && py >= 0 && px < float64(width) && py < float64(height)) {
				return nil, qrerr.NotFound("sample grid", "module (%d,%d) maps outside image to (%.1f,%.1f)", x/2, y, px, py)
			}
			if image.IsDark(int(px), int(py)) {
				bits.Set(x/2, y)
			}
		}
	}
	return bits, nil
}
