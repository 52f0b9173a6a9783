package symbol

import (
	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// DataMask reports whether the module at (row i, column j) is flipped.
type DataMask func(i, j int) bool

// DataMasks are the eight mask patterns indexed by mask id.
var DataMasks = [8]DataMask{
	func(i, j int) bool { return (i+j)&0x01 == 0 },
	func(i, _ int) bool { return i&0x01 == 0 },
	func(_, j int) bool { return j%3 == 0 },
	func(i, j int) bool { return (i+j)%3 == 0 },
	func(i, j int) bool { return ((i/2)+(j/3))&0x01 == 0 },
	func(i, j int) bool { return (i*j)%6 == 0 },
	func(i, j int) bool { return (i*j)%6 < 3 },
	func(i, j int) bool { return ((i+j+((i*j)%3))&0x01) == 0 },
}

// DataMaskForID returns the mask with the given id.
func DataMaskForID(id int) (DataMask, error) {
	if id < 0 || id >= len(DataMasks) {
		return nil, qrerr.Format("data mask", "invalid mask id %d", id)
	}
	return DataMasks[id], nil
}

// Unmask XORs the mask over the top-left dimension x dimension area of bits.
// Modules set in functionPattern are left alone; a nil functionPattern masks
// every module.
func (m DataMask) Unmask(bits *bitgrid.BitGrid, dimension int, functionPattern *bitgrid.BitGrid) {
	for i := range dimension {
		for j := range dimension {
			if functionPattern != nil && functionPattern.Get(j, i) {
				continue
			}
			if m(i, j) {
				bits.Flip(j, i)
			}
		}
	}
}
