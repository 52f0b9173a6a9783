// Package bitgrid provides the packed boolean grid shared by every stage of the
// QR core, and the Bitmap capability the core reads binarized images through.
package bitgrid

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

// Bitmap is a binarized image: a dark/light predicate per pixel.
type Bitmap interface {
	Width() int
	Height() int
	IsDark(x, y int) bool
}

// BitGrid is a 2D grid of bits packed 32 to a word, row major.
// x is the column and y the row. Set bits are dark.
type BitGrid struct {
	width   int
	height  int
	rowSize int
	bits    []uint32
}

// New creates an all-light grid. It panics on non-positive dimensions.
func New(width, height int) *BitGrid {
	if width < 1 || height < 1 {
		panic(fmt.Sprintf("bitgrid: invalid dimensions %dx%d", width, height))
	}
	rowSize := (width + 31) / 32
	return &BitGrid{
		width:   width,
		height:  height,
		rowSize: rowSize,
		bits:    make([]uint32, rowSize*height),
	}
}

// NewSquare creates a dim x dim grid.
func NewSquare(dim int) *BitGrid { return New(dim, dim) }

// FromBitmap copies any Bitmap into a new grid.
func FromBitmap(b Bitmap) *BitGrid {
	g := New(b.Width(), b.Height())
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if b.IsDark(x, y) {
				g.Set(x, y)
			}
		}
	}
	return g
}

// Width returns the number of columns.
func (g *BitGrid) Width() int { return g.width }

// Height returns the number of rows.
func (g *BitGrid) Height() int { return g.height }

// Dimension returns the side length of a square grid.
func (g *BitGrid) Dimension() (int, error) {
	if g.width != g.height {
		return 0, qrerr.NotFound("bitgrid", "grid is not square: %dx%d", g.width, g.height)
	}
	return g.width, nil
}

// Get reports whether (x, y) is set.
func (g *BitGrid) Get(x, y int) bool {
	offset := y*g.rowSize + x/32
	return (g.bits[offset]>>(uint(x)&31))&1 != 0
}

// IsDark implements Bitmap.
func (g *BitGrid) IsDark(x, y int) bool { return g.Get(x, y) }

// Set marks (x, y) dark.
func (g *BitGrid) Set(x, y int) {
	offset := y*g.rowSize + x/32
	g.bits[offset] |= 1 << (uint(x) & 31)
}

// Unset marks (x, y) light.
func (g *BitGrid) Unset(x, y int) {
	offset := y*g.rowSize + x/32
	g.bits[offset] &^= 1 << (uint(x) & 31)
}

// Flip inverts (x, y).
func (g *BitGrid) Flip(x, y int) {
	offset := y*g.rowSize + x/32
	g.bits[offset] ^= 1 << (uint(x) & 31)
}

// SetRegion marks a rectangle dark.
func (g *BitGrid) SetRegion(left, top, width, height int) error {
	if top < 0 || left < 0 {
		return fmt.Errorf("bitgrid: region origin (%d,%d) must be non-negative", left, top)
	}
	if height < 1 || width < 1 {
		return fmt.Errorf("bitgrid: region size %dx%d must be positive", width, height)
	}
	right := left + width
	bottom := top + height
	if bottom > g.height || right > g.width {
		return fmt.Errorf("bitgrid: region %dx%d at (%d,%d) exceeds %dx%d grid", width, height, left, top, g.width, g.height)
	}
	for y := top; y < bottom; y++ {
		offset := y * g.rowSize
		for x := left; x < right; x++ {
			g.bits[offset+x/32] |= 1 << (uint(x) & 31)
		}
	}
	return nil
}

// Clear resets every bit.
func (g *BitGrid) Clear() {
	clear(g.bits)
}

// Clone returns an independent copy.
func (g *BitGrid) Clone() *BitGrid {
	c := *g
	c.bits = append([]uint32(nil), g.bits...)
	return &c
}

// Equal reports whether two grids have the same shape and bits.
func (g *BitGrid) Equal(o *BitGrid) bool {
	if o == nil || g.width != o.width || g.height != o.height {
		return false
	}
	for i, w := range g.bits {
		if o.bits[i] != w {
			return false
		}
	}
	return true
}

// String renders the grid with "X " for dark and "  " for light cells.
func (g *BitGrid) String() string {
	var sb strings.Builder
	sb.Grow(g.height * (g.width*2 + 1))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if g.Get(x, y) {
				sb.WriteString("X ")
			} else {
				sb.WriteString("  ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
