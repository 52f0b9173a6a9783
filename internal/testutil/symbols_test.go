package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolGridHasFinderPatterns(t *testing.T) {
	grid, err := SymbolGrid(DefaultSymbolConfig())
	require.NoError(t, err)
	dim, err := grid.Dimension()
	require.NoError(t, err)
	assert.Equal(t, 21, dim)

	// Outer ring and 3x3 core of each finder pattern are dark.
	for _, origin := range [][2]int{{0, 0}, {dim - 7, 0}, {0, dim - 7}} {
		ox, oy := origin[0], origin[1]
		assert.True(t, grid.Get(ox, oy))
		assert.True(t, grid.Get(ox+6, oy+6))
		assert.False(t, grid.Get(ox+1, oy+1))
		assert.True(t, grid.Get(ox+3, oy+3))
	}
	// Dark module.
	assert.True(t, grid.Get(8, dim-8))
}

func TestSymbolAutoVersion(t *testing.T) {
	cfg := DefaultSymbolConfig()
	cfg.Version = 0
	cfg.Text = "a payload long enough to need more than one version step"
	grid, err := SymbolGrid(cfg)
	require.NoError(t, err)
	assert.Greater(t, grid.Width(), 21)
}

func TestSymbolRejectsInvalidPayload(t *testing.T) {
	cfg := DefaultSymbolConfig()
	cfg.Encoding = EncodeNumeric
	cfg.Text = "12a"
	_, err := EncodeSymbol(cfg)
	assert.Error(t, err)
}

func TestRenderSymbolGeometry(t *testing.T) {
	cfg := DefaultSymbolConfig()
	cfg.Scale = 3
	cfg.QuietZone = 2
	img, err := RenderSymbol(cfg)
	require.NoError(t, err)
	assert.Equal(t, (21+4)*3, img.Bounds().Dx())

	bm := NewThresholdBitmap(img, 128)
	assert.False(t, bm.IsDark(0, 0))
	// First module of the top-left finder starts after the quiet zone.
	assert.True(t, bm.IsDark(6, 6))
	assert.True(t, bm.IsDark(8, 8))
	assert.False(t, bm.IsDark(5, 5))
}

func TestRenderRotatedSymbolGrows(t *testing.T) {
	cfg := DefaultSymbolConfig()
	cfg.Rotation = 30
	img, err := RenderSymbol(cfg)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), (21+8)*4)
}

func TestWriteSymbolFixtures(t *testing.T) {
	dir := t.TempDir()
	paths := WriteSymbolFixtures(t, dir)
	require.Len(t, paths, len(StandardSymbols()))
	for _, p := range paths {
		assert.True(t, FileExists(p))
		assert.Equal(t, dir, filepath.Dir(p))
	}
	img := LoadImage(t, paths[0])
	assert.Equal(t, (21+8)*4, img.Bounds().Dx())
}
