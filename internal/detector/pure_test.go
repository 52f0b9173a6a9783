package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func TestExtractPureBits_MatchesSymbol(t *testing.T) {
	for _, f := range testutil.StandardSymbols() {
		for _, scale := range []int{1, 2, 5} {
			cfg := f.Config
			cfg.Scale = scale
			img, err := testutil.RenderBitmap(cfg)
			require.NoError(t, err)
			want, err := testutil.SymbolGrid(cfg)
			require.NoError(t, err)

			got, err := ExtractPureBits(img)
			require.NoError(t, err, "%s at scale %d", f.Name, scale)
			assert.True(t, want.Equal(got), "%s at scale %d", f.Name, scale)
		}
	}
}

func TestExtractPureBits_NoQuietZone(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.QuietZone = 0
	cfg.Scale = 3
	img, err := testutil.RenderBitmap(cfg)
	require.NoError(t, err)

	got, err := ExtractPureBits(img)
	require.NoError(t, err)
	dim, err := got.Dimension()
	require.NoError(t, err)
	assert.Equal(t, 21, dim)
}

func TestExtractPureBits_Failures(t *testing.T) {
	_, err := ExtractPureBits(bitgrid.New(50, 50))
	assert.ErrorIs(t, err, qrerr.ErrNotFound)

	// One dark pixel has no extent.
	img := bitgrid.New(50, 50)
	img.Set(10, 10)
	_, err = ExtractPureBits(img)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)

	// A solid block never completes the finder diagonal.
	img = bitgrid.New(50, 50)
	require.NoError(t, img.SetRegion(5, 5, 45, 45))
	_, err = ExtractPureBits(img)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
}
