package barcode

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func render(t *testing.T, cfg testutil.SymbolConfig) image.Image {
	t.Helper()
	img, err := testutil.RenderSymbol(cfg)
	require.NoError(t, err)
	return img
}

func decodeOne(t *testing.T, img image.Image, opts Options) Result {
	t.Helper()
	backend, err := NewBackend()
	require.NoError(t, err)
	results, err := backend.Decode(context.Background(), img, opts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

func TestDecodeStandardSymbols(t *testing.T) {
	for _, f := range testutil.StandardSymbols() {
		t.Run(f.Name, func(t *testing.T) {
			res := decodeOne(t, render(t, f.Config), DefaultOptions())
			assert.Equal(t, FormatQR, res.Type)
			assert.Equal(t, f.Want, res.Value)
			assert.Equal(t, f.Config.Version, res.Version)
			assert.Equal(t, f.Config.Level.String(), res.ECLevel)
			assert.Equal(t, f.Config.Mask, res.Mask)
			assert.False(t, res.Pure)
			assert.Len(t, res.Corners, 4)
		})
	}
}

func TestDecodeReportsSourceGeometry(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	img := render(t, cfg)

	for _, pure := range []bool{false, true} {
		opts := DefaultOptions()
		opts.PureFirst = pure
		res := decodeOne(t, img, opts)
		assert.Equal(t, pure, res.Pure)
		assert.Equal(t, "A", res.Value)
		assert.Equal(t, []byte("A"), res.Raw)
		assert.Equal(t, "UTF-8", res.Charset)

		require.Len(t, res.Points, 3)
		// Finder centers sit 3.5 modules inside a 4-module quiet zone at 4px per module.
		assert.InDelta(t, 30, res.Points[1].X, 1)
		assert.InDelta(t, 30, res.Points[1].Y, 1)
		assert.InDelta(t, 86, res.Points[2].X, 1)
		assert.InDelta(t, 86, res.Points[0].Y, 1)

		assert.InDelta(t, 16, res.Corners[0].X, 1)
		assert.InDelta(t, 100, res.Corners[2].Y, 1)
		assert.InDelta(t, 16, float64(res.BBox.Min.X), 1)
		assert.InDelta(t, 100, float64(res.BBox.Max.X), 1)
		assert.InDelta(t, 0, res.Rotation, 1)
	}
}

func TestDecodeDownscaledImage(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Scale = 20
	opts := DefaultOptions()
	opts.Binarizer.MaxPixels = 200 * 200

	res := decodeOne(t, render(t, cfg), opts)
	assert.Equal(t, "A", res.Value)
	require.Len(t, res.Points, 3)
	assert.InDelta(t, 150, res.Points[1].X, 5)
	assert.InDelta(t, 150, res.Points[1].Y, 5)
}

func TestDecodeRotated(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Rotation = 90
	res := decodeOne(t, render(t, cfg), DefaultOptions())
	assert.Equal(t, "A", res.Value)
	assert.InDelta(t, 270, res.Rotation, 1)
}

func TestDecodeWithROI(t *testing.T) {
	symbolImg := render(t, testutil.DefaultSymbolConfig())
	canvas := image.NewRGBA(image.Rect(0, 0, 400, 300))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	at := image.Pt(200, 120)
	draw.Draw(canvas, symbolImg.Bounds().Add(at), symbolImg, image.Point{}, draw.Src)

	opts := DefaultOptions()
	opts.ROI = image.Rect(190, 110, 330, 250)
	res := decodeOne(t, canvas, opts)
	assert.Equal(t, "A", res.Value)
	require.Len(t, res.Points, 3)
	assert.InDelta(t, 230, res.Points[1].X, 1)
	assert.InDelta(t, 150, res.Points[1].Y, 1)

	// A ROI outside the image is ignored.
	opts.ROI = image.Rect(1000, 1000, 1100, 1100)
	res = decodeOne(t, canvas, opts)
	assert.InDelta(t, 230, res.Points[1].X, 1)
}

func TestDecodeInvertRetry(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Background, cfg.Foreground = color.Black, color.White
	img := render(t, cfg)

	backend, err := NewBackend()
	require.NoError(t, err)
	_, err = backend.Decode(context.Background(), img, DefaultOptions())
	require.Error(t, err)

	opts := DefaultOptions()
	opts.InvertRetry = true
	res := decodeOne(t, img, opts)
	assert.True(t, res.Inverted)
	assert.Equal(t, "A", res.Value)
}

func TestDecodeCharsetFallback(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig()
	cfg.Text = "caf\xe9"
	img := render(t, cfg)

	res := decodeOne(t, img, DefaultOptions())
	assert.Equal(t, "café", res.Value)
	assert.Equal(t, "ISO-8859-1", res.Charset)
	assert.Equal(t, []byte("caf\xe9"), res.Raw)

	opts := DefaultOptions()
	opts.CharsetFallback = "windows-1252"
	res = decodeOne(t, img, opts)
	assert.Equal(t, "café", res.Value)
	assert.Equal(t, "windows-1252", res.Charset)
}

func TestDecodeFailures(t *testing.T) {
	backend, err := NewBackend()
	require.NoError(t, err)
	ctx := context.Background()

	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	_, err = backend.Decode(ctx, blank, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = backend.Decode(ctx, nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Formats = []Format{FormatUnknown}
	_, err = backend.Decode(ctx, blank, opts)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = backend.Decode(cancelled, render(t, testutil.DefaultSymbolConfig()), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"qr", "QR", " qrcode "} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, FormatQR, f)
	}
	_, err := ParseFormat("ean13")
	assert.Error(t, err)
	assert.Equal(t, "unknown", FormatUnknown.String())

	text, err := FormatQR.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "qr", string(text))
}

func TestSymbolCorners(t *testing.T) {
	// Version 1, 10px modules, finder centers 14 modules apart.
	points := []utils.Point{{X: 35, Y: 175}, {X: 35, Y: 35}, {X: 175, Y: 35}}
	corners := symbolCorners(points, 21)
	assert.Equal(t, []utils.Point{{X: 0, Y: 0}, {X: 210, Y: 0}, {X: 210, Y: 210}, {X: 0, Y: 210}}, corners)
	assert.Nil(t, symbolCorners(points[:2], 21))
}

func TestMostSpecific(t *testing.T) {
	notFound := qrerr.NotFound("detect", "nothing")
	checksum := qrerr.Checksum("rs", "too many errors")

	assert.Equal(t, notFound, mostSpecific(nil, notFound))
	assert.Equal(t, checksum, mostSpecific(notFound, checksum))
	assert.Equal(t, checksum, mostSpecific(checksum, notFound))
	assert.True(t, errors.Is(mostSpecific(checksum, notFound), qrerr.ErrChecksum))
}
