package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/binarize"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func symbolImage(t *testing.T, text string) image.Image {
	t.Helper()
	cfg := testutil.DefaultSymbolConfig()
	cfg.Text = text
	cfg.Version = 0
	img, err := testutil.RenderSymbol(cfg)
	require.NoError(t, err)
	return img
}

func blankImage(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// fakeBackend returns a fixed result or error and counts calls.
type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	results []barcode.Result
	err     error
	opts    barcode.Options
}

func (f *fakeBackend) Decode(_ context.Context, _ image.Image, opts barcode.Options) ([]barcode.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = opts
	return f.results, f.err
}

func TestBuilderOptions(t *testing.T) {
	b := NewBuilder().
		WithBinarizer(binarize.MethodOtsu).
		WithThreshold(90).
		WithMaxPixels(5000).
		WithAreaGrid(8).
		WithTryHarder(true).
		WithPureFirst(true).
		WithInvertRetry(true).
		WithCharsetFallback("Shift_JIS").
		WithROI(image.Rect(1, 2, 3, 4)).
		WithParallelWorkers(3)

	cfg := b.Config()
	assert.Equal(t, binarize.MethodOtsu, cfg.Scan.Binarizer.Method)
	assert.Equal(t, uint8(90), cfg.Scan.Binarizer.Threshold)
	assert.Equal(t, 5000, cfg.Scan.Binarizer.MaxPixels)
	assert.Equal(t, 8, cfg.Scan.Binarizer.AreaGrid)
	assert.True(t, cfg.Scan.TryHarder)
	assert.True(t, cfg.Scan.PureFirst)
	assert.True(t, cfg.Scan.InvertRetry)
	assert.Equal(t, "Shift_JIS", cfg.Scan.CharsetFallback)
	assert.Equal(t, image.Rect(1, 2, 3, 4), cfg.Scan.ROI)
	assert.Equal(t, 3, cfg.Parallel.MaxWorkers)

	p, err := b.Build()
	require.NoError(t, err)
	info := p.Info()
	assert.Equal(t, "otsu", info["binarizer"])
	assert.Equal(t, true, info["pure_first"])
	assert.Contains(t, info, "profile")
}

func TestBuilderValidate(t *testing.T) {
	assert.NoError(t, NewBuilder().Validate())
	assert.Error(t, NewBuilder().WithBinarizer("sauvola").Validate())
	assert.Error(t, NewBuilder().WithCharsetFallback("klingon").Validate())

	_, err := NewBuilder().WithBinarizer("sauvola").Build()
	assert.Error(t, err)
}

func TestProcessImage(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.ProcessImage(symbolImage(t, "hello pipeline"))
	require.NoError(t, err)
	require.NoError(t, ValidateScanImageResult(res))

	require.Len(t, res.Codes, 1)
	code := res.Codes[0]
	assert.Equal(t, "qr", code.Type)
	assert.Equal(t, "hello pipeline", code.Value)
	assert.Equal(t, "68656c6c6f20706970656c696e65", code.RawHex)
	assert.Positive(t, code.Box.W)
	assert.Len(t, code.Points, 3)
	assert.Contains(t, res.Processing.TimingsMs, "decode")
	assert.Contains(t, res.Processing.TimingsMs, "total")
	assert.Positive(t, res.Processing.TotalNs)

	snap := p.Profiler.Snapshot()
	assert.Equal(t, int64(1), snap["images"])
	assert.Equal(t, int64(1), snap["codes"])
}

func TestProcessImageErrors(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.ProcessImage(blankImage(100, 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, qrerr.ErrNotFound)
	assert.Equal(t, int64(1), p.Profiler.ImagesFailed.Load())

	_, err = p.ProcessImage(nil)
	assert.Error(t, err)

	_, err = p.ProcessImage(blankImage(10, 10))
	assert.Error(t, err)

	var nilPipeline *Pipeline
	_, err = nilPipeline.ProcessImage(blankImage(50, 50))
	assert.ErrorContains(t, err, "pipeline not initialized")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.ProcessImageContext(ctx, symbolImage(t, "x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessImagePassesScanOptions(t *testing.T) {
	fake := &fakeBackend{err: qrerr.Checksum("rs", "boom")}
	p, err := NewBuilder().WithBackend(fake).WithTryHarder(true).Build()
	require.NoError(t, err)

	_, err = p.ProcessImage(blankImage(40, 40))
	assert.ErrorIs(t, err, qrerr.ErrChecksum)
	assert.True(t, fake.opts.TryHarder)
	assert.Equal(t, 1, fake.calls)
}

func TestProcessImagesSequential(t *testing.T) {
	p := newTestPipeline(t)
	images := []image.Image{symbolImage(t, "one"), blankImage(80, 80), symbolImage(t, "three")}

	results, err := p.ProcessImages(images)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 1")
	require.Len(t, results, 3)
	assert.Equal(t, "one", results[0].Codes[0].Value)
	assert.Nil(t, results[1])
	assert.Equal(t, "three", results[2].Codes[0].Value)

	_, err = p.ProcessImages(nil)
	assert.ErrorContains(t, err, "no images provided")
}
