package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func quietConfig(out *bytes.Buffer) *Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Quiet = true
	cfg.Stdout = out
	return cfg
}

func writeBlank(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	testutil.SaveImage(t, img, path)
}

func TestProcessBatch_NoImageFiles(t *testing.T) {
	result, err := ProcessBatch([]string{t.TempDir()}, quietConfig(&bytes.Buffer{}))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestProcessBatch_InvalidImagePath(t *testing.T) {
	result, err := ProcessBatch([]string{"/nonexistent/file.png"}, quietConfig(&bytes.Buffer{}))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcessBatch_DecodesFixtures(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteSymbolFixtures(t, dir)
	fixtures := testutil.StandardSymbols()

	result, err := ProcessBatch(paths, quietConfig(&bytes.Buffer{}))
	require.NoError(t, err)
	require.Len(t, result.Results, len(fixtures))
	assert.Equal(t, paths, result.ImagePaths)
	assert.Zero(t, result.Failed())
	assert.Equal(t, len(fixtures), result.CodeCount())
	assert.Equal(t, 2, result.WorkerCount)

	for i, f := range fixtures {
		res := result.Results[i]
		require.NotNil(t, res, f.Name)
		assert.Equal(t, paths[i], res.Source)
		require.Len(t, res.Codes, 1, f.Name)
		assert.Equal(t, f.Want, res.Codes[0].Value, f.Name)
	}
}

func TestProcessBatch_RecordsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	img, err := testutil.RenderSymbol(testutil.DefaultSymbolConfig())
	require.NoError(t, err)
	good := filepath.Join(dir, "a_good.png")
	testutil.SaveImage(t, img, good)
	blank := filepath.Join(dir, "b_blank.png")
	writeBlank(t, blank)
	corrupt := filepath.Join(dir, "c_corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a png"), 0o600))

	result, err := ProcessBatch([]string{dir}, quietConfig(&bytes.Buffer{}))
	require.NoError(t, err)
	require.Equal(t, []string{good, blank, corrupt}, result.ImagePaths)

	require.NotNil(t, result.Results[0])
	assert.NoError(t, result.Errors[0])
	assert.Equal(t, "A", result.Results[0].Codes[0].Value)

	assert.Nil(t, result.Results[1])
	assert.True(t, errors.Is(result.Errors[1], qrerr.ErrNotFound), "%v", result.Errors[1])

	assert.Nil(t, result.Results[2])
	require.Error(t, result.Errors[2])
	assert.Contains(t, result.Errors[2].Error(), "failed to load")

	assert.Equal(t, 2, result.Failed())
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := testutil.WriteSymbolFixtures(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProcessBatchContext(ctx, paths, quietConfig(&bytes.Buffer{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessBatch_WritesOverlays(t *testing.T) {
	dir := t.TempDir()
	img, err := testutil.RenderSymbol(testutil.DefaultSymbolConfig())
	require.NoError(t, err)
	path := filepath.Join(dir, "code.png")
	testutil.SaveImage(t, img, path)

	cfg := quietConfig(&bytes.Buffer{})
	cfg.OverlayDir = filepath.Join(dir, "overlays")
	_, err = ProcessBatch([]string{path}, cfg)
	require.NoError(t, err)

	overlay := testutil.LoadImage(t, filepath.Join(cfg.OverlayDir, "code_overlay.png"))
	assert.Equal(t, img.Bounds().Size(), overlay.Bounds().Size())
	// The outline is drawn in a non-gray color somewhere on the symbol.
	found := false
	b := overlay.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(overlay.At(x, y)).(color.RGBA)
			if c.R != c.G || c.G != c.B {
				found = true
				break
			}
		}
	}
	assert.True(t, found)
}

func TestRun_WritesOutputAndStats(t *testing.T) {
	dir := t.TempDir()
	img, err := testutil.RenderSymbol(testutil.DefaultSymbolConfig())
	require.NoError(t, err)
	path := filepath.Join(dir, "code.png")
	testutil.SaveImage(t, img, path)

	var out bytes.Buffer
	cfg := quietConfig(&out)
	cfg.Quiet = false
	cfg.Format = "json"
	cfg.OutputFile = filepath.Join(dir, "out.json")

	result, err := Run(context.Background(), []string{path}, cfg)
	require.NoError(t, err)
	require.NotNil(t, result)

	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value": "A"`)
	assert.Contains(t, out.String(), "Results written to")
	assert.Contains(t, out.String(), "Total images: 1")
	assert.Contains(t, out.String(), "Codes: 1")
}
