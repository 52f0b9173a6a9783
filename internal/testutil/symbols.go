package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"rsc.io/qr/coding"

	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// Encoding selects the segment mode used for the payload.
type Encoding string

const (
	EncodeByte         Encoding = "byte"
	EncodeNumeric      Encoding = "numeric"
	EncodeAlphanumeric Encoding = "alphanumeric"
)

// SymbolConfig describes a synthetic symbol and how it is drawn.
type SymbolConfig struct {
	Text     string
	Encoding Encoding
	// Version 0 picks the smallest version that fits.
	Version    int
	Level      symbol.ECLevel
	Mask       int
	Scale      int     // pixels per module
	QuietZone  int     // modules of light border on every side
	Rotation   float64 // degrees, counter-clockwise
	Background color.Color
	Foreground color.Color
}

// DefaultSymbolConfig is a version 1, level L, mask 0 symbol for "A".
func DefaultSymbolConfig() SymbolConfig {
	return SymbolConfig{
		Text:       "A",
		Encoding:   EncodeByte,
		Version:    1,
		Level:      symbol.ECLevelL,
		Mask:       0,
		Scale:      4,
		QuietZone:  4,
		Background: color.White,
		Foreground: color.Black,
	}
}

func codingLevel(l symbol.ECLevel) coding.Level {
	switch l {
	case symbol.ECLevelM:
		return coding.M
	case symbol.ECLevelQ:
		return coding.Q
	case symbol.ECLevelH:
		return coding.H
	default:
		return coding.L
	}
}

func (c SymbolConfig) encoding() coding.Encoding {
	switch c.Encoding {
	case EncodeNumeric:
		return coding.Num(c.Text)
	case EncodeAlphanumeric:
		return coding.Alpha(c.Text)
	default:
		return coding.String(c.Text)
	}
}

// EncodeSymbol encodes the configured payload with an external encoder.
func EncodeSymbol(cfg SymbolConfig) (*coding.Code, error) {
	enc := cfg.encoding()
	if err := enc.Check(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", cfg.Encoding, err)
	}
	level := codingLevel(cfg.Level)

	version := coding.Version(cfg.Version)
	if cfg.Version == 0 {
		for version = coding.MinVersion; ; version++ {
			if version > coding.MaxVersion {
				return nil, fmt.Errorf("payload of %d bytes does not fit any version", len(cfg.Text))
			}
			if enc.Bits(version) <= version.DataBytes(level)*8 {
				break
			}
		}
	}

	plan, err := coding.NewPlan(version, level, coding.Mask(cfg.Mask))
	if err != nil {
		return nil, fmt.Errorf("failed to plan version %d: %w", version, err)
	}
	code, err := plan.Encode(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}
	return code, nil
}

// SymbolGrid returns the module grid of the configured symbol, one bit per
// module and no quiet zone.
func SymbolGrid(cfg SymbolConfig) (*bitgrid.BitGrid, error) {
	code, err := EncodeSymbol(cfg)
	if err != nil {
		return nil, err
	}
	grid := bitgrid.NewSquare(code.Size)
	for y := range code.Size {
		for x := range code.Size {
			if code.Black(x, y) {
				grid.Set(x, y)
			}
		}
	}
	return grid, nil
}

// RenderSymbol draws the configured symbol as an image.
func RenderSymbol(cfg SymbolConfig) (image.Image, error) {
	code, err := EncodeSymbol(cfg)
	if err != nil {
		return nil, err
	}
	scale := max(cfg.Scale, 1)
	quiet := max(cfg.QuietZone, 0)
	bg, fg := cfg.Background, cfg.Foreground
	if bg == nil {
		bg = color.White
	}
	if fg == nil {
		fg = color.Black
	}

	side := (code.Size + 2*quiet) * scale
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	dark := &image.Uniform{fg}
	for y := range code.Size {
		for x := range code.Size {
			if !code.Black(x, y) {
				continue
			}
			px, py := (x+quiet)*scale, (y+quiet)*scale
			draw.Draw(img, image.Rect(px, py, px+scale, py+scale), dark, image.Point{}, draw.Src)
		}
	}

	if cfg.Rotation != 0 {
		return imaging.Rotate(img, cfg.Rotation, bg), nil
	}
	return img, nil
}

// RenderBitmap draws the configured symbol and thresholds it at mid gray.
func RenderBitmap(cfg SymbolConfig) (*bitgrid.BitGrid, error) {
	img, err := RenderSymbol(cfg)
	if err != nil {
		return nil, err
	}
	return bitgrid.FromBitmap(NewThresholdBitmap(img, 128)), nil
}

// ThresholdBitmap exposes an image as a Bitmap by comparing luma with a
// fixed level.
type ThresholdBitmap struct {
	img       *image.Gray
	threshold uint8
}

// NewThresholdBitmap converts img to grayscale once.
func NewThresholdBitmap(img image.Image, threshold uint8) *ThresholdBitmap {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return &ThresholdBitmap{img: gray, threshold: threshold}
}

func (m *ThresholdBitmap) Width() int  { return m.img.Rect.Dx() }
func (m *ThresholdBitmap) Height() int { return m.img.Rect.Dy() }

func (m *ThresholdBitmap) IsDark(x, y int) bool {
	return m.img.GrayAt(x, y).Y < m.threshold
}

// SaveImage saves an image as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}
