package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// OverlayStyle sets the colors used by RenderOverlay.
type OverlayStyle struct {
	Outline color.Color
	Points  color.Color
	Label   color.Color
	// LabelLimit truncates labels to this many runes; 0 means no label.
	LabelLimit int
}

// DefaultOverlayStyle draws green outlines, red control points and labels
// of up to 32 runes.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		Outline:    color.RGBA{G: 200, A: 255},
		Points:     color.RGBA{R: 255, A: 255},
		Label:      color.RGBA{B: 200, A: 255},
		LabelLimit: 32,
	}
}

// RenderOverlay draws each code's outline, control points and value over a
// copy of img.
func RenderOverlay(img image.Image, res *ScanImageResult, style OverlayStyle) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if res == nil {
		return dst
	}

	shift := func(pts []utils.Point) []utils.Point {
		return utils.ScalePoints(pts, 1, -float64(b.Min.X), -float64(b.Min.Y))
	}
	for _, c := range res.Codes {
		thickness := max(1, int(math.Round(float64(min(b.Dx(), b.Dy()))/300)))
		if len(c.Corners) == 4 {
			utils.DrawPolygon(dst, shift(c.Corners), style.Outline, thickness)
		} else {
			rect := image.Rect(c.Box.X, c.Box.Y, c.Box.X+c.Box.W, c.Box.Y+c.Box.H).Sub(b.Min)
			utils.DrawRect(dst, rect, style.Outline, thickness)
		}
		for _, p := range shift(c.Points) {
			utils.DrawMarker(dst, p, style.Points, thickness+1)
		}
		if style.LabelLimit > 0 {
			drawLabel(dst, c.Box.X-b.Min.X, c.Box.Y-b.Min.Y, truncate(c.Value, style.LabelLimit), style.Label)
		}
	}
	return dst
}

// SaveOverlay renders the overlay and writes it to path; the extension
// selects the image format.
func SaveOverlay(path string, img image.Image, res *ScanImageResult, style OverlayStyle) error {
	out := RenderOverlay(img, res, style)
	if out == nil {
		return fmt.Errorf("overlay %s: nil image", path)
	}
	if err := imaging.Save(out, path); err != nil {
		return fmt.Errorf("overlay %s: %w", path, err)
	}
	return nil
}

// drawLabel writes text just above (x, y), or below it near the top edge.
func drawLabel(dst *image.RGBA, x, y int, text string, col color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	baseline := y - 3
	if baseline-face.Ascent < 0 {
		baseline = y + face.Ascent + 3
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(max(x, 0), baseline),
	}
	d.DrawString(text)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
