package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ProcessImage decodes the QR code in a single image.
func (p *Pipeline) ProcessImage(img image.Image) (*ScanImageResult, error) {
	return p.ProcessImageContext(context.Background(), img)
}

// ProcessImageContext is like ProcessImage but allows cancellation via context.
// Decode failures are returned as errors that match qrerr.ErrNotFound,
// qrerr.ErrFormat or qrerr.ErrChecksum.
func (p *Pipeline) ProcessImageContext(ctx context.Context, img image.Image) (*ScanImageResult, error) {
	if p == nil || p.Backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	slog.Debug("Starting image scan", "width", bounds.Dx(), "height", bounds.Dy())
	timer := common.NewStageTimer()

	constraints := utils.DefaultImageConstraints()
	constraints.MaxPixels = p.cfg.Scan.Binarizer.MaxPixels
	if err := utils.ValidateImageConstraints(img, constraints); err != nil {
		return nil, err
	}
	timer.Mark("validate")

	codes, err := p.Backend.Decode(ctx, img, p.cfg.Scan)
	timer.Mark("decode")
	if p.Profiler != nil {
		p.Profiler.Record(timer.Total().Nanoseconds(), len(codes), err != nil)
	}
	if err != nil {
		slog.Debug("Image scan failed", "error", err, "duration_ms", timer.Total().Milliseconds())
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	out := &ScanImageResult{Width: bounds.Dx(), Height: bounds.Dy()}
	out.Codes = make([]CodeResult, 0, len(codes))
	for _, c := range codes {
		out.Codes = append(out.Codes, toCodeResult(c))
	}
	out.Processing.TimingsMs = timer.Millis()
	out.Processing.TotalNs = timer.Total().Nanoseconds()

	slog.Debug("Image scan completed", "codes", len(out.Codes), "duration_ms", timer.Total().Milliseconds())
	return out, nil
}

func toCodeResult(r barcode.Result) CodeResult {
	return CodeResult{
		Type:             r.Type.String(),
		Value:            r.Value,
		Charset:          r.Charset,
		RawHex:           hex.EncodeToString(r.Raw),
		Version:          r.Version,
		ECLevel:          r.ECLevel,
		Mask:             r.Mask,
		ErrorsCorrected:  r.ErrorsCorrected,
		Rotation:         r.Rotation,
		Box:              Box{X: r.BBox.Min.X, Y: r.BBox.Min.Y, W: r.BBox.Dx(), H: r.BBox.Dy()},
		Points:           r.Points,
		Corners:          r.Corners,
		Pure:             r.Pure,
		Inverted:         r.Inverted,
		StructuredAppend: r.StructuredAppend,
	}
}
