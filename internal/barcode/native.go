package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/qrscan/internal/binarize"
	"github.com/MeKo-Tech/qrscan/internal/bitgrid"
	"github.com/MeKo-Tech/qrscan/internal/charset"
	"github.com/MeKo-Tech/qrscan/internal/decoder"
	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ErrNotFound is returned, wrapped, when no symbol could be decoded.
var ErrNotFound = qrerr.ErrNotFound

// ErrUnsupportedFormat is returned when Options.Formats excludes QR.
var ErrUnsupportedFormat = errors.New("barcode: no supported format requested")

type nativeBackend struct {
	decoder *decoder.Decoder
}

func newNativeBackend() *nativeBackend {
	return &nativeBackend{decoder: decoder.New()}
}

func (b *nativeBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	if len(opts.Formats) > 0 && !slices.Contains(opts.Formats, FormatQR) {
		return nil, ErrUnsupportedFormat
	}

	origin := img.Bounds().Min
	if !opts.ROI.Empty() {
		if roi := opts.ROI.Intersect(img.Bounds()); !roi.Empty() {
			img = utils.CropImageRect(img, roi)
			origin = roi.Min
		}
	}

	passes := []bool{false}
	if opts.InvertRetry {
		passes = append(passes, true)
	}

	var lastErr error
	for _, inverted := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cfg := opts.Binarizer
		cfg.Invert = inverted
		bin, err := binarize.ToBitmap(img, cfg)
		if err != nil {
			return nil, fmt.Errorf("barcode: %w", err)
		}

		res, err := b.decodeBitmap(ctx, bin.Bits, opts)
		if err != nil {
			slog.Debug("QR decode pass failed", "inverted", inverted, "error", err)
			lastErr = mostSpecific(lastErr, err)
			continue
		}
		res.Inverted = inverted
		toSource(res, 1/bin.Scale, image.Rectangle{Min: origin, Max: origin.Add(img.Bounds().Size())})
		return []Result{*res}, nil
	}
	return nil, fmt.Errorf("barcode: %w", lastErr)
}

// decodeBitmap runs the pure extractor first when asked to and falls back
// to the detector when it fails at any stage.
func (b *nativeBackend) decodeBitmap(ctx context.Context, bits *bitgrid.BitGrid, opts Options) (*Result, error) {
	if opts.PureFirst {
		det, err := detector.DetectPure(bits)
		if err == nil {
			res, decErr := b.decodeDetected(det, opts)
			if decErr == nil {
				res.Pure = true
				return res, nil
			}
			err = decErr
		}
		slog.Debug("pure extraction failed, falling back to detector", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	det, err := detector.Detect(bits, detector.Options{TryHarder: opts.TryHarder})
	if err != nil {
		return nil, err
	}
	return b.decodeDetected(det, opts)
}

func (b *nativeBackend) decodeDetected(det *detector.DetectorResult, opts Options) (*Result, error) {
	dec, err := b.decoder.Decode(det.Bits)
	if err != nil {
		return nil, err
	}

	raw := dec.Bytes()
	text, cs, err := charset.DecodeSegments(dec.Segments, opts.CharsetFallback)
	if err != nil {
		slog.Warn("text decoding failed, returning raw bytes", "error", err)
		text, cs = string(raw), "binary"
	}

	points := make([]utils.Point, len(det.Points))
	for i, p := range det.Points {
		points[i] = utils.Point{X: p.X, Y: p.Y}
	}
	return &Result{
		Type:             FormatQR,
		Value:            text,
		Charset:          cs,
		Raw:              raw,
		Version:          dec.Version,
		ECLevel:          dec.ECLevel.String(),
		Mask:             dec.DataMask,
		ErrorsCorrected:  dec.ErrorsCorrected,
		Segments:         dec.Segments,
		StructuredAppend: dec.StructuredAppend,
		FNC1:             dec.FNC1,
		Points:           points,
		Corners:          symbolCorners(points, det.Bits.Width()),
	}, nil
}

// toSource maps bitmap coordinates back onto the scanned area of the
// caller's image and derives the bounding box, clamped to area, and rotation.
func toSource(res *Result, scale float64, area image.Rectangle) {
	dx, dy := float64(area.Min.X), float64(area.Min.Y)
	res.Points = utils.ScalePoints(res.Points, scale, dx, dy)
	res.Corners = utils.ScalePoints(res.Corners, scale, dx, dy)

	res.BBox = utils.BoundingBox(res.Corners).ToRect(area)
	if len(res.Points) >= 3 {
		res.Rotation = rotation(res.Points[1], res.Points[2])
	}
}

// symbolCorners extrapolates the outer corners from the three finder
// centers, which sit 3.5 modules in from each edge.
func symbolCorners(points []utils.Point, dimension int) []utils.Point {
	if len(points) < 3 || dimension <= 7 {
		return nil
	}
	bl, tl, tr := points[0], points[1], points[2]
	span := float64(dimension - 7)
	ux, uy := (tr.X-tl.X)/span*3.5, (tr.Y-tl.Y)/span*3.5
	vx, vy := (bl.X-tl.X)/span*3.5, (bl.Y-tl.Y)/span*3.5
	br := utils.Point{X: tr.X + bl.X - tl.X, Y: tr.Y + bl.Y - tl.Y}
	return []utils.Point{
		{X: tl.X - ux - vx, Y: tl.Y - uy - vy},
		{X: tr.X + ux - vx, Y: tr.Y + uy - vy},
		{X: br.X + ux + vx, Y: br.Y + uy + vy},
		{X: bl.X - ux + vx, Y: bl.Y - uy + vy},
	}
}

// rotation is the clockwise angle of the top edge in [0, 360).
func rotation(topLeft, topRight utils.Point) float64 {
	deg := math.Atan2(topRight.Y-topLeft.Y, topRight.X-topLeft.X) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// mostSpecific prefers format and checksum failures over NotFound.
func mostSpecific(prev, next error) error {
	if prev == nil || errors.Is(prev, qrerr.ErrNotFound) {
		return next
	}
	return prev
}
