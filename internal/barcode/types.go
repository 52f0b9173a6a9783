package barcode

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/binarize"
	"github.com/MeKo-Tech/qrscan/internal/decoder"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
)

// String returns the lower-case symbology name.
func (f Format) String() string {
	switch f {
	case FormatQR:
		return "qr"
	default:
		return "unknown"
	}
}

// MarshalText encodes the format by name.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat accepts "qr" and "qrcode" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qr", "qrcode", "qr_code":
		return FormatQR, nil
	}
	return FormatUnknown, fmt.Errorf("barcode: unsupported format %q", s)
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats []Format

	// TryHarder scans every row for finder patterns (slower but more robust).
	TryHarder bool

	// PureFirst tries the pure extractor before the detector. It only
	// succeeds on unrotated, unskewed symbols on a clean background.
	PureFirst bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or outside the image, it is ignored.
	ROI image.Rectangle

	// Binarizer selects the thresholding method, fixed level and pixel
	// budget. Its Invert field is managed by the backend.
	Binarizer binarize.Config

	// InvertRetry retries with inverted brightness for light-on-dark symbols.
	InvertRetry bool

	// CharsetFallback names the encoding for byte segments that are neither
	// tagged with an ECI nor valid UTF-8. Empty means ISO-8859-1.
	CharsetFallback string
}

// DefaultOptions searches for QR codes with the area binarizer.
func DefaultOptions() Options {
	return Options{
		Formats:   []Format{FormatQR},
		Binarizer: binarize.DefaultConfig(),
	}
}

// Result represents a decoded barcode.
type Result struct {
	Type    Format `json:"type"`
	Value   string `json:"value"`
	Charset string `json:"charset"`
	// Raw holds the concatenated segment bytes before text decoding.
	Raw []byte `json:"raw"`

	Version          int                       `json:"version"`
	ECLevel          string                    `json:"ec_level"`
	Mask             int                       `json:"mask"`
	ErrorsCorrected  int                       `json:"errors_corrected"`
	Segments         []decoder.Segment         `json:"segments,omitempty"`
	StructuredAppend *decoder.StructuredAppend `json:"structured_append,omitempty"`
	FNC1             *decoder.FNC1             `json:"fnc1,omitempty"`

	// Points are the finder centers (bottomLeft, topLeft, topRight) and,
	// when one was found, the alignment pattern.
	Points []utils.Point `json:"points"`
	// Corners are the symbol's outer corners, clockwise from top-left.
	Corners  []utils.Point   `json:"corners"`
	BBox     image.Rectangle `json:"bbox"`
	Rotation float64         `json:"rotation"` // degrees clockwise
	Pure     bool            `json:"pure"`
	Inverted bool            `json:"inverted"`
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default backend implementation.
func NewBackend() (Backend, error) { return newNativeBackend(), nil }
