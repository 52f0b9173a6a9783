package pipeline

import (
	"github.com/MeKo-Tech/qrscan/internal/decoder"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Box is an integer axis-aligned rectangle in image coordinates.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// CodeResult is one decoded symbol in image coordinates.
type CodeResult struct {
	Type            string  `json:"type" yaml:"type"`
	Value           string  `json:"value" yaml:"value"`
	Charset         string  `json:"charset" yaml:"charset"`
	RawHex          string  `json:"raw_hex" yaml:"raw_hex"`
	Version         int     `json:"version" yaml:"version"`
	ECLevel         string  `json:"ec_level" yaml:"ec_level"`
	Mask            int     `json:"mask" yaml:"mask"`
	ErrorsCorrected int     `json:"errors_corrected" yaml:"errors_corrected"`
	Rotation        float64 `json:"rotation" yaml:"rotation"`
	Box             Box     `json:"box" yaml:"box"`

	Points  []utils.Point `json:"points" yaml:"points"`
	Corners []utils.Point `json:"corners,omitempty" yaml:"corners,omitempty"`

	Pure             bool                      `json:"pure" yaml:"pure"`
	Inverted         bool                      `json:"inverted" yaml:"inverted"`
	StructuredAppend *decoder.StructuredAppend `json:"structured_append,omitempty" yaml:"structured_append,omitempty"`
}

// ScanImageResult is the per-image scan output.
type ScanImageResult struct {
	Source     string       `json:"source,omitempty" yaml:"source,omitempty"`
	Width      int          `json:"width" yaml:"width"`
	Height     int          `json:"height" yaml:"height"`
	Codes      []CodeResult `json:"codes" yaml:"codes"`
	Processing struct {
		TimingsMs map[string]float64 `json:"timings_ms" yaml:"timings_ms"`
		TotalNs   int64              `json:"total_ns" yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}
