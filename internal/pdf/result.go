package pdf

import (
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// PageBox is a rectangle in PDF page space: points, origin bottom-left.
type PageBox struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Code is a decoded symbol found in a page image. PageBox is set when the
// page size is known.
type Code struct {
	pipeline.CodeResult `yaml:",inline"`

	PageBox *PageBox `json:"page_box,omitempty" yaml:"page_box,omitempty"`
}

// ImageResult holds the symbols found in one image of a page. Error is set
// when the image could not be scanned for a reason other than holding no
// symbol.
type ImageResult struct {
	ImageIndex int    `json:"image_index" yaml:"image_index"`
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Codes      []Code `json:"codes" yaml:"codes"`
	Upscaled   bool   `json:"upscaled,omitempty" yaml:"upscaled,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PageResult represents the scan results for a single PDF page.
type PageResult struct {
	PageNumber int            `json:"page_number" yaml:"page_number"`
	Size       *PageSize      `json:"size,omitempty" yaml:"size,omitempty"`
	Images     []ImageResult  `json:"images" yaml:"images"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// CodeCount returns the number of symbols on the page.
func (p PageResult) CodeCount() int {
	n := 0
	for _, img := range p.Images {
		n += len(img.Codes)
	}
	return n
}

// DocumentResult represents the complete scan of a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename" yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages" yaml:"pages"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// Codes returns every symbol of the document in page order.
func (d *DocumentResult) Codes() []Code {
	var out []Code
	for _, p := range d.Pages {
		for _, img := range p.Images {
			out = append(out, img.Codes...)
		}
	}
	return out
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	DecodeTimeMs     int64 `json:"decode_time_ms" yaml:"decode_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms" yaml:"total_time_ms"`
}
