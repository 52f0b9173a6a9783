// Package pdf scans the images embedded in PDF documents for QR codes.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// ExtractImages extracts the embedded images of a PDF file, grouped by page
// number. pageRange uses the ParsePageRange syntax; empty means all pages.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: Reading user-provided PDF file path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ExtractImagesReader(f, pageRange, nil)
}

// ExtractImagesReader is ExtractImages for an already opened document. conf
// may carry passwords; nil uses pdfcpu's defaults.
func ExtractImagesReader(rs io.ReadSeeker, pageRange string, conf *model.Configuration) (map[int][]image.Image, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	c := newImageCollector()
	if err := api.ExtractImages(rs, pageStrings, c.digest, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}
	return c.pages, nil
}

// imageCollector groups images handed out by pdfcpu by page.
type imageCollector struct {
	mu    sync.Mutex
	pages map[int][]image.Image
}

func newImageCollector() *imageCollector {
	return &imageCollector{pages: make(map[int][]image.Image)}
}

// digest decodes one extracted image. Images in formats the decoders cannot
// read (JPEG 2000, CCITT, raw CMYK) are skipped.
func (c *imageCollector) digest(img model.Image, _ bool, _ int) error {
	if img.Reader == nil {
		return nil
	}
	data, err := io.ReadAll(img.Reader)
	if err != nil {
		return fmt.Errorf("read image %s on page %d: %w", img.Name, img.PageNr, err)
	}
	decoded, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		slog.Debug("skipping undecodable PDF image", "page", img.PageNr, "name", img.Name, "type", img.FileType, "error", err)
		return nil
	}
	c.mu.Lock()
	c.pages[img.PageNr] = append(c.pages[img.PageNr], decoded)
	c.mu.Unlock()
	return nil
}

// PageCount returns the number of pages of a PDF file.
func PageCount(filename string) (int, error) {
	return api.PageCountFile(filename)
}

// PageCountBytes returns the number of pages of an in-memory PDF.
func PageCountBytes(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), nil)
}

// ParsePageRange parses a page selection like "1-5" or "1,3,5-7". The
// empty string selects every page and yields nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for part := range strings.SplitSeq(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := parsePageNumber(rangeParts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := parsePageNumber(rangeParts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := parsePageNumber(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}

func parsePageNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d out of range", n)
	}
	return n, nil
}
