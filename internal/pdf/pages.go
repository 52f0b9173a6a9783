package pdf

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dslipak/pdf"
)

// PageSize is a page's MediaBox extent in PDF points (1/72 inch).
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageSizes reads the MediaBox of every page. It is best-effort: readers
// that cannot parse the file yield an error and callers carry on without
// page coordinates.
func PageSizes(filename string) (sizes map[int]PageSize, err error) {
	f, err := os.Open(filename) //nolint:gosec // G304: Reading user-provided PDF file path is expected
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			sizes, err = nil, fmt.Errorf("read page sizes: %v", r)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %q: %w", filename, err)
	}

	sizes = make(map[int]PageSize, reader.NumPage())
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		if size, ok := mediaBox(page.V); ok {
			sizes[n] = size
		}
	}
	return sizes, nil
}

// mediaBox looks the MediaBox up on the page and then its ancestors, where
// it may be inherited from.
func mediaBox(v pdf.Value) (PageSize, bool) {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return PageSize{Width: w, Height: h}, true
			}
		}
		v = v.Key("Parent")
	}
	return PageSize{}, false
}

func pageSizesOrEmpty(filename string) map[int]PageSize {
	sizes, err := PageSizes(filename)
	if err != nil {
		slog.Debug("page sizes unavailable", "file", filename, "error", err)
		return map[int]PageSize{}
	}
	return sizes
}
