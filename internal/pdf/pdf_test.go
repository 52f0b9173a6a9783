package pdf

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// writeSymbolPDF renders one symbol per text and imports each as a page.
func writeSymbolPDF(t *testing.T, dir string, texts ...string) string {
	t.Helper()
	return testutil.WriteSymbolPDF(t, dir, texts...)
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		name        string
		pageRange   string
		want        []int
		expectError bool
	}{
		{name: "empty range returns nil", pageRange: "", want: nil},
		{name: "blank range returns nil", pageRange: "  ", want: nil},
		{name: "single page", pageRange: "1", want: []int{1}},
		{name: "multiple single pages", pageRange: "1,3,5", want: []int{1, 3, 5}},
		{name: "simple range", pageRange: "1-5", want: []int{1, 2, 3, 4, 5}},
		{name: "mixed pages and ranges", pageRange: "1,3-5,7", want: []int{1, 3, 4, 5, 7}},
		{name: "range with spaces", pageRange: " 1 - 3 , 5 ", want: []int{1, 2, 3, 5}},
		{name: "invalid page number", pageRange: "abc", expectError: true},
		{name: "invalid range format", pageRange: "1-2-3", expectError: true},
		{name: "start greater than end", pageRange: "5-1", expectError: true},
		{name: "invalid start page", pageRange: "abc-5", expectError: true},
		{name: "invalid end page", pageRange: "1-xyz", expectError: true},
		{name: "page zero", pageRange: "0", expectError: true},
		{name: "empty token", pageRange: "1,,2", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePageRange(tt.pageRange)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractImages(t *testing.T) {
	path := writeSymbolPDF(t, t.TempDir(), "first page", "second page")

	all, err := ExtractImages(path, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Len(t, all[1], 1)
	require.Len(t, all[2], 1)
	assert.Positive(t, all[1][0].Bounds().Dx())

	second, err := ExtractImages(path, "2")
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Contains(t, second, 2)

	n, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractImages_ErrorCases(t *testing.T) {
	_, err := ExtractImages(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.Error(t, err)

	path := writeSymbolPDF(t, t.TempDir(), "x")
	_, err = ExtractImages(path, "2-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")
}

func TestPageSizesBestEffort(t *testing.T) {
	path := writeSymbolPDF(t, t.TempDir(), "size")
	sizes := pageSizesOrEmpty(path)
	// The reader may not understand every file; whatever it reports must
	// be a real page.
	for n, s := range sizes {
		assert.Equal(t, 1, n)
		assert.Positive(t, s.Width)
		assert.Positive(t, s.Height)
	}

	assert.Empty(t, pageSizesOrEmpty(filepath.Join(t.TempDir(), "missing.pdf")))
}
