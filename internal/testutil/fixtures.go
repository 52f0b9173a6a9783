package testutil

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/MeKo-Tech/qrscan/internal/symbol"
)

// SymbolFixture is a named synthetic symbol with its expected payload.
type SymbolFixture struct {
	Name   string
	Config SymbolConfig
	Want   string
}

func fixture(name, text string, enc Encoding, version int, level symbol.ECLevel, mask int) SymbolFixture {
	cfg := DefaultSymbolConfig()
	cfg.Text = text
	cfg.Encoding = enc
	cfg.Version = version
	cfg.Level = level
	cfg.Mask = mask
	return SymbolFixture{Name: name, Config: cfg, Want: text}
}

// StandardSymbols covers every data mask, every EC level, the three data
// modes the encoder supports, and versions with alignment patterns and
// version information blocks.
func StandardSymbols() []SymbolFixture {
	return []SymbolFixture{
		fixture("v1_byte_A", "A", EncodeByte, 1, symbol.ECLevelL, 0),
		fixture("v1_numeric", "0123456789", EncodeNumeric, 1, symbol.ECLevelM, 1),
		fixture("v1_alnum", "HELLO WORLD", EncodeAlphanumeric, 1, symbol.ECLevelQ, 2),
		fixture("v2_byte", "qrscan test payload", EncodeByte, 2, symbol.ECLevelM, 3),
		fixture("v4_url", "https://example.com/qrscan?id=42", EncodeByte, 4, symbol.ECLevelH, 4),
		fixture("v5_numeric", "31415926535897932384626433832795028841971", EncodeNumeric, 5, symbol.ECLevelQ, 5),
		fixture("v7_byte", "Version seven carries version information blocks.", EncodeByte, 7, symbol.ECLevelM, 6),
		fixture("v10_alnum", "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG 0123456789 $%*+-./:", EncodeAlphanumeric, 10, symbol.ECLevelH, 7),
	}
}

// WriteSymbolFixtures renders every standard symbol as a PNG into dir and
// returns the file paths in fixture order.
func WriteSymbolFixtures(t *testing.T, dir string) []string {
	t.Helper()

	fixtures := StandardSymbols()
	paths := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		img, err := RenderSymbol(f.Config)
		if err != nil {
			t.Fatalf("render %s: %v", f.Name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.png", f.Name))
		SaveImage(t, img, path)
		paths = append(paths, path)
	}
	return paths
}

// WriteSymbolPDF renders one symbol per text, imports each as its own page
// of a PDF in dir and returns the PDF path.
func WriteSymbolPDF(t *testing.T, dir string, texts ...string) string {
	t.Helper()

	out, err := BuildSymbolPDF(dir, texts...)
	if err != nil {
		t.Fatalf("build symbol pdf: %v", err)
	}
	return out
}

// BuildSymbolPDF is WriteSymbolPDF for callers without a *testing.T.
func BuildSymbolPDF(dir string, texts ...string) (string, error) {
	images := make([]string, 0, len(texts))
	for i, text := range texts {
		path := filepath.Join(dir, fmt.Sprintf("page%02d.png", i+1))
		if err := WriteSymbolPNG(path, text, 6); err != nil {
			return "", err
		}
		images = append(images, path)
	}

	out := filepath.Join(dir, "symbols.pdf")
	if err := api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), nil); err != nil {
		return "", fmt.Errorf("import images: %w", err)
	}
	return out, nil
}

// WriteSymbolPNG renders text at the smallest fitting version and saves it
// as a PNG at path.
func WriteSymbolPNG(path, text string, scale int) error {
	cfg := DefaultSymbolConfig()
	cfg.Text = text
	cfg.Version = 0
	if scale > 0 {
		cfg.Scale = scale
	}
	img, err := RenderSymbol(cfg)
	if err != nil {
		return fmt.Errorf("render %q: %w", text, err)
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: fixture path chosen by the caller
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
