package support

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// RegisterImageSteps registers fixture image steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR code image "([^"]*)" encoding "([^"]*)"$`, testCtx.aQRCodeImageEncoding)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^a configuration file "([^"]*)" with:$`, testCtx.aConfigurationFileWith)
}

func (testCtx *TestContext) aQRCodeImageEncoding(name, text string) error {
	return testutil.WriteSymbolPNG(testCtx.Path(name), text, 4)
}

func (testCtx *TestContext) aBlankImage(name string) error {
	img := image.NewGray(image.Rect(0, 0, 120, 120))
	for y := range 120 {
		for x := range 120 {
			img.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: scenario temp path
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode blank image: %w", err)
	}
	return f.Close()
}

func (testCtx *TestContext) aTextFile(name string) error {
	return os.WriteFile(testCtx.Path(name), []byte("not an image\n"), 0o600)
}

func (testCtx *TestContext) aConfigurationFileWith(name string, body *godog.DocString) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body.Content), 0o600)
}
