package support

import (
	"fmt"
	"os"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// RegisterPDFSteps registers PDF fixture steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with pages encoding "([^"]*)"$`, testCtx.aPDFWithPagesEncoding)
}

// aPDFWithPagesEncoding builds one page per comma separated text.
func (testCtx *TestContext) aPDFWithPagesEncoding(name, texts string) error {
	dir, err := os.MkdirTemp(testCtx.TempDir, "pdf-pages-*")
	if err != nil {
		return err
	}
	out, err := testutil.BuildSymbolPDF(dir, splitList(texts)...)
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}
	return os.Rename(out, testCtx.Path(name))
}
