package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// maxUpscaleDim caps the longer side of an upscaled page image.
const maxUpscaleDim = 3000

// ProcessorConfig controls PDF scanning.
type ProcessorConfig struct {
	// AllowPasswords decrypts encrypted files with the supplied credentials.
	AllowPasswords bool
	// AllowPasswordPrompt asks on the terminal when credentials are missing.
	AllowPasswordPrompt bool
	// TargetDPI is the resolution low-resolution page images are upscaled
	// to when they yield no symbol. Zero disables the retry.
	TargetDPI int
	// MaxWorkers bounds concurrently scanned pages; 0 means runtime.NumCPU().
	MaxWorkers int
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		AllowPasswords: true,
		TargetDPI:      150,
	}
}

// Processor scans the images embedded in PDF files. It is safe for
// concurrent use when its pipeline is.
type Processor struct {
	pipeline        *pipeline.Pipeline
	config          *ProcessorConfig
	passwordHandler *PasswordHandler
}

// NewProcessor creates a PDF processor scanning with pl.
func NewProcessor(pl *pipeline.Pipeline) *Processor {
	return NewProcessorWithConfig(pl, DefaultProcessorConfig())
}

// NewProcessorWithConfig creates a PDF processor with custom configuration.
func NewProcessorWithConfig(pl *pipeline.Pipeline, config *ProcessorConfig) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	return &Processor{
		pipeline:        pl,
		config:          config,
		passwordHandler: NewPasswordHandler(config.AllowPasswordPrompt),
	}
}

// ProcessFile scans the pages of filename selected by pageRange.
func (p *Processor) ProcessFile(ctx context.Context, filename string, pageRange string) (*DocumentResult, error) {
	return p.ProcessFileWithCredentials(ctx, filename, pageRange, nil)
}

// ProcessFileWithCredentials scans a possibly encrypted PDF file.
func (p *Processor) ProcessFileWithCredentials(ctx context.Context, filename string, pageRange string,
	creds *PasswordCredentials,
) (*DocumentResult, error) {
	if p.pipeline == nil {
		return nil, errors.New("pdf processor has no pipeline")
	}
	startTime := time.Now()

	workingFilename, cleanup, err := p.handlePasswordProtection(filename, creds)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	extractStart := time.Now()
	pageImages, err := ExtractImages(workingFilename, pageRange)
	if err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}
	extractTime := time.Since(extractStart)

	sizes := pageSizesOrEmpty(workingFilename)
	pages, decodeTime, err := p.processAllPages(ctx, pageImages, sizes)
	if err != nil {
		return nil, err
	}

	totalPages, err := PageCount(workingFilename)
	if err != nil {
		totalPages = len(pages)
	}
	return &DocumentResult{
		Filename:   filename,
		TotalPages: totalPages,
		Pages:      pages,
		Processing: ProcessingInfo{
			ExtractionTimeMs: extractTime.Milliseconds(),
			DecodeTimeMs:     decodeTime.Milliseconds(),
			TotalTimeMs:      time.Since(startTime).Milliseconds(),
		},
	}, nil
}

// ProcessBytes scans an in-memory PDF. name is reported as the filename.
func (p *Processor) ProcessBytes(ctx context.Context, name string, data []byte, pageRange string,
	creds *PasswordCredentials,
) (*DocumentResult, error) {
	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to buffer PDF: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to buffer PDF: %w", err)
	}

	doc, err := p.ProcessFileWithCredentials(ctx, tmp.Name(), pageRange, creds)
	if err != nil {
		return nil, err
	}
	doc.Filename = name
	return doc, nil
}

// ProcessFiles scans several PDF files, stopping at the first failure.
func (p *Processor) ProcessFiles(ctx context.Context, filenames []string, pageRange string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, filename := range filenames {
		result, err := p.ProcessFile(ctx, filename, pageRange)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", filename, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// SetPasswordCredentials sets default password credentials for processing.
func (p *Processor) SetPasswordCredentials(creds *PasswordCredentials) {
	p.passwordHandler.SetDefaultCredentials(creds)
}

// GetConfig returns the current processor configuration.
func (p *Processor) GetConfig() *ProcessorConfig {
	return p.config
}

// handlePasswordProtection returns the file to read and a cleanup func
// removing any decrypted copy.
func (p *Processor) handlePasswordProtection(filename string, creds *PasswordCredentials) (string, func(), error) {
	noop := func() {}
	if !p.config.AllowPasswords {
		return filename, noop, nil
	}

	working, err := p.passwordHandler.DecryptPDF(filename, creds)
	if err != nil {
		return "", noop, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	if working == filename {
		return filename, noop, nil
	}
	return working, func() {
		if err := p.passwordHandler.CleanupTempFile(working); err != nil {
			slog.Warn("failed to remove decrypted copy", "file", working, "error", err)
		}
	}, nil
}

// processAllPages scans pages with a worker pool and returns them in page
// order together with the summed decode time.
func (p *Processor) processAllPages(ctx context.Context, pageImages map[int][]image.Image,
	sizes map[int]PageSize,
) ([]PageResult, time.Duration, error) {
	pageList := make([]int, 0, len(pageImages))
	for n := range pageImages {
		pageList = append(pageList, n)
	}
	sort.Ints(pageList)
	if len(pageList) == 0 {
		return []PageResult{}, 0, nil
	}

	type out struct {
		page int
		res  PageResult
		dur  time.Duration
	}

	workers := p.config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(pageList)))

	jobs := make(chan int, len(pageList))
	results := make(chan out, len(pageList))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pageNum := range jobs {
				if ctx.Err() != nil {
					continue
				}
				var size *PageSize
				if s, ok := sizes[pageNum]; ok {
					size = &s
				}
				start := time.Now()
				pr := p.processPage(ctx, pageNum, pageImages[pageNum], size)
				results <- out{page: pageNum, res: pr, dur: time.Since(start)}
			}
		}()
	}

	for _, n := range pageList {
		jobs <- n
	}
	close(jobs)

	go func() { wg.Wait(); close(results) }()

	m := make(map[int]PageResult, len(pageList))
	var total time.Duration
	for r := range results {
		m[r.page] = r.res
		total += r.dur
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	pages := make([]PageResult, 0, len(pageList))
	for _, n := range pageList {
		pages = append(pages, m[n])
	}
	return pages, total, nil
}

func (p *Processor) processPage(ctx context.Context, pageNum int, images []image.Image, size *PageSize) PageResult {
	start := time.Now()
	result := PageResult{
		PageNumber: pageNum,
		Size:       size,
		Images:     make([]ImageResult, 0, len(images)),
	}
	for i, img := range images {
		if ctx.Err() != nil {
			break
		}
		result.Images = append(result.Images, p.scanImage(ctx, i, img, size))
	}
	result.Processing.DecodeTimeMs = time.Since(start).Milliseconds()
	result.Processing.TotalTimeMs = result.Processing.DecodeTimeMs
	return result
}

// scanImage decodes one page image, retrying upscaled when the image is
// below the target resolution and nothing was found.
func (p *Processor) scanImage(ctx context.Context, index int, img image.Image, size *PageSize) ImageResult {
	b := img.Bounds()
	ir := ImageResult{ImageIndex: index, Width: b.Dx(), Height: b.Dy(), Codes: []Code{}}

	res, err := p.pipeline.ProcessImageContext(ctx, img)
	if errors.Is(err, qrerr.ErrNotFound) {
		if scale := p.upscaleFactor(b.Dx(), b.Dy(), size); scale > 1 {
			up := imaging.Resize(img, int(math.Round(float64(b.Dx())*scale)), int(math.Round(float64(b.Dy())*scale)), imaging.Lanczos)
			if upRes, upErr := p.pipeline.ProcessImageContext(ctx, up); upErr == nil {
				rescaleResult(upRes, 1/scale)
				res, err = upRes, nil
				ir.Upscaled = true
			}
		}
	}
	switch {
	case errors.Is(err, qrerr.ErrNotFound):
		return ir
	case err != nil:
		ir.Error = err.Error()
		return ir
	}

	for _, c := range res.Codes {
		code := Code{CodeResult: c}
		if size != nil {
			pb := toPageBox(c.Box, b.Dx(), b.Dy(), *size)
			code.PageBox = &pb
		}
		ir.Codes = append(ir.Codes, code)
	}
	return ir
}

// upscaleFactor returns the factor bringing an image that fills a page of
// the given size up to the target DPI, capped at maxUpscaleDim, or 1 when
// no upscaling applies.
func (p *Processor) upscaleFactor(w, h int, size *PageSize) float64 {
	if size == nil || p.config.TargetDPI <= 0 || w <= 0 || h <= 0 {
		return 1
	}
	dpiX := float64(w) / (size.Width / 72.0)
	dpiY := float64(h) / (size.Height / 72.0)
	cur := (dpiX + dpiY) / 2
	if cur >= float64(p.config.TargetDPI) {
		return 1
	}
	scale := float64(p.config.TargetDPI) / cur
	if longest := float64(max(w, h)); longest*scale > maxUpscaleDim {
		scale = maxUpscaleDim / longest
	}
	return max(scale, 1)
}

// rescaleResult maps coordinates of a result computed on a resized image
// back by factor f.
func rescaleResult(res *pipeline.ScanImageResult, f float64) {
	res.Width = int(math.Round(float64(res.Width) * f))
	res.Height = int(math.Round(float64(res.Height) * f))
	for i := range res.Codes {
		c := &res.Codes[i]
		c.Points = utils.ScalePoints(c.Points, f, 0, 0)
		c.Corners = utils.ScalePoints(c.Corners, f, 0, 0)
		x0 := int(math.Floor(float64(c.Box.X) * f))
		y0 := int(math.Floor(float64(c.Box.Y) * f))
		x1 := int(math.Ceil(float64(c.Box.X+c.Box.W) * f))
		y1 := int(math.Ceil(float64(c.Box.Y+c.Box.H) * f))
		c.Box = pipeline.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
	}
}

// toPageBox maps a pixel box to page points assuming the image covers the
// whole page. PDF space has its origin bottom-left.
func toPageBox(box pipeline.Box, imgW, imgH int, page PageSize) PageBox {
	if imgW <= 0 || imgH <= 0 {
		return PageBox{}
	}
	sx := page.Width / float64(imgW)
	sy := page.Height / float64(imgH)
	pw := float64(box.W) * sx
	ph := float64(box.H) * sy
	return PageBox{
		X: float64(box.X) * sx,
		Y: page.Height - (float64(box.Y)*sy + ph),
		W: pw,
		H: ph,
	}
}
