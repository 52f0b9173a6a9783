package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func newPDFCmd(a *app) *cobra.Command {
	d := config.DefaultConfig().PDF
	cmd := &cobra.Command{
		Use:   "pdf [files...]",
		Short: "Decode QR codes in the images embedded in PDF files",
		Long: `Extract the images embedded in PDF pages and decode the QR Code symbols
they contain. Low-resolution images without a symbol are upscaled and
retried. Encrypted files are opened with the supplied passwords.

Examples:
  qrscan pdf invoice.pdf
  qrscan pdf report.pdf --pages 1-3,5 --format json
  qrscan pdf locked.pdf --user-password secret`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPDF(cmd, args)
		},
	}
	addScanFlags(cmd)
	f := cmd.Flags()
	f.StringP("format", "f", config.DefaultConfig().Output.Format, "output format: text, json, yaml or csv")
	f.StringP("output", "o", "", "write results to a file instead of stdout")
	f.String("pages", d.Pages, "page range, e.g. 1-3,5 (default all pages)")
	f.Int("target-dpi", d.TargetDPI, "upscale low-resolution images to this DPI when they yield nothing (0 disables)")
	f.Int("pdf-workers", d.MaxWorkers, "pages scanned concurrently (0 means one per CPU)")
	f.String("user-password", "", "user password for encrypted PDFs")
	f.String("owner-password", "", "owner password for encrypted PDFs")
	f.Bool("password-prompt", false, "prompt for a password when an encrypted PDF needs one")
	return cmd
}

func (a *app) runPDF(cmd *cobra.Command, args []string) error {
	cfg := a.cfg
	format, err := pipeline.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	pl, err := cfg.NewPipelineBuilder().Build()
	if err != nil {
		return fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("Error closing pipeline", "error", err)
		}
	}()

	pcfg := cfg.ToPDFConfig()
	pcfg.AllowPasswordPrompt, _ = cmd.Flags().GetBool("password-prompt")
	proc := pdf.NewProcessorWithConfig(pl, pcfg)

	var creds *pdf.PasswordCredentials
	user, _ := cmd.Flags().GetString("user-password")
	owner, _ := cmd.Flags().GetString("owner-password")
	if user != "" || owner != "" {
		creds = &pdf.PasswordCredentials{UserPassword: user, OwnerPassword: owner}
	}

	hist, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(hist)

	ctx := cmd.Context()
	docs := make([]*pdf.DocumentResult, 0, len(args))
	for _, file := range args {
		doc, err := proc.ProcessFileWithCredentials(ctx, file, cfg.PDF.Pages, creds)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", file, err)
		}
		docs = append(docs, doc)
		recordDocument(ctx, hist, doc)
	}

	out, err := formatDocuments(docs, format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), out, cfg.Output.File)
}

// recordDocument stores every decoded symbol with a page-qualified source.
func recordDocument(ctx context.Context, hist *history.History, doc *pdf.DocumentResult) {
	if hist == nil {
		return
	}
	for _, page := range doc.Pages {
		for _, img := range page.Images {
			if len(img.Codes) == 0 {
				continue
			}
			res := &pipeline.ScanImageResult{
				Source: fmt.Sprintf("%s#page=%d&image=%d", doc.Filename, page.PageNumber, img.ImageIndex),
				Width:  img.Width,
				Height: img.Height,
				Codes:  make([]pipeline.CodeResult, 0, len(img.Codes)),
			}
			for _, c := range img.Codes {
				res.Codes = append(res.Codes, c.CodeResult)
			}
			if err := hist.Record(ctx, originCLI, res); err != nil {
				slog.Warn("Failed to record scan history", "file", doc.Filename, "page", page.PageNumber, "error", err)
			}
		}
	}
}

// formatDocuments renders PDF results in the requested format.
func formatDocuments(docs []*pdf.DocumentResult, format pipeline.OutputFormat) (string, error) {
	switch format {
	case pipeline.OutputJSON:
		var v any = docs
		if len(docs) == 1 {
			v = docs[0]
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case pipeline.OutputYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return buf.String(), nil
	case pipeline.OutputCSV:
		return documentsCSV(docs)
	default:
		return documentsText(docs), nil
	}
}

func documentsCSV(docs []*pdf.DocumentResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"file", "page", "image", "value", "charset", "version", "ec_level", "x", "y", "w", "h"})
	for _, doc := range docs {
		for _, page := range doc.Pages {
			for _, img := range page.Images {
				for _, c := range img.Codes {
					_ = w.Write([]string{
						doc.Filename,
						strconv.Itoa(page.PageNumber),
						strconv.Itoa(img.ImageIndex),
						c.Value,
						c.Charset,
						strconv.Itoa(c.Version),
						c.ECLevel,
						strconv.Itoa(c.Box.X),
						strconv.Itoa(c.Box.Y),
						strconv.Itoa(c.Box.W),
						strconv.Itoa(c.Box.H),
					})
				}
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

func documentsText(docs []*pdf.DocumentResult) string {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "File: %s\n", doc.Filename)
		fmt.Fprintf(&sb, "Total Pages: %d\n", doc.TotalPages)
		for _, page := range doc.Pages {
			fmt.Fprintf(&sb, "Page %d: %d code(s)\n", page.PageNumber, page.CodeCount())
			for _, img := range page.Images {
				if img.Error != "" {
					fmt.Fprintf(&sb, "  Image %d (%dx%d): error: %s\n", img.ImageIndex, img.Width, img.Height, img.Error)
					continue
				}
				for _, c := range img.Codes {
					fmt.Fprintf(&sb, "  Image %d: %s\n", img.ImageIndex, c.Value)
				}
			}
		}
	}
	return sb.String()
}
