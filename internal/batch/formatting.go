package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// fileEntry is one file of the structured batch report.
type fileEntry struct {
	File  string                    `json:"file" yaml:"file"`
	Scan  *pipeline.ScanImageResult `json:"scan,omitempty" yaml:"scan,omitempty"`
	Error string                    `json:"error,omitempty" yaml:"error,omitempty"`
}

type batchReport struct {
	Images []fileEntry `json:"images" yaml:"images"`
}

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(r *Result, format string) (string, error) {
	f, err := pipeline.ParseOutputFormat(format)
	if err != nil {
		return "", err
	}
	switch f {
	case pipeline.OutputJSON:
		return formatJSON(r)
	case pipeline.OutputYAML:
		return formatYAML(r)
	case pipeline.OutputCSV:
		return formatCSV(r)
	default:
		return formatText(r), nil
	}
}

func buildReport(r *Result) batchReport {
	report := batchReport{Images: make([]fileEntry, len(r.ImagePaths))}
	for i, path := range r.ImagePaths {
		entry := fileEntry{File: path}
		if i < len(r.Results) {
			entry.Scan = r.Results[i]
		}
		if i < len(r.Errors) && r.Errors[i] != nil {
			entry.Error = r.Errors[i].Error()
		}
		report.Images[i] = entry
	}
	return report
}

// formatJSON formats results as JSON.
func formatJSON(r *Result) (string, error) {
	bts, err := json.MarshalIndent(buildReport(r), "", "  ")
	return string(bts), err
}

func formatYAML(r *Result) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(buildReport(r)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatCSV writes one row per decoded code. Files without codes get a
// single row carrying the error.
func formatCSV(r *Result) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{
		"file", "code_index", "value", "charset", "version", "ec_level", "x", "y", "width", "height", "error",
	}); err != nil {
		return "", err
	}

	for _, entry := range buildReport(r).Images {
		if entry.Scan == nil || len(entry.Scan.Codes) == 0 {
			if err := writer.Write([]string{entry.File, "", "", "", "", "", "", "", "", "", entry.Error}); err != nil {
				return "", err
			}
			continue
		}
		for j, code := range entry.Scan.Codes {
			if err := writer.Write([]string{
				entry.File,
				strconv.Itoa(j),
				code.Value,
				code.Charset,
				strconv.Itoa(code.Version),
				code.ECLevel,
				strconv.Itoa(code.Box.X),
				strconv.Itoa(code.Box.Y),
				strconv.Itoa(code.Box.W),
				strconv.Itoa(code.Box.H),
				"",
			}); err != nil {
				return "", err
			}
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText lists each file under a "# path" header.
func formatText(r *Result) string {
	var output strings.Builder
	for i, entry := range buildReport(r).Images {
		if i > 0 {
			output.WriteString("\n")
		}
		output.WriteString(fmt.Sprintf("# %s\n", entry.File))
		if entry.Error != "" {
			output.WriteString(fmt.Sprintf("error: %s\n", entry.Error))
			continue
		}
		if text := pipeline.ToPlainTextImage(entry.Scan); text != "" {
			output.WriteString(text)
			output.WriteString("\n")
		}
	}
	return output.String()
}
