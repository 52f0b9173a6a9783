package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat names a result serialization.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
	OutputCSV  OutputFormat = "csv"
)

// OutputFormats lists every supported format.
var OutputFormats = []OutputFormat{OutputText, OutputJSON, OutputYAML, OutputCSV}

// ParseOutputFormat accepts the format names case-insensitively; "yml" is
// an alias for yaml and the empty string means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "yaml", "yml":
		return OutputYAML, nil
	case "csv":
		return OutputCSV, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want text, json, yaml or csv)", s)
}

// FormatImages serializes results in the given format. Nil entries are skipped.
func FormatImages(results []*ScanImageResult, format OutputFormat) (string, error) {
	switch format {
	case OutputJSON:
		return ToJSONImages(results)
	case OutputYAML:
		return ToYAMLImages(results)
	case OutputCSV:
		return ToCSVImages(results)
	case OutputText, "":
		return ToPlainTextImages(results), nil
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}

// ToJSONImage serializes a single ScanImageResult to pretty JSON.
func ToJSONImage(res *ScanImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONImages serializes multiple results to pretty JSON.
func ToJSONImages(results []*ScanImageResult) (string, error) {
	b, err := json.MarshalIndent(compact(results), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAMLImages serializes multiple results to YAML.
func ToYAMLImages(results []*ScanImageResult) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(compact(results)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToPlainTextImage returns the decoded values, one per line.
func ToPlainTextImage(res *ScanImageResult) string {
	if res == nil {
		return ""
	}
	lines := make([]string, 0, len(res.Codes))
	for _, c := range res.Codes {
		lines = append(lines, c.Value)
	}
	return strings.Join(lines, "\n")
}

// ToPlainTextImages prefixes each value with its source when there is more
// than one image.
func ToPlainTextImages(results []*ScanImageResult) string {
	results = compact(results)
	if len(results) == 1 {
		return ToPlainTextImage(results[0])
	}
	var sb strings.Builder
	for _, res := range results {
		for _, c := range res.Codes {
			if res.Source != "" {
				sb.WriteString(res.Source)
				sb.WriteString(": ")
			}
			sb.WriteString(c.Value)
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// ToCSVImages exports one row per decoded code with a header.
func ToCSVImages(results []*ScanImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"source", "value", "charset", "version", "ec_level", "mask", "errors_corrected", "x", "y", "w", "h", "rotation"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, res := range compact(results) {
		for _, c := range res.Codes {
			row := []string{
				res.Source,
				c.Value,
				c.Charset,
				strconv.Itoa(c.Version),
				c.ECLevel,
				strconv.Itoa(c.Mask),
				strconv.Itoa(c.ErrorsCorrected),
				strconv.Itoa(c.Box.X),
				strconv.Itoa(c.Box.Y),
				strconv.Itoa(c.Box.W),
				strconv.Itoa(c.Box.H),
				fmt.Sprintf("%.1f", c.Rotation),
			}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// SortCodesTopLeft sorts codes by top-left (y, then x) for readable ordering.
func SortCodesTopLeft(res *ScanImageResult) {
	sort.SliceStable(res.Codes, func(i, j int) bool {
		if res.Codes[i].Box.Y == res.Codes[j].Box.Y {
			return res.Codes[i].Box.X < res.Codes[j].Box.X
		}
		return res.Codes[i].Box.Y < res.Codes[j].Box.Y
	})
}

// ValidateScanImageResult performs simple consistency checks.
func ValidateScanImageResult(res *ScanImageResult) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.Width <= 0 || res.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", res.Width, res.Height)
	}
	for i, c := range res.Codes {
		if c.Box.W < 0 || c.Box.H < 0 {
			return fmt.Errorf("code %d has negative size", i)
		}
		if c.Version < 1 || c.Version > 40 {
			return fmt.Errorf("code %d has version %d", i, c.Version)
		}
		if len(c.Points) < 3 {
			return fmt.Errorf("code %d has %d control points", i, len(c.Points))
		}
	}
	return nil
}

func compact(results []*ScanImageResult) []*ScanImageResult {
	out := make([]*ScanImageResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
