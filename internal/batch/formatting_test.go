package batch

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func sampleResult() *Result {
	ok := &pipeline.ScanImageResult{
		Source: "/scans/one.png",
		Width:  100,
		Height: 100,
		Codes: []pipeline.CodeResult{
			{Type: "qr", Value: "first", Charset: "UTF-8", Version: 1, ECLevel: "M", Box: pipeline.Box{X: 1, Y: 2, W: 30, H: 30}},
			{Type: "qr", Value: "second", Charset: "US-ASCII", Version: 2, ECLevel: "L", Box: pipeline.Box{X: 50, Y: 2, W: 40, H: 40}},
		},
	}
	return &Result{
		Results:     []*pipeline.ScanImageResult{ok, nil},
		Errors:      []error{nil, errors.New("no symbol")},
		ImagePaths:  []string{"/scans/one.png", "/scans/two.png"},
		Duration:    2 * time.Second,
		WorkerCount: 2,
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleResult().FormatResults("text")
	require.NoError(t, err)
	assert.Equal(t, "# /scans/one.png\nfirst\nsecond\n\n# /scans/two.png\nerror: no symbol\n", out)
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleResult().FormatResults("json")
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Images, 2)
	assert.Equal(t, "/scans/one.png", report.Images[0].File)
	require.NotNil(t, report.Images[0].Scan)
	assert.Equal(t, "second", report.Images[0].Scan.Codes[1].Value)
	assert.Nil(t, report.Images[1].Scan)
	assert.Equal(t, "no symbol", report.Images[1].Error)
}

func TestFormatResults_YAML(t *testing.T) {
	out, err := sampleResult().FormatResults("yml")
	require.NoError(t, err)

	var report batchReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Len(t, report.Images, 2)
	assert.Equal(t, "first", report.Images[0].Scan.Codes[0].Value)
	assert.Equal(t, "no symbol", report.Images[1].Error)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleResult().FormatResults("csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "file", rows[0][0])
	assert.Equal(t, []string{"/scans/one.png", "1", "second", "US-ASCII", "2", "L", "50", "2", "40", "40", ""}, rows[2])
	assert.Equal(t, "/scans/two.png", rows[3][0])
	assert.Equal(t, "no symbol", rows[3][10])
}

func TestFormatResults_Unknown(t *testing.T) {
	_, err := sampleResult().FormatResults("xml")
	assert.Error(t, err)
}

func TestSaveResultsAndStats(t *testing.T) {
	r := sampleResult()
	var out bytes.Buffer
	require.NoError(t, r.SaveResults(&out, "text", "", false))
	assert.True(t, strings.HasPrefix(out.String(), "# /scans/one.png"))

	out.Reset()
	r.PrintStats(&out, false)
	s := out.String()
	assert.Contains(t, s, "Total images: 2")
	assert.Contains(t, s, "Decoded: 1")
	assert.Contains(t, s, "Failed: 1")
	assert.Contains(t, s, "Codes: 2")
	assert.Contains(t, s, "Throughput: 1.0 images/sec")

	out.Reset()
	r.PrintStats(&out, true)
	assert.Empty(t, out.String())
}
