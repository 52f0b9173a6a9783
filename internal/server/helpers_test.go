package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// newTestServer builds a server around the default pipeline.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     30,
		OverlayEnabled: true,
		Version:        "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// symbolPNG renders a QR symbol carrying text as PNG bytes.
func symbolPNG(t *testing.T, text string) []byte {
	t.Helper()
	cfg := testutil.DefaultSymbolConfig()
	cfg.Text = text
	cfg.Version = 0
	img, err := testutil.RenderSymbol(cfg)
	require.NoError(t, err)
	data, err := encodeImageToPNG(img)
	require.NoError(t, err)
	return data
}

// blankPNG is a white image with no symbol in it.
func blankPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	data, err := encodeImageToPNG(img)
	require.NoError(t, err)
	return data
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	return buf.Bytes(), err
}

type formFile struct {
	field, name string
	data        []byte
}

// createMultipartRequest creates a multipart POST with files and fields.
func createMultipartRequest(t *testing.T, path string, files []formFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// stubScanner returns fixed results without decoding anything.
type stubScanner struct {
	result *pipeline.ScanImageResult
	err    error
	calls  int
}

func (m *stubScanner) ProcessImageContext(ctx context.Context, img image.Image) (*pipeline.ScanImageResult, error) {
	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.result, m.err
}

func (m *stubScanner) Close() error { return nil }

// stubDocuments returns a fixed PDF result.
type stubDocuments struct {
	result    *pdf.DocumentResult
	err       error
	gotPages  string
	gotCreds  *pdf.PasswordCredentials
	gotName   string
	gotLength int
}

func (m *stubDocuments) ProcessBytes(
	_ context.Context,
	name string,
	data []byte,
	pageRange string,
	creds *pdf.PasswordCredentials,
) (*pdf.DocumentResult, error) {
	m.gotName, m.gotLength, m.gotPages, m.gotCreds = name, len(data), pageRange, creds
	return m.result, m.err
}
