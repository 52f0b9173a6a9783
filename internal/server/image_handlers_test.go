package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

func TestDecodeHandler_DecodesSymbol(t *testing.T) {
	s := newTestServer(t, nil)

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "code.png", symbolPNG(t, "hello server")}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Codes, 1)
	assert.Equal(t, "hello server", resp.Result.Codes[0].Value)
	assert.Equal(t, "code.png", resp.Result.Source)
}

func TestDecodeHandler_Formats(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("text", func(t *testing.T) {
		req := createMultipartRequest(t, "/decode", []formFile{{"image", "a.png", symbolPNG(t, "plain text")}},
			map[string]string{"format": "text"})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "plain text", rec.Body.String())
	})

	t.Run("csv", func(t *testing.T) {
		req := createMultipartRequest(t, "/decode?format=csv", []formFile{{"image", "a.png", symbolPNG(t, "csv value")}}, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "csv value")
	})

	t.Run("overlay", func(t *testing.T) {
		data := symbolPNG(t, "overlay")
		req := createMultipartRequest(t, "/decode", []formFile{{"image", "a.png", data}},
			map[string]string{"format": "overlay", "outline": "#00ff00"})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Positive(t, img.Bounds().Dx())
	})
}

func TestDecodeHandler_OverlayDisabled(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.OverlayEnabled = false })

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "a.png", symbolPNG(t, "x")}},
		map[string]string{"format": "overlay"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecodeHandler_NoSymbol(t *testing.T) {
	s := newTestServer(t, nil)

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "blank.png", blankPNG(t, 120)}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "not found", resp.ErrorKind)
}

func TestDecodeHandler_TinyImage(t *testing.T) {
	s := newTestServer(t, nil)

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "tiny.png", blankPNG(t, 10)}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDecodeHandler_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decode", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		req := createMultipartRequest(t, "/decode", nil, map[string]string{"format": "json"})
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "No image file provided")
	})

	t.Run("not an image", func(t *testing.T) {
		req := createMultipartRequest(t, "/decode", []formFile{{"image", "x.png", []byte("not an image")}}, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid image format")
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader("raw"))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDecodeHandler_TooLarge(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MaxUploadMB = 1 })

	big := bytes.Repeat([]byte{0xff}, 2*1024*1024)
	req := createMultipartRequest(t, "/decode", []formFile{{"image", "big.png", big}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecodeHandler_ScannerError(t *testing.T) {
	s := newTestServer(t, nil)
	stub := &stubScanner{err: qrerr.Checksum("reedsolomon", "too many errors")}
	s.pipeline = stub

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "a.png", blankPNG(t, 64)}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 1, stub.calls)
	assert.Contains(t, rec.Body.String(), `"error_kind":"checksum error"`)
}

func TestDecodeHandler_SortsCodes(t *testing.T) {
	s := newTestServer(t, nil)
	s.pipeline = &stubScanner{result: &pipeline.ScanImageResult{
		Width: 64, Height: 64,
		Codes: []pipeline.CodeResult{
			{Value: "second", Box: pipeline.Box{X: 40, Y: 40, W: 10, H: 10}},
			{Value: "first", Box: pipeline.Box{X: 0, Y: 0, W: 10, H: 10}},
		},
	}}

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "a.png", blankPNG(t, 64)}}, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result.Codes, 2)
	assert.Equal(t, "first", resp.Result.Codes[0].Value)
}

func TestDecodeStatus(t *testing.T) {
	assert.Equal(t, "success", decodeStatus(nil))
	assert.Equal(t, "not_found", decodeStatus(qrerr.NotFound("detect", "none")))
	assert.Equal(t, "unreadable", decodeStatus(qrerr.Format("parse", "bad")))
	assert.Equal(t, "unreadable", decodeStatus(qrerr.Checksum("rs", "bad")))
	assert.Equal(t, "error", decodeStatus(assert.AnError))
}
