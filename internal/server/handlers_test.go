package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

func TestNewServer_RejectsNonPositiveUpload(t *testing.T) {
	_, err := NewServer(Config{MaxUploadMB: 0})
	require.Error(t, err)
}

func TestNewServer_UsesSuppliedPipeline(t *testing.T) {
	pl, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)
	defer func() { _ = pl.Close() }()

	s, err := NewServer(Config{MaxUploadMB: 1, Pipeline: pl})
	require.NoError(t, err)
	assert.False(t, s.ownsPipeline)
	assert.Nil(t, s.history)
	assert.Nil(t, s.rateLimiter)
	require.NoError(t, s.Close())
}

func TestNewServer_RateLimiterEnabled(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 5}
	})
	require.NotNil(t, s.rateLimiter)
	assert.Equal(t, 5, s.rateLimiter.requestsPerMinute)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.NotEmpty(t, resp.Time)
	require.NotNil(t, resp.Memory)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Version)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qrscan_websocket_active_connections")
}

func TestHistoryHandler_Disabled(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryHandler_RecordsDecodes(t *testing.T) {
	h, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	s := newTestServer(t, func(c *Config) { c.History = h })
	handler := s.Handler()

	req := createMultipartRequest(t, "/decode", []formFile{{"image", "ticket.png", symbolPNG(t, "ticket 42")}}, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "ticket 42", resp.Entries[0].Value)
	assert.Equal(t, "ticket.png", resp.Entries[0].Source)
	assert.Equal(t, originServer, resp.Entries[0].Origin)
}

func TestHistoryHandler_EmptyAndInvalidLimit(t *testing.T) {
	h, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	s := newTestServer(t, func(c *Config) { c.History = h })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"count":0}`, rec.Body.String())

	for _, limit := range []string{"abc", "0", "-3"} {
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", qrerr.NotFound("detect", "no finder patterns"), http.StatusUnprocessableEntity},
		{"format", fmt.Errorf("decode failed: %w", qrerr.Format("parse", "bad format info")), http.StatusUnprocessableEntity},
		{"checksum", qrerr.Checksum("rs", "too many errors"), http.StatusUnprocessableEntity},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", fmt.Errorf("scan: %w", context.Canceled), http.StatusServiceUnavailable},
		{"small image", &utils.ImageProcessingError{Operation: "validate", Err: errors.New("too small")}, http.StatusUnprocessableEntity},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not found", errorKind(qrerr.NotFound("detect", "none")))
	assert.Equal(t, "checksum error", errorKind(qrerr.Checksum("rs", "bad")))
	assert.Empty(t, errorKind(errors.New("plain")))
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0xff, 0x00, 0x80, 0xff}, parseHexColor("#ff0080"))
	assert.Equal(t, color.RGBA{0x12, 0x34, 0x56, 0xff}, parseHexColor("123456"))
	assert.Nil(t, parseHexColor(""))
	assert.Nil(t, parseHexColor("#fff"))
	assert.Nil(t, parseHexColor("zzzzzz"))
}

func TestRequestFormat(t *testing.T) {
	assert.Equal(t, formatJSON, requestFormat(httptest.NewRequest(http.MethodGet, "/decode", nil)))
	assert.Equal(t, formatCSV, requestFormat(httptest.NewRequest(http.MethodGet, "/decode?format=csv", nil)))
}
