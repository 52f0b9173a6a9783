package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

const (
	formatText = "text"
	formatCSV  = "csv"
	formatJSON = "json"

	maxHistoryLimit = 500
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mem := common.GetMemoryStats()
	response := HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Memory:  &mem,
	}
	s.writeJSON(w, http.StatusOK, response)
}

// versionHandler returns build metadata.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, commit, date := version.Info()
	s.writeJSON(w, http.StatusOK, VersionResponse{Version: v, GitCommit: commit, BuildDate: date})
}

// historyHandler lists the most recent scans, newest first.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		s.writeErrorResponse(w, "History is disabled", http.StatusNotFound)
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to read history: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

// requestContext bounds a scan by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return s.scanContext(r.Context())
}

// recordHistory stores a successful scan. Failures are logged only.
func (s *Server) recordHistory(ctx context.Context, origin string, res *pipeline.ScanImageResult) {
	if s.history == nil || res == nil {
		return
	}
	if err := s.history.Record(ctx, origin, res); err != nil {
		slog.Warn("Failed to record scan history", "origin", origin, "error", err)
	}
}

// statusForError maps scan failures to HTTP status codes. Decode failures
// mean the upload was readable but held no decodable symbol.
func statusForError(err error) int {
	switch {
	case errors.Is(err, qrerr.ErrNotFound), errors.Is(err, qrerr.ErrFormat), errors.Is(err, qrerr.ErrChecksum):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	var ipe *utils.ImageProcessingError
	if errors.As(err, &ipe) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errorKind names the qrerr kind carried by err, if any.
func errorKind(err error) string {
	if kind := qrerr.KindOf(err); kind != 0 {
		return kind.String()
	}
	return ""
}

// parseHexColor parses colors like "#RRGGBB" or "RRGGBB".
func parseHexColor(s string) color.Color {
	if s == "" {
		return nil
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return nil
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return nil
	}
	return color.RGBA{uint8(rv), uint8(gv), uint8(bv), 255} //nolint:gosec // G115: two hex digits each
}

// requestFormat reads the output format from the form or query string.
func requestFormat(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		return formatJSON
	}
	return format
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, DecodeResponse{Success: false, Error: message})
}

// writeScanError writes a failed decode with its classified kind.
func (s *Server) writeScanError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusForError(err), DecodeResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: errorKind(err),
	})
}
