// Package server exposes the QR scanner over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/qrscan/internal/common"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// scanner defines the methods needed by the server from a pipeline.
type scanner interface {
	ProcessImageContext(ctx context.Context, img image.Image) (*pipeline.ScanImageResult, error)
	Close() error
}

// documentScanner scans uploaded PDF documents.
type documentScanner interface {
	ProcessBytes(ctx context.Context, name string, data []byte, pageRange string,
		creds *pdf.PasswordCredentials) (*pdf.DocumentResult, error)
}

// historyStore records successful scans and lists recent ones.
type historyStore interface {
	Record(ctx context.Context, origin string, res *pipeline.ScanImageResult) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       scanner
	documents      documentScanner
	history        historyStore
	rateLimiter    *RateLimiter
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	version        string
	ownsPipeline   bool
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// Pipeline scans every upload. NewServer builds a default one when nil;
	// the server then owns it and closes it in Close.
	Pipeline *pipeline.Pipeline
	// PDF configures the /decode/pdf processor. Nil means defaults.
	PDF *pdf.ProcessorConfig
	// History records successful scans when set. The caller closes it.
	History *history.History

	OverlayEnabled bool
	RateLimit      RateLimitConfig
	Version        string
}

// RateLimitConfig holds per-client request budgets.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxDataPerMinute  int64
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string              `json:"status"`
	Version string              `json:"version,omitempty"`
	Time    string              `json:"time"`
	Memory  *common.MemoryStats `json:"memory,omitempty"`
}

// VersionResponse is returned by /version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// DecodeResponse wraps a single image scan.
type DecodeResponse struct {
	Success   bool                      `json:"success"`
	Result    *pipeline.ScanImageResult `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind string                    `json:"error_kind,omitempty"`
}

// PDFResponse wraps a PDF scan.
type PDFResponse struct {
	Success bool                `json:"success"`
	Result  *pdf.DocumentResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// HistoryResponse lists recent scans.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	pl, owned := config.Pipeline, false
	if pl == nil {
		var err error
		pl, err = pipeline.NewBuilder().Build()
		if err != nil {
			return nil, fmt.Errorf("build pipeline: %w", err)
		}
		owned = true
	}

	s := &Server{
		pipeline:       pl,
		documents:      pdf.NewProcessorWithConfig(pl, config.PDF),
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
		version:        config.Version,
		ownsPipeline:   owned,
	}
	if config.History != nil {
		s.history = config.History
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxDataPerMinute,
		)
	}
	return s, nil
}

// Close releases the pipeline if NewServer built it.
func (s *Server) Close() error {
	if s.pipeline != nil && s.ownsPipeline {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/version", s.corsMiddleware(s.versionHandler))
	mux.HandleFunc("/history", s.corsMiddleware(s.historyHandler))
	mux.HandleFunc("/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	mux.HandleFunc("/decode/batch", s.corsMiddleware(s.rateLimitMiddleware(s.decodeBatchHandler)))
	mux.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler)))
	mux.HandleFunc("/ws/decode", s.rateLimitMiddleware(s.decodeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
