package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/server"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

func newServeCmd(a *app) *cobra.Command {
	d := config.DefaultConfig().Server
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the QR scanning API",
		Long: `Start an HTTP server that provides REST and WebSocket endpoints for QR
code scanning.

The server provides the following endpoints:
  POST /decode        - Decode an uploaded image (multipart field "image")
  POST /decode/batch  - Decode several uploaded images (field "images")
  POST /decode/pdf    - Decode the images of an uploaded PDF (field "pdf")
  GET  /ws/decode     - WebSocket: binary image frames in, JSON results out
  GET  /history       - Recent scans when history is enabled
  GET  /health        - Health check endpoint
  GET  /version       - Build information
  GET  /metrics       - Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --port 8080
  qrscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	addScanFlags(cmd)
	f := cmd.Flags()
	f.StringP("host", "H", d.Host, "server host")
	f.IntP("port", "p", d.Port, "server port")
	f.String("cors-origin", d.CORSOrigin, "CORS allowed origins")
	f.Int64("max-upload-size", d.MaxUploadMB, "maximum upload size in MB")
	f.Int("timeout", d.TimeoutSec, "request timeout in seconds")
	f.Int("shutdown-timeout", d.ShutdownTimeout, "shutdown timeout in seconds")
	f.Bool("overlay-enable", d.OverlayEnabled, "enable overlay image responses")
	f.Bool("rate-limit-enabled", d.RateLimit.Enabled, "enable rate limiting")
	f.Int("requests-per-minute", d.RateLimit.RequestsPerMinute, "maximum requests per minute per client")
	f.Int("requests-per-hour", d.RateLimit.RequestsPerHour, "maximum requests per hour per client")
	f.Int64("max-data-per-minute", d.RateLimit.MaxDataPerMinute, "maximum upload bytes per minute per client")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	cfg := a.cfg
	sc := cfg.Server

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pl, err := cfg.NewPipelineBuilder().Build()
	if err != nil {
		return fmt.Errorf("failed to build scan pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	hist, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(hist)

	scanServer, err := server.NewServer(server.Config{
		Host:           sc.Host,
		Port:           sc.Port,
		CORSOrigin:     sc.CORSOrigin,
		MaxUploadMB:    sc.MaxUploadMB,
		TimeoutSec:     sc.TimeoutSec,
		Pipeline:       pl,
		PDF:            cfg.ToPDFConfig(),
		History:        hist,
		OverlayEnabled: sc.OverlayEnabled,
		RateLimit: server.RateLimitConfig{
			Enabled:           sc.RateLimit.Enabled,
			RequestsPerMinute: sc.RateLimit.RequestsPerMinute,
			RequestsPerHour:   sc.RateLimit.RequestsPerHour,
			MaxDataPerMinute:  sc.RateLimit.MaxDataPerMinute,
		},
		Version: version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = scanServer.Close() }()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", sc.Host, sc.Port),
		Handler:           scanServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(sc.TimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(sc.TimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting QR scan server", "host", sc.Host, "port", sc.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", sc.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Graceful shutdown completed")

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}
