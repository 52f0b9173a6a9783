package server

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

const originServer = "server"

// decodeHandler scans one uploaded image.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, name, err := s.parseImageRequest(w, r)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return // error already written
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImageContext(ctx, img)
	duration := time.Since(start)
	decodeDuration.WithLabelValues("image").Observe(duration.Seconds())
	decodeRequestsTotal.WithLabelValues("image", decodeStatus(err)).Inc()
	if err != nil {
		slog.Debug("Decode failed", "file", name, "error", err)
		s.writeScanError(w, err)
		return
	}

	res.Source = name
	pipeline.SortCodesTopLeft(res)
	codesPerImage.WithLabelValues("image").Observe(float64(len(res.Codes)))
	s.recordHistory(r.Context(), originServer, res)

	s.writeImageResponse(w, r, img, res)
}

// parseImageRequest reads the multipart "image" field.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return nil, "", err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, "", err
	}
	defer func() { _ = file.Close() }()

	img, err := s.readImagePart(file, header)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, "", err
	}
	return img, header.Filename, nil
}

// readImagePart decodes one uploaded image file.
func (s *Server) readImagePart(file multipart.File, header *multipart.FileHeader) (image.Image, error) {
	if header.Size > s.maxUploadMB*1024*1024 {
		return nil, errors.New("file too large")
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid image format: %w", err)
	}
	return img, nil
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}

func (s *Server) writeImageResponse(
	w http.ResponseWriter,
	r *http.Request,
	img image.Image,
	res *pipeline.ScanImageResult,
) {
	switch requestFormat(r) {
	case formatCSV:
		out, err := pipeline.ToCSVImages([]*pipeline.ScanImageResult{res})
		if err != nil {
			http.Error(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, out)
	case formatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, pipeline.ToPlainTextImage(res))
	case "overlay":
		s.handleOverlayOutput(w, r, img, res)
	default:
		s.writeJSON(w, http.StatusOK, DecodeResponse{Success: true, Result: res})
	}
}

// handleOverlayOutput renders the decoded symbols onto the upload as PNG.
func (s *Server) handleOverlayOutput(
	w http.ResponseWriter,
	r *http.Request,
	img image.Image,
	res *pipeline.ScanImageResult,
) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	style := pipeline.DefaultOverlayStyle()
	if c := parseHexColor(r.FormValue("outline")); c != nil {
		style.Outline = c
	}
	if c := parseHexColor(r.FormValue("points")); c != nil {
		style.Points = c
	}

	ov := pipeline.RenderOverlay(img, res, style)
	if ov == nil {
		http.Error(w, "overlay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}

// decodeStatus is the metrics label for a scan outcome.
func decodeStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, qrerr.ErrNotFound):
		return "not_found"
	case errors.Is(err, qrerr.ErrFormat), errors.Is(err, qrerr.ErrChecksum):
		return "unreadable"
	}
	return "error"
}
