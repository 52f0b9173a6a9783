package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
)

// decodePDFHandler scans the images embedded in an uploaded PDF.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, name, pageRange, creds, err := s.parsePDFRequest(w, r)
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return // error already written
	}

	if _, err := pdf.ParsePageRange(pageRange); err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Invalid page range: %v", err), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.documents.ProcessBytes(ctx, name, data, pageRange, creds)
	duration := time.Since(start)
	decodeDuration.WithLabelValues("pdf").Observe(duration.Seconds())
	if err != nil {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
		status := http.StatusUnprocessableEntity
		if errors.Is(err, pdf.ErrPasswordRequired) {
			status = http.StatusUnauthorized
		}
		s.writeJSON(w, status, PDFResponse{Success: false, Error: fmt.Sprintf("PDF processing failed: %v", err)})
		return
	}

	decodeRequestsTotal.WithLabelValues("pdf", "success").Inc()
	codesPerImage.WithLabelValues("pdf").Observe(float64(len(res.Codes())))

	s.writePDFResponse(w, r, res)
}

func (s *Server) parsePDFRequest(
	w http.ResponseWriter,
	r *http.Request,
) ([]byte, string, string, *pdf.PasswordCredentials, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return nil, "", "", nil, err
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return nil, "", "", nil, err
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, "", "", nil, errors.New("file too large")
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read PDF data", http.StatusInternalServerError)
		return nil, "", "", nil, err
	}

	var creds *pdf.PasswordCredentials
	if user, owner := r.FormValue("user_password"), r.FormValue("owner_password"); user != "" || owner != "" {
		creds = &pdf.PasswordCredentials{UserPassword: user, OwnerPassword: owner}
	}

	return data, header.Filename, r.FormValue("pages"), creds, nil
}

func (s *Server) writePDFResponse(w http.ResponseWriter, r *http.Request, res *pdf.DocumentResult) {
	if requestFormat(r) == formatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, pdfText(res))
		return
	}
	s.writeJSON(w, http.StatusOK, PDFResponse{Success: true, Result: res})
}

// pdfText renders a plain text summary of a PDF scan.
func pdfText(result *pdf.DocumentResult) string {
	var output strings.Builder

	fmt.Fprintf(&output, "File: %s\n", result.Filename)
	fmt.Fprintf(&output, "Total Pages: %d\n\n", result.TotalPages)

	for _, page := range result.Pages {
		fmt.Fprintf(&output, "Page %d: %d code(s)\n", page.PageNumber, page.CodeCount())
		for _, img := range page.Images {
			if img.Error != "" {
				fmt.Fprintf(&output, "  Image %d (%dx%d): error: %s\n", img.ImageIndex, img.Width, img.Height, img.Error)
				continue
			}
			for _, code := range img.Codes {
				fmt.Fprintf(&output, "  Image %d: %s\n", img.ImageIndex, code.Value)
			}
		}
	}
	return output.String()
}
