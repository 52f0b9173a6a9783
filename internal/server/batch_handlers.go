package server

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// maxBatchItems bounds the number of images in one batch request.
const maxBatchItems = 20

// BatchDecodeResponse represents the response for batch processing.
type BatchDecodeResponse struct {
	Success bool                   `json:"success"`
	Results []BatchItemResult      `json:"results"`
	Summary BatchProcessingSummary `json:"summary"`
}

// BatchItemResult represents a single image in a batch.
type BatchItemResult struct {
	Name      string                    `json:"name"`
	Success   bool                      `json:"success"`
	Result    *pipeline.ScanImageResult `json:"result,omitempty"`
	Error     string                    `json:"error,omitempty"`
	ErrorKind string                    `json:"error_kind,omitempty"`
	Duration  float64                   `json:"duration_seconds"`
}

// BatchProcessingSummary provides summary statistics for batch processing.
type BatchProcessingSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	Codes         int     `json:"codes"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// decodeBatchHandler scans every file uploaded under "images". One
// unreadable or codeless image does not fail the others.
func (s *Server) decodeBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["images"]
	}
	if len(files) == 0 {
		s.writeErrorResponse(w, "No images provided in batch request", http.StatusBadRequest)
		return
	}
	if len(files) > maxBatchItems {
		s.writeErrorResponse(w, "Batch size too large", http.StatusBadRequest)
		return
	}

	start := time.Now()
	results, summary := s.processBatchRequest(r, files)
	totalDuration := time.Since(start)

	summary.TotalDuration = totalDuration.Seconds()
	summary.AvgItemTime = summary.TotalDuration / float64(summary.TotalItems)

	decodeRequestsTotal.WithLabelValues("batch", "success").Inc()
	decodeDuration.WithLabelValues("batch").Observe(totalDuration.Seconds())

	s.writeJSON(w, http.StatusOK, BatchDecodeResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	})
}

// processBatchRequest scans the uploads in order.
func (s *Server) processBatchRequest(r *http.Request, files []*multipart.FileHeader) ([]BatchItemResult, BatchProcessingSummary) {
	results := make([]BatchItemResult, 0, len(files))
	summary := BatchProcessingSummary{TotalItems: len(files)}

	for _, f := range files {
		result := s.processBatchImage(r, f)
		results = append(results, result)
		if result.Success {
			summary.Successful++
			summary.Codes += len(result.Result.Codes)
		} else {
			summary.Failed++
		}
	}
	return results, summary
}

// processBatchImage scans a single image of a batch request.
func (s *Server) processBatchImage(r *http.Request, fh *multipart.FileHeader) BatchItemResult {
	result := BatchItemResult{Name: fh.Filename}

	file, err := fh.Open()
	if err != nil {
		result.Error = "failed to open upload: " + err.Error()
		return result
	}
	defer func() { _ = file.Close() }()

	img, err := s.readImagePart(file, fh)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImageContext(ctx, img)
	result.Duration = time.Since(start).Seconds()
	decodeRequestsTotal.WithLabelValues("batch_image", decodeStatus(err)).Inc()
	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = errorKind(err)
		return result
	}

	res.Source = fh.Filename
	pipeline.SortCodesTopLeft(res)
	codesPerImage.WithLabelValues("batch_image").Observe(float64(len(res.Codes)))
	s.recordHistory(r.Context(), originServer, res)

	result.Success = true
	result.Result = res
	return result
}
