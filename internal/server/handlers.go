package server

import (
	"mime/multipart"
	"net/http"
	"time"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
	"ocrapi/internal/pipeline"
	"ocrapi/internal/validator"
)

const noTextMessage = "No text could be detected in the uploaded image"

// handleExtract serves POST /api/v1/ocr/extract: one multipart image under
// the "image" field.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.WithRequestID(RequestIDFromContext(r.Context()))

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, apperr.InvalidFile("no image file provided"), time.Since(start).Milliseconds())
		return
	}
	defer file.Close()

	log.Info().
		Str("filename", header.Filename).
		Str("content_type", header.Header.Get("Content-Type")).
		Msg("OCR request started")

	result, err := s.pipeline.Process(r.Context(), validator.UploadedFile{
		Filename:         header.Filename,
		DeclaredMimeType: header.Header.Get("Content-Type"),
		Reader:           file,
	})
	if err != nil {
		appErr := apperr.AsAppError(err)
		log.Warn().
			Str("error_code", appErr.Code).
			Str("error_message", appErr.Message).
			Msg("OCR request failed")
		writeError(w, r, appErr, time.Since(start).Milliseconds())
		return
	}

	resp := ExtractResponse{
		Success:          true,
		Text:             result.Text,
		Confidence:       result.Confidence,
		ProcessingTimeMs: result.ProcessingTimeMs,
	}
	if result.NoText {
		resp.Message = noTextMessage
	}

	log.Info().
		Int("word_count", result.WordCount).
		Float64("confidence", result.Confidence).
		Bool("cache_hit", result.CacheHit).
		Int64("processing_time_ms", result.ProcessingTimeMs).
		Msg("OCR request completed")

	writeJSON(w, http.StatusOK, resp)
}

// batchResponse wraps the report so the envelope carries the success flag.
type batchResponse struct {
	Success bool `json:"success"`
	*pipeline.BatchReport
}

// handleExtractBatch serves POST /api/v1/ocr/extract/batch: multiple
// multipart images under the "images" field. Per-item failures never change
// the 200 transport status.
func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.WithRequestID(RequestIDFromContext(r.Context()))

	if err := r.ParseMultipartForm(int64(s.cfg.MaxFileSizeBytes()) * 2); err != nil {
		writeError(w, r, apperr.InvalidFile("invalid multipart form"), time.Since(start).Milliseconds())
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeError(w, r, apperr.InvalidFile("no image files provided"), time.Since(start).Milliseconds())
		return
	}

	files := make([]validator.UploadedFile, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, r, apperr.InvalidFile("uploaded file could not be opened"), time.Since(start).Milliseconds())
			return
		}
		opened = append(opened, f)
		files = append(files, validator.UploadedFile{
			Filename:         header.Filename,
			DeclaredMimeType: header.Header.Get("Content-Type"),
			Reader:           f,
		})
	}

	log.Info().Int("image_count", len(files)).Msg("Batch OCR request started")

	report := s.pipeline.ProcessBatch(r.Context(), files)

	writeJSON(w, http.StatusOK, batchResponse{Success: true, BatchReport: report})
}

// handleCacheStats serves GET /api/v1/ocr/cache/stats.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.pipeline.CacheStats(r.Context())
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady is the readiness probe: it checks the OCR backend is
// reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ok, latencyMs := s.provider.HealthCheck(r.Context())
	status := http.StatusOK
	state := "ready"
	if !ok {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	writeJSON(w, status, map[string]any{
		"status": state,
		"provider": map[string]any{
			"ok":         ok,
			"latency_ms": latencyMs,
		},
	})
}
