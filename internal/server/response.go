package server

import (
	"encoding/json"
	"net/http"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
)

// ExtractResponse is the single-image success shape. Message is set only
// for the no-text outcome.
type ExtractResponse struct {
	Success          bool    `json:"success"`
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Message          string  `json:"message,omitempty"`
}

// ErrorDetail carries the stable code, human message, and structured
// details of a failure.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// ResponseMetadata accompanies every error response.
type ResponseMetadata struct {
	RequestID        string `json:"request_id"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success  bool             `json:"success"`
	Error    ErrorDetail      `json:"error"`
	Metadata ResponseMetadata `json:"metadata"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithComponent("server").Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError renders any error through the taxonomy. Unclassified errors
// become INTERNAL_ERROR; no stack ever reaches the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error, processingTimeMs int64) {
	appErr := apperr.AsAppError(err)
	writeJSON(w, appErr.Status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Metadata: ResponseMetadata{
			RequestID:        RequestIDFromContext(r.Context()),
			ProcessingTimeMs: processingTimeMs,
		},
	})
}
