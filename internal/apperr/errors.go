// Package apperr defines the error taxonomy shared by the validation,
// OCR, and HTTP layers.
//
// Every failure that can reach a caller is an *AppError carrying a stable
// machine-readable code, a human message, an HTTP status, and a structured
// details map. Codes are part of the public API contract and must not change.
package apperr

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
)

// Stable error codes returned to callers.
const (
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedFileType  = "UNSUPPORTED_FILE_TYPE"
	CodeInvalidFile          = "INVALID_FILE"
	CodeOCRProcessing        = "OCR_PROCESSING_ERROR"
	CodeNoTextFound          = "NO_TEXT_FOUND"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeInternal             = "INTERNAL_ERROR"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrNoTextFound marks the soft "no text in image" outcome. It is the
	// only taxonomy member recovered into a success-shaped response.
	ErrNoTextFound = errors.New("no text could be detected in the uploaded image")

	// ErrOCRFailed is the underlying error for provider/API failures.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials are
	// configured in the environment.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// AppError is a typed failure with a stable code and transport mapping.
type AppError struct {
	// Code is the machine-readable error code (e.g. FILE_TOO_LARGE).
	Code string

	// Message is the human-readable description.
	Message string

	// Status is the HTTP status the error maps to at the boundary.
	Status int

	// Details carries structured context for programmatic callers.
	Details map[string]any

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements error matching against the underlying sentinel.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// FileTooLarge reports an upload exceeding the configured size limit.
// Sizes are reported in MB, actual rounded to 2 decimals.
func FileTooLarge(maxSizeMB int, actualBytes int) *AppError {
	actualMB := math.Round(float64(actualBytes)/(1024*1024)*100) / 100
	return &AppError{
		Code:    CodeFileTooLarge,
		Message: fmt.Sprintf("File size exceeds maximum allowed size of %dMB", maxSizeMB),
		Status:  http.StatusBadRequest,
		Details: map[string]any{
			"max_size_mb":    maxSizeMB,
			"actual_size_mb": actualMB,
		},
	}
}

// UnsupportedFileType reports a disallowed extension or sniffed MIME type.
func UnsupportedFileType(receivedType string, allowedTypes []string) *AppError {
	return &AppError{
		Code:    CodeUnsupportedFileType,
		Message: fmt.Sprintf("File type '%s' is not supported", receivedType),
		Status:  http.StatusBadRequest,
		Details: map[string]any{
			"received_type": receivedType,
			"allowed_types": allowedTypes,
		},
	}
}

// InvalidFile reports bytes that pass type checks but fail image decoding.
func InvalidFile(reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidFile,
		Message: fmt.Sprintf("Invalid file: %s", reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"reason": reason},
	}
}

// OCRProcessing wraps a provider or client-construction failure.
func OCRProcessing(message string, err error) *AppError {
	details := map[string]any{}
	if err != nil {
		details["error"] = err.Error()
	}
	return &AppError{
		Code:    CodeOCRProcessing,
		Message: message,
		Status:  http.StatusInternalServerError,
		Details: details,
		Err:     ErrOCRFailed,
	}
}

// NoTextFound marks an image the provider read successfully but found no
// text in. Maps to HTTP 200: callers receive a success-shaped response.
func NoTextFound() *AppError {
	return &AppError{
		Code:    CodeNoTextFound,
		Message: ErrNoTextFound.Error(),
		Status:  http.StatusOK,
		Details: map[string]any{},
		Err:     ErrNoTextFound,
	}
}

// AuthenticationFailed covers missing, malformed, expired, and invalid
// credentials alike.
func AuthenticationFailed(message string) *AppError {
	if message == "" {
		message = "Authentication failed"
	}
	return &AppError{
		Code:    CodeAuthenticationFailed,
		Message: message,
		Status:  http.StatusUnauthorized,
		Details: map[string]any{},
	}
}

// RateLimitExceeded reports request throttling.
func RateLimitExceeded(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:    CodeRateLimitExceeded,
		Message: "Too many requests. Please try again later.",
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"retry_after_seconds": retryAfterSeconds},
	}
}

// Internal labels an unclassified failure. Used for batch items whose error
// is not an *AppError; the message is preserved, no stack leaks.
func Internal(err error) *AppError {
	msg := "internal error"
	details := map[string]any{}
	if err != nil {
		msg = err.Error()
		details["error"] = err.Error()
	}
	return &AppError{
		Code:    CodeInternal,
		Message: msg,
		Status:  http.StatusInternalServerError,
		Details: details,
		Err:     err,
	}
}

// AsAppError converts any error into an *AppError, mapping unclassified
// errors to INTERNAL_ERROR.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsSoft reports whether the error is the recoverable NO_TEXT_FOUND outcome.
func IsSoft(err error) bool {
	return errors.Is(err, ErrNoTextFound)
}

// FormatAllowed renders an allow-list for log and message output.
func FormatAllowed(allowed []string) string {
	return strings.Join(allowed, ", ")
}
