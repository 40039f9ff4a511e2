package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ocrapi/internal/apperr"
)

func TestFileTooLarge(t *testing.T) {
	err := apperr.FileTooLarge(10, 11*1024*1024)

	assert.Equal(t, apperr.CodeFileTooLarge, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, 10, err.Details["max_size_mb"])
	assert.Equal(t, 11.0, err.Details["actual_size_mb"])
}

func TestFileTooLargeRoundsActualSize(t *testing.T) {
	// 10.756... MB rounds to 2 decimals.
	err := apperr.FileTooLarge(10, 11278756)
	assert.Equal(t, 10.76, err.Details["actual_size_mb"])
}

func TestUnsupportedFileType(t *testing.T) {
	err := apperr.UnsupportedFileType("image/gif", []string{"image/jpeg", "image/png"})

	assert.Equal(t, apperr.CodeUnsupportedFileType, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "image/gif", err.Details["received_type"])
	assert.Equal(t, []string{"image/jpeg", "image/png"}, err.Details["allowed_types"])
	assert.Contains(t, err.Message, "image/gif")
}

func TestInvalidFile(t *testing.T) {
	err := apperr.InvalidFile("truncated JPEG data")

	assert.Equal(t, apperr.CodeInvalidFile, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "truncated JPEG data", err.Details["reason"])
}

func TestOCRProcessing(t *testing.T) {
	cause := fmt.Errorf("rpc error: deadline exceeded")
	err := apperr.OCRProcessing("Failed to extract text from image", cause)

	assert.Equal(t, apperr.CodeOCRProcessing, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, cause.Error(), err.Details["error"])
	assert.ErrorIs(t, err, apperr.ErrOCRFailed)
}

func TestNoTextFoundIsSoft(t *testing.T) {
	err := apperr.NoTextFound()

	assert.Equal(t, apperr.CodeNoTextFound, err.Code)
	assert.Equal(t, http.StatusOK, err.Status)
	assert.True(t, apperr.IsSoft(err))
	assert.False(t, apperr.IsSoft(apperr.InvalidFile("x")))
}

func TestAuthenticationFailed(t *testing.T) {
	err := apperr.AuthenticationFailed("")
	assert.Equal(t, apperr.CodeAuthenticationFailed, err.Code)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
	assert.Equal(t, "Authentication failed", err.Message)

	expired := apperr.AuthenticationFailed("Token has expired")
	assert.Equal(t, apperr.CodeAuthenticationFailed, expired.Code)
	assert.Equal(t, http.StatusUnauthorized, expired.Status)
}

func TestRateLimitExceeded(t *testing.T) {
	err := apperr.RateLimitExceeded(30)
	assert.Equal(t, apperr.CodeRateLimitExceeded, err.Code)
	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, 30, err.Details["retry_after_seconds"])
}

func TestAsAppErrorPassesThroughTyped(t *testing.T) {
	typed := apperr.FileTooLarge(10, 1)
	wrapped := fmt.Errorf("handler: %w", typed)

	got := apperr.AsAppError(wrapped)
	assert.Equal(t, apperr.CodeFileTooLarge, got.Code)
}

func TestAsAppErrorWrapsUnclassified(t *testing.T) {
	got := apperr.AsAppError(errors.New("something unexpected"))

	assert.Equal(t, apperr.CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "something unexpected", got.Message)
}
