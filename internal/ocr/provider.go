// Package ocr provides text extraction from images behind a common
// Provider interface.
//
// The default backend is Google Cloud Vision document text detection.
// Document AI and local Tesseract backends can be selected via
// configuration for deployments with different accuracy, cost, or
// connectivity constraints.
//
// Required environment variables for the Google backends:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID (Document AI only)
package ocr

import (
	"context"
	"fmt"

	"ocrapi/internal/config"
)

// RawResult is a provider's unprocessed extraction output.
type RawResult struct {
	// Text is the raw extracted text, before normalization.
	Text string

	// PageConfidences holds one confidence score per page the provider
	// reported, each in [0, 1].
	PageConfidences []float64

	// Language is the detected language code, empty if none was reported.
	Language string
}

// Provider extracts text from image bytes.
type Provider interface {
	// Extract runs OCR over a single image. An image with no readable text
	// yields an empty Text, not an error.
	Extract(ctx context.Context, content []byte) (*RawResult, error)

	// HealthCheck probes the backend and reports reachability plus latency.
	HealthCheck(ctx context.Context) (ok bool, latencyMs int64)

	// Close releases the underlying client, if any.
	Close() error
}

// NewProvider constructs the backend selected by cfg.OCRProvider.
// Clients that need remote credentials connect lazily on first use.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.OCRProvider {
	case config.ProviderVision:
		return NewGoogleVisionProvider(), nil
	case config.ProviderDocumentAI:
		return NewDocumentAIProvider(DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		}), nil
	case config.ProviderTesseract:
		return NewTesseractProvider(), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider: %s", cfg.OCRProvider)
	}
}
