package ocr

import (
	"context"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
)

// TesseractProvider implements Provider using a local Tesseract install.
// Free and offline; accuracy is below the cloud backends.
type TesseractProvider struct {
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// NewTesseractProvider creates the provider. Requires the tesseract binary
// and language data to be installed on the host.
func NewTesseractProvider() *TesseractProvider {
	return &TesseractProvider{
		clientFactory: gosseract.NewClient,
		log:           logger.WithComponent("tesseract"),
	}
}

// Extract runs local Tesseract OCR over a single image. Confidence is the
// mean of Tesseract's word-level scores.
func (t *TesseractProvider) Extract(ctx context.Context, content []byte) (*RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.OCRProcessing("OCR processing was canceled", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(content); err != nil {
		t.log.Error().Err(err).Msg("Tesseract rejected image")
		return nil, apperr.OCRProcessing("Failed to extract text from image", err)
	}

	text, err := client.Text()
	if err != nil {
		t.log.Error().Err(err).Msg("Tesseract OCR failed")
		return nil, apperr.OCRProcessing("Failed to extract text from image", err)
	}

	if strings.TrimSpace(text) == "" {
		return &RawResult{}, nil
	}

	result := &RawResult{Text: text}
	if conf, ok := wordConfidence(client); ok {
		result.PageConfidences = []float64{conf}
	}
	return result, nil
}

// wordConfidence averages Tesseract's per-word confidence scores, scaled
// from percent to [0, 1].
func wordConfidence(client *gosseract.Client) (float64, bool) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, false
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes)), true
}

// HealthCheck verifies the local Tesseract installation is usable.
func (t *TesseractProvider) HealthCheck(_ context.Context) (bool, int64) {
	start := time.Now()
	_, err := gosseract.GetAvailableLanguages()
	return err == nil, time.Since(start).Milliseconds()
}

// Close is a no-op; clients are created per call.
func (t *TesseractProvider) Close() error {
	return nil
}
