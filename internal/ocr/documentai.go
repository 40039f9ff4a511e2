package ocr

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
)

// DocumentAIConfig identifies the Document AI processor to call.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocumentAIProvider implements Provider using a Google Document AI OCR
// processor. Useful where extraction should share a processor with other
// document workflows.
type DocumentAIProvider struct {
	mu     sync.Mutex
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIProvider creates the provider. The client is built lazily on
// first use.
func NewDocumentAIProvider(config DocumentAIConfig) *DocumentAIProvider {
	if config.Location == "" {
		config.Location = "us"
	}
	return &DocumentAIProvider{
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// NewDocumentAIProviderWithClient creates the provider with an explicit
// client (for testing).
func NewDocumentAIProviderWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIProvider {
	return &DocumentAIProvider{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

func (d *DocumentAIProvider) connect(ctx context.Context) (*documentai.DocumentProcessorClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	var clientOptions []option.ClientOption

	// Regional endpoint for non-US processors
	if d.config.Location != "" && d.config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", d.config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, apperr.OCRProcessing("Failed to initialize Document AI client", apperr.ErrMissingCredentials)
		}
		return nil, apperr.OCRProcessing("Failed to initialize Document AI client", err)
	}

	d.log.Info().Str("location", d.config.Location).Msg("Document AI client initialized")
	d.client = client
	return client, nil
}

func (d *DocumentAIProvider) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// Extract runs the configured Document AI processor over a single image.
func (d *DocumentAIProvider) Extract(ctx context.Context, content []byte) (*RawResult, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimetype.Detect(content).String(),
			},
		},
	}

	resp, err := client.ProcessDocument(ctx, req)
	if err != nil {
		d.log.Error().Err(err).Msg("Document AI call failed")
		return nil, apperr.OCRProcessing("Failed to extract text from image", err)
	}

	doc := resp.GetDocument()
	if doc == nil || doc.Text == "" {
		return &RawResult{}, nil
	}

	var confidences []float64
	language := ""
	for _, page := range doc.Pages {
		if layout := page.GetLayout(); layout != nil && layout.Confidence > 0 {
			confidences = append(confidences, float64(layout.Confidence))
		}
	}
	if len(doc.Pages) > 0 && len(doc.Pages[0].DetectedLanguages) > 0 {
		language = doc.Pages[0].DetectedLanguages[0].LanguageCode
	}

	return &RawResult{
		Text:            doc.Text,
		PageConfidences: confidences,
		Language:        language,
	}, nil
}

// HealthCheck verifies the client can be constructed and the processor is
// configured. Document AI has no cheap probe endpoint, so a successful
// connect counts as healthy.
func (d *DocumentAIProvider) HealthCheck(ctx context.Context) (bool, int64) {
	start := time.Now()
	if _, err := d.connect(ctx); err != nil {
		return false, time.Since(start).Milliseconds()
	}
	return d.config.ProcessorID != "", time.Since(start).Milliseconds()
}

// Close closes the underlying Document AI client.
func (d *DocumentAIProvider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
