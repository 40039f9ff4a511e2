package ocr

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"ocrapi/internal/apperr"
	"ocrapi/internal/logger"
)

// tinyPNG is a valid 1x1 PNG used to probe the Vision API in health checks.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde, 0x00, 0x00, 0x00,
	0x0c, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0x0f, 0x00, 0x00,
	0x01, 0x01, 0x00, 0x05, 0x18, 0xd8, 0x4e, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// GoogleVisionProvider implements Provider using Google Cloud Vision
// document text detection.
type GoogleVisionProvider struct {
	mu     sync.Mutex
	client *visionClient
	log    zerolog.Logger
}

// visionClient narrows *vision.ImageAnnotatorClient to what the provider
// calls, so tests can substitute a fake.
type visionClient struct {
	annotate func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error)
	close    func() error
}

// NewGoogleVisionProvider creates the provider. The Vision client is built
// lazily on first use; a failed connect surfaces as a typed OCR error.
func NewGoogleVisionProvider() *GoogleVisionProvider {
	return &GoogleVisionProvider{
		log: logger.WithComponent("google-vision"),
	}
}

// NewGoogleVisionProviderWithClient creates the provider with an explicit
// client (for testing).
func NewGoogleVisionProviderWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionProvider {
	return &GoogleVisionProvider{
		client: wrapVisionClient(client),
		log:    logger.WithComponent("google-vision"),
	}
}

func wrapVisionClient(client *vision.ImageAnnotatorClient) *visionClient {
	return &visionClient{
		annotate: func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
			return client.AnnotateImage(ctx, req)
		},
		close: client.Close,
	}
}

// connect builds the Vision client on first use, trying inline JSON
// credentials, then a credentials file, then application defaults.
func (g *GoogleVisionProvider) connect(ctx context.Context) (*visionClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, apperr.OCRProcessing("Failed to initialize Vision API client", err)
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, apperr.OCRProcessing("Failed to initialize Vision API client", err)
		}
	} else {
		// Try application default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, apperr.OCRProcessing("Failed to initialize Vision API client", apperr.ErrMissingCredentials)
		}
	}

	g.log.Info().Msg("Vision API client initialized")
	g.client = wrapVisionClient(client)
	return g.client, nil
}

// Extract runs document text detection over a single image.
func (g *GoogleVisionProvider) Extract(ctx context.Context, content []byte) (*RawResult, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return nil, err
	}

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}

	resp, err := client.annotate(ctx, req)
	if err != nil {
		g.log.Error().Err(err).Msg("Vision API call failed")
		return nil, apperr.OCRProcessing("Failed to extract text from image", err)
	}

	if resp.Error != nil {
		g.log.Error().Str("api_error", resp.Error.Message).Msg("Vision API returned an error")
		return nil, apperr.OCRProcessing("Vision API returned an error", fmt.Errorf("%s", resp.Error.Message))
	}

	annotation := resp.FullTextAnnotation
	if annotation == nil || annotation.Text == "" {
		return &RawResult{}, nil
	}

	var confidences []float64
	language := ""
	for _, page := range annotation.Pages {
		if page.Confidence > 0 {
			confidences = append(confidences, float64(page.Confidence))
		}
	}
	if len(annotation.Pages) > 0 {
		if prop := annotation.Pages[0].Property; prop != nil && len(prop.DetectedLanguages) > 0 {
			language = prop.DetectedLanguages[0].LanguageCode
		}
	}

	return &RawResult{
		Text:            annotation.Text,
		PageConfidences: confidences,
		Language:        language,
	}, nil
}

// HealthCheck probes the Vision API with a minimal image.
func (g *GoogleVisionProvider) HealthCheck(ctx context.Context) (bool, int64) {
	start := time.Now()

	client, err := g.connect(ctx)
	if err != nil {
		return false, time.Since(start).Milliseconds()
	}

	_, err = client.annotate(ctx, &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: tinyPNG},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_TEXT_DETECTION},
		},
	})
	if err != nil {
		g.log.Error().Err(err).Msg("Vision health check failed")
		return false, time.Since(start).Milliseconds()
	}

	return true, time.Since(start).Milliseconds()
}

// Close closes the underlying Vision client.
func (g *GoogleVisionProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client.close()
	}
	return nil
}
