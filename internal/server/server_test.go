package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrapi/internal/apperr"
	"ocrapi/internal/cache"
	"ocrapi/internal/config"
	"ocrapi/internal/ocr"
	"ocrapi/internal/pipeline"
	"ocrapi/internal/server"
	"ocrapi/internal/validator"
)

type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	result *ocr.RawResult
	err    error
	ok     bool
}

func (f *fakeProvider) Extract(_ context.Context, _ []byte) (*ocr.RawResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		out := *f.result
		return &out, nil
	}
	return &ocr.RawResult{Text: "hello world", PageConfidences: []float64{0.94}}, nil
}

func (f *fakeProvider) HealthCheck(_ context.Context) (bool, int64) { return f.ok, 5 }
func (f *fakeProvider) Close() error                                { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Port:              8080,
		RequestTimeout:    30,
		MaxFileSizeMB:     10,
		AllowedExtensions: []string{"jpg", "jpeg", "png"},
		AllowedMimeTypes:  []string{"image/jpeg", "image/png"},
		CacheBackend:      config.CacheBackendMemory,
		CacheMaxEntries:   100,
		CacheTTLSeconds:   3600,
		MaxBatchSize:      10,
		BatchWorkers:      2,
		OCRProvider:       config.ProviderVision,
	}
}

func newTestServer(provider ocr.Provider, cfg *config.Config) http.Handler {
	v := validator.New(cfg.MaxFileSizeMB, cfg.AllowedExtensions, cfg.AllowedMimeTypes)
	store := cache.NewMemoryStore(cfg.CacheMaxEntries, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	p := pipeline.New(v, store, provider, cfg.MaxBatchSize, cfg.BatchWorkers)
	return server.New(p, provider, cfg).Router()
}

func pngBytes(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x * 50), B: uint8(y * 50), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestExtractSuccess(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	body, contentType := multipartBody(t, "image", map[string][]byte{"scan.png": pngBytes(t, 1)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp struct {
		Success          bool    `json:"success"`
		Text             string  `json:"text"`
		Confidence       float64 `json:"confidence"`
		ProcessingTimeMs *int64  `json:"processing_time_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, 0.94, resp.Confidence)
	require.NotNil(t, resp.ProcessingTimeMs)
}

func TestExtractNoTextIsSuccess(t *testing.T) {
	handler := newTestServer(&fakeProvider{result: &ocr.RawResult{}}, testConfig())

	body, contentType := multipartBody(t, "image", map[string][]byte{"blank.png": pngBytes(t, 2)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool    `json:"success"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Message    string  `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "", resp.Text)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.NotEmpty(t, resp.Message)
}

func TestExtractValidationErrorEnvelope(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	body, contentType := multipartBody(t, "image", map[string][]byte{"junk.txt": []byte("plain text")})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, apperr.CodeUnsupportedFileType, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Message)
	assert.NotEmpty(t, resp.Metadata.RequestID)
}

func TestExtractProviderErrorIs500(t *testing.T) {
	provider := &fakeProvider{err: apperr.OCRProcessing("Vision API returned an error", assert.AnError)}
	handler := newTestServer(provider, testConfig())

	body, contentType := multipartBody(t, "image", map[string][]byte{"scan.png": pngBytes(t, 3)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperr.CodeOCRProcessing, resp.Error.Code)
}

func TestExtractMissingFile(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	body, contentType := multipartBody(t, "wrong_field", map[string][]byte{"scan.png": pngBytes(t, 4)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractBatchMixedResults(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"good.png": pngBytes(t, 5),
		"bad.png":  []byte("not an image"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ocr/extract/batch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// Per-item failures never change the transport status.
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success     bool                       `json:"success"`
		TotalImages int                        `json:"total_images"`
		Successful  int                        `json:"successful"`
		Failed      int                        `json:"failed"`
		Results     []pipeline.BatchItemResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TotalImages)
	assert.Equal(t, 1, resp.Successful)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
}

func TestCacheStats(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 100, stats.MaxSize)
	assert.Equal(t, 3600, stats.TTLSeconds)
}

func TestAuthRequired(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.APIToken = "secret-token"
	handler := newTestServer(&fakeProvider{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apperr.CodeAuthenticationFailed, resp.Error.Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.APIToken = "secret-token"
	handler := newTestServer(&fakeProvider{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	cfg := testConfig()
	cfg.AuthEnabled = true
	cfg.APIToken = "secret-token"
	handler := newTestServer(&fakeProvider{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	handler := newTestServer(&fakeProvider{}, cfg)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/v1/ocr/cache/stats", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, apperr.CodeRateLimitExceeded, resp.Error.Code)
	assert.NotNil(t, resp.Error.Details["retry_after_seconds"])
}

func TestHealth(t *testing.T) {
	handler := newTestServer(&fakeProvider{ok: true}, testConfig())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReflectsProvider(t *testing.T) {
	up := httptest.NewRecorder()
	newTestServer(&fakeProvider{ok: true}, testConfig()).
		ServeHTTP(up, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, up.Code)

	down := httptest.NewRecorder()
	newTestServer(&fakeProvider{ok: false}, testConfig()).
		ServeHTTP(down, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	handler := newTestServer(&fakeProvider{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", rec.Header().Get("X-Request-ID"))
}
