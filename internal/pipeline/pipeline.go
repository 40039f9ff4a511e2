// Package pipeline orchestrates the OCR request flow: validate the upload,
// look up the content-addressed cache, call the provider on a miss,
// normalize the text, and store the result back.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"ocrapi/internal/apperr"
	"ocrapi/internal/cache"
	"ocrapi/internal/logger"
	"ocrapi/internal/ocr"
	"ocrapi/internal/textnorm"
	"ocrapi/internal/validator"
)

// Result is the outcome of a single successful extraction.
type Result struct {
	Text             string
	Confidence       float64
	WordCount        int
	Language         string
	ProcessingTimeMs int64

	// NoText marks the soft "no text detected" outcome: still a success,
	// with empty text and zero confidence.
	NoText bool

	// CacheHit marks a result served from the content cache.
	CacheHit bool
}

// Pipeline wires the validator, cache, and provider together. One instance
// serves all requests; the cache is its only shared mutable state.
type Pipeline struct {
	validator    *validator.Validator
	store        cache.Store
	provider     ocr.Provider
	maxBatchSize int
	workers      int
	log          zerolog.Logger
}

// New creates a Pipeline. maxBatchSize caps how many files one batch call
// processes; workers bounds the batch fan-out.
func New(v *validator.Validator, store cache.Store, provider ocr.Provider, maxBatchSize, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		validator:    v,
		store:        store,
		provider:     provider,
		maxBatchSize: maxBatchSize,
		workers:      workers,
		log:          logger.WithComponent("pipeline"),
	}
}

// Process runs one image through validate → cache → provider → normalize →
// store. A provider result with no text is returned as a NoText success;
// every other failure comes back as a typed error.
func (p *Pipeline) Process(ctx context.Context, file validator.UploadedFile) (*Result, error) {
	start := time.Now()

	outcome, err := p.validator.Validate(file)
	if err != nil {
		return nil, err
	}

	digest := cache.Hash(outcome.Content)

	// Cached values are returned as-is: no re-normalization, no word
	// recount. Identical bytes under any filename share the entry.
	if entry, err := p.store.Get(ctx, digest); err == nil {
		p.log.Info().Str("image_hash", digest[:16]).Msg("Cache hit")
		return &Result{
			Text:             entry.Text,
			Confidence:       entry.Confidence,
			WordCount:        entry.WordCount,
			Language:         entry.Language,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			CacheHit:         true,
		}, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		p.log.Warn().Err(err).Msg("Cache lookup failed, continuing without cache")
	}

	raw, err := p.provider.Extract(ctx, outcome.Content)
	if err != nil {
		return nil, err
	}

	if raw.Text == "" {
		p.log.Info().
			Int64("processing_time_ms", time.Since(start).Milliseconds()).
			Msg("No text detected")
		return &Result{
			NoText:           true,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	text := textnorm.Normalize(raw.Text)
	confidence := meanConfidence(raw.PageConfidences)
	wordCount := textnorm.WordCount(text)

	if err := p.store.Set(ctx, digest, cache.Entry{
		Text:       text,
		Confidence: confidence,
		WordCount:  wordCount,
		Language:   raw.Language,
	}); err != nil {
		p.log.Warn().Err(err).Msg("Cache store failed")
	} else {
		p.log.Info().Str("image_hash", digest[:16]).Msg("Cache stored")
	}

	elapsed := time.Since(start).Milliseconds()
	p.log.Info().
		Int("word_count", wordCount).
		Float64("confidence", confidence).
		Str("language", raw.Language).
		Int64("processing_time_ms", elapsed).
		Msg("Text extracted")

	return &Result{
		Text:             text,
		Confidence:       confidence,
		WordCount:        wordCount,
		Language:         raw.Language,
		ProcessingTimeMs: elapsed,
	}, nil
}

// CacheStats exposes cache diagnostics for the stats endpoint.
func (p *Pipeline) CacheStats(ctx context.Context) (cache.Stats, error) {
	return p.store.Stats(ctx)
}

// meanConfidence is the arithmetic mean of the reported page confidences,
// rounded to 4 decimal places, 0.0 when none were reported.
func meanConfidence(confidences []float64) float64 {
	if len(confidences) == 0 {
		return 0.0
	}
	var sum float64
	for _, c := range confidences {
		sum += c
	}
	return math.Round(sum/float64(len(confidences))*10000) / 10000
}

// itemOutcome tags one batch element's result: success (possibly NoText) or
// a typed failure. Unclassified failures are coerced to INTERNAL_ERROR.
type itemOutcome struct {
	result *Result
	err    *apperr.AppError
}

func (p *Pipeline) processItem(ctx context.Context, file validator.UploadedFile) (out itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Str("filename", file.Filename).
				Interface("panic", r).
				Msg("Batch item panicked")
			out = itemOutcome{err: apperr.Internal(fmt.Errorf("%v", r))}
		}
	}()

	result, err := p.Process(ctx, file)
	if err != nil {
		return itemOutcome{err: apperr.AsAppError(err)}
	}
	return itemOutcome{result: result}
}
