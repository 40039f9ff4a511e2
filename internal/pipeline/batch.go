package pipeline

import (
	"context"
	"sync"
	"time"

	"ocrapi/internal/validator"
)

// BatchItemResult is the outcome of one batch element. Either Text and
// Confidence are set (success) or ErrorCode and ErrorMessage are (failure),
// never both.
type BatchItemResult struct {
	Filename         string   `json:"filename"`
	Success          bool     `json:"success"`
	Text             *string  `json:"text,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	ProcessingTimeMs *int64   `json:"processing_time_ms,omitempty"`
	ErrorCode        string   `json:"error_code,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
}

// BatchReport aggregates a whole batch call. Results preserve input order.
type BatchReport struct {
	TotalImages           int               `json:"total_images"`
	Successful            int               `json:"successful"`
	Failed                int               `json:"failed"`
	TotalProcessingTimeMs int64             `json:"total_processing_time_ms"`
	Results               []BatchItemResult `json:"results"`
}

type batchJob struct {
	index int
	file  validator.UploadedFile
}

// ProcessBatch runs up to maxBatchSize files through Process with a bounded
// worker pool. Items are isolated: one item's failure is captured in its
// BatchItemResult and never aborts siblings. Files beyond the batch ceiling
// are dropped and logged. TotalProcessingTimeMs is the batch wall-clock
// span, not the sum of per-item times.
func (p *Pipeline) ProcessBatch(ctx context.Context, files []validator.UploadedFile) *BatchReport {
	start := time.Now()

	if len(files) > p.maxBatchSize {
		p.log.Warn().
			Int("submitted", len(files)).
			Int("max_batch_size", p.maxBatchSize).
			Msg("Batch exceeds maximum size, excess files dropped")
		files = files[:p.maxBatchSize]
	}

	results := make([]BatchItemResult, len(files))
	jobs := make(chan batchJob, len(files))

	workers := p.workers
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				p.log.Debug().
					Int("worker", workerID).
					Str("filename", job.file.Filename).
					Int("index", job.index).
					Msg("Worker processing image")

				itemStart := time.Now()
				outcome := p.processItem(ctx, job.file)

				// Store result in correct position
				results[job.index] = toItemResult(job.file.Filename, outcome, time.Since(itemStart).Milliseconds())
			}
		}(w)
	}

	for i, file := range files {
		jobs <- batchJob{index: i, file: file}
	}
	close(jobs)

	wg.Wait()

	report := &BatchReport{
		TotalImages:           len(files),
		TotalProcessingTimeMs: time.Since(start).Milliseconds(),
		Results:               results,
	}
	for _, r := range results {
		if r.Success {
			report.Successful++
		} else {
			report.Failed++
		}
	}

	p.log.Info().
		Int("total_images", report.TotalImages).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int64("total_processing_time_ms", report.TotalProcessingTimeMs).
		Msg("Batch processing completed")

	return report
}

func toItemResult(filename string, outcome itemOutcome, elapsedMs int64) BatchItemResult {
	if outcome.err != nil {
		return BatchItemResult{
			Filename:     filename,
			Success:      false,
			ErrorCode:    outcome.err.Code,
			ErrorMessage: outcome.err.Message,
		}
	}

	// NoText counts as success with empty text, matching the single-image
	// semantics.
	text := outcome.result.Text
	confidence := outcome.result.Confidence
	ms := elapsedMs
	return BatchItemResult{
		Filename:         filename,
		Success:          true,
		Text:             &text,
		Confidence:       &confidence,
		ProcessingTimeMs: &ms,
	}
}
