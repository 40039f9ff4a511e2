package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrapi/internal/apperr"
	"ocrapi/internal/config"
	"ocrapi/internal/logger"
	"ocrapi/internal/ocr"
	"ocrapi/internal/pipeline"
	"ocrapi/internal/validator"
)

var extractCmd = &cobra.Command{
	Use:   "extract [image-file]",
	Short: "Extract text from a local image file",
	Long: `Run a local image through the same validation, OCR, and text
normalization pipeline the HTTP service uses, without starting a server.

Required environment variables (Google backends):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Extract text from a scanned receipt to stdout
  ocrapi extract receipt.jpg

  # Save extracted text to a file
  ocrapi extract receipt.jpg -o extracted.txt

  # Output as JSON with confidence and word count
  ocrapi extract receipt.jpg --json

  # Process with custom timeout
  ocrapi extract large-scan.png --timeout 120`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// extractOutput is the JSON output structure when --json is used.
type extractOutput struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	WordCount        int     `json:"word_count"`
	Language         string  `json:"language,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	FileName         string  `json:"file_name"`
	FileSize         int64   `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("image file not found: %s", imagePath)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	provider, err := ocr.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create OCR provider: %w", err)
	}
	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR provider")
		}
	}()

	store, err := buildCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer store.Close()

	v := validator.New(cfg.MaxFileSizeMB, cfg.AllowedExtensions, cfg.AllowedMimeTypes)
	p := pipeline.New(v, store, provider, cfg.MaxBatchSize, cfg.BatchWorkers)

	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image file: %w", err)
	}
	defer func() {
		if closeErr := imageFile.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close image file")
		}
	}()

	log.Info().
		Str("file", imagePath).
		Int64("size", fileInfo.Size()).
		Msg("Processing image")

	result, err := p.Process(ctx, validator.UploadedFile{
		Filename: filepath.Base(imagePath),
		Reader:   imageFile,
	})
	if err != nil {
		return handleExtractError(err, log)
	}

	if result.NoText {
		log.Warn().Msg("No text detected in image")
	} else {
		log.Info().
			Int("word_count", result.WordCount).
			Float64("confidence", result.Confidence).
			Int64("processing_time_ms", result.ProcessingTimeMs).
			Msg("Extraction completed")
	}

	return writeExtractOutput(result, fileInfo, outputPath, jsonOutput, log)
}

// handleExtractError provides user-friendly messages for extraction failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	appErr := apperr.AsAppError(err)
	switch appErr.Code {
	case apperr.CodeFileTooLarge:
		return fmt.Errorf("image is too large: %s", appErr.Message)
	case apperr.CodeUnsupportedFileType:
		return fmt.Errorf("unsupported file type: %s", appErr.Message)
	case apperr.CodeInvalidFile:
		return fmt.Errorf("invalid image: %s", appErr.Message)
	case apperr.CodeOCRProcessing:
		if strings.Contains(appErr.Error(), "credentials") {
			return fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
		}
		return fmt.Errorf("OCR processing failed: %s", appErr.Message)
	default:
		return fmt.Errorf("extraction failed: %s", appErr.Message)
	}
}

// writeExtractOutput renders the result as text or JSON, to stdout or a file
func writeExtractOutput(result *pipeline.Result, fileInfo os.FileInfo, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		out := extractOutput{
			Text:             result.Text,
			Confidence:       result.Confidence,
			WordCount:        result.WordCount,
			Language:         result.Language,
			ProcessingTimeMs: result.ProcessingTimeMs,
			FileName:         filepath.Base(fileInfo.Name()),
			FileSize:         fileInfo.Size(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = data
	} else {
		outputData = []byte(result.Text)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, outputData, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(outputData)).
			Msg("Results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(outputData); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput {
		fmt.Println()
	}
	return nil
}
