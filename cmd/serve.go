package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrapi/internal/cache"
	"ocrapi/internal/config"
	"ocrapi/internal/logger"
	"ocrapi/internal/ocr"
	"ocrapi/internal/pipeline"
	"ocrapi/internal/server"
	"ocrapi/internal/validator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OCR HTTP service",
	Long: `Start the HTTP service exposing image text extraction.

Endpoints:
  POST /api/v1/ocr/extract        - extract text from one image
  POST /api/v1/ocr/extract/batch  - extract text from up to MAX_BATCH_SIZE images
  GET  /api/v1/ocr/cache/stats    - result cache diagnostics
  GET  /health, /health/ready     - probes

Required environment variables (Google backends):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Serve on the default port
  ocrapi serve

  # Serve on a custom port
  PORT=9090 ocrapi serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := buildCacheStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close cache")
		}
	}()

	provider, err := ocr.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create OCR provider: %w", err)
	}
	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR provider")
		}
	}()

	v := validator.New(cfg.MaxFileSizeMB, cfg.AllowedExtensions, cfg.AllowedMimeTypes)
	p := pipeline.New(v, store, provider, cfg.MaxBatchSize, cfg.BatchWorkers)
	srv := server.New(p, provider, cfg)

	ctx, cancel := signalContext(log)
	defer cancel()

	log.Info().
		Str("provider", cfg.OCRProvider).
		Str("cache_backend", cfg.CacheBackend).
		Bool("auth_enabled", cfg.AuthEnabled).
		Bool("rate_limit_enabled", cfg.RateLimitEnabled).
		Msg("Starting OCR service")

	return srv.Start(ctx)
}

func buildCacheStore(cfg *config.Config) (cache.Store, error) {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cfg.CacheBackend == config.CacheBackendRedis {
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.CacheMaxEntries, ttl)
	}
	return cache.NewMemoryStore(cfg.CacheMaxEntries, ttl), nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
