// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ocrapi/internal/config"
	"ocrapi/internal/logger"
	"ocrapi/internal/ocr"
	"ocrapi/internal/pipeline"
)

// Server holds the HTTP boundary of the OCR service.
type Server struct {
	pipeline *pipeline.Pipeline
	provider ocr.Provider
	cfg      *config.Config
	log      zerolog.Logger
	httpSrv  *http.Server
}

// New creates a Server around an assembled pipeline.
func New(p *pipeline.Pipeline, provider ocr.Provider, cfg *config.Config) *Server {
	s := &Server{
		pipeline: p,
		provider: provider,
		cfg:      cfg,
		log:      logger.WithComponent("server"),
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi router with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(time.Duration(s.cfg.RequestTimeout) * time.Second))

	// Health checks stay unauthenticated and unthrottled.
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	r.Route("/api/v1/ocr", func(r chi.Router) {
		r.Use(RateLimit(s.cfg.RateLimitEnabled, s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
		r.Use(Auth(s.cfg.AuthEnabled, s.cfg.APIToken))

		r.Post("/extract", s.handleExtract)
		r.Post("/extract/batch", s.handleExtractBatch)
		r.Get("/cache/stats", s.handleCacheStats)
	})

	return r
}

// Start serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
