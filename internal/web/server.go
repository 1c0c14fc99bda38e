// Package web serves the upload and download shell: an HTML form that takes a
// ZIP of PDFs and hands back the Excel report, plus a small JSON/XLSX API.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/a3tai/doi-metadata-extractor/internal/pipeline"
)

// formField is the multipart field carrying the archive
const formField = "archive"

// in-memory part of a multipart upload; the rest spills to disk
const multipartMemory = 32 << 20

// Processor turns an uploaded archive into records and a report
type Processor interface {
	ProcessArchive(ctx context.Context, r io.ReaderAt, size int64) (*pipeline.Output, error)
}

// Config holds HTTP server configuration
type Config struct {
	Address       string
	MaxUploadSize int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

// DefaultConfig returns timeouts suited to large uploads
func DefaultConfig(address string, maxUploadSize int64) Config {
	return Config{
		Address:       address,
		MaxUploadSize: maxUploadSize,
		ReadTimeout:   5 * time.Minute,
		WriteTimeout:  10 * time.Minute,
		IdleTimeout:   2 * time.Minute,
	}
}

// Server is the HTTP upload service
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	processor     Processor
	gatherer      prometheus.Gatherer
	maxUploadSize int64
	logger        zerolog.Logger
}

// NewServer creates the HTTP server. gatherer backs /metrics and may be nil.
func NewServer(cfg Config, processor Processor, gatherer prometheus.Gatherer, logger zerolog.Logger) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}

	s := &Server{
		processor:     processor,
		gatherer:      gatherer,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

// buildRouter creates the chi router with all middleware and routes
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(accessLogMiddleware(s.logger))

	r.Get("/", s.indexHandler)
	r.Post("/", s.uploadHandler)

	r.Post("/api/v1/extract", s.extractHandler)

	r.Get("/healthz", s.healthHandler)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
