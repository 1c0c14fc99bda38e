package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/a3tai/doi-metadata-extractor/internal/archive"
	"github.com/a3tai/doi-metadata-extractor/internal/batch"
	"github.com/a3tai/doi-metadata-extractor/internal/config"
	"github.com/a3tai/doi-metadata-extractor/internal/mcp"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/observability"
	"github.com/a3tai/doi-metadata-extractor/internal/pdf"
	"github.com/a3tai/doi-metadata-extractor/internal/pipeline"
	"github.com/a3tai/doi-metadata-extractor/internal/report"
	"github.com/a3tai/doi-metadata-extractor/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const (
	shutdownTimeout = 30 * time.Second

	// uncompressed archive content may exceed the upload by this factor
	maxExpansionRatio = 4
)

// setupLogging builds the logger for the configured mode. MCP owns stdout in
// stdio mode, so logs go to stderr there and only when debugging.
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) zerolog.Logger {
	if cfg.IsStdioMode() {
		if !cfg.IsDebug() {
			return zerolog.Nop()
		}
		return observability.NewLogger(observability.LoggingConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: stderr,
		})
	}

	return observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stdout,
	})
}

// buildPipeline wires extractor, parser, batch runner and report writer
func buildPipeline(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*pipeline.Service, error) {
	parser, err := metadata.NewParser(metadata.IssueMatch(cfg.IssueMatch))
	if err != nil {
		return nil, err
	}

	policy, err := batch.ParsePolicy(cfg.OnError)
	if err != nil {
		return nil, err
	}

	reader := pdf.NewReader(pdf.NewValidator(cfg.MaxFileSize, cfg.Validate))
	runner := batch.NewRunner(reader, parser, policy, metrics, logger)

	return pipeline.NewService(runner, report.NewWriter(), pipeline.Options{
		ScratchDirectory: cfg.ScratchDirectory,
		Limits: archive.Limits{
			MaxEntrySize: cfg.MaxFileSize,
			MaxTotalSize: cfg.MaxUploadSize * maxExpansionRatio,
		},
	}, metrics, logger)
}

// runServerMode serves the upload shell until a signal arrives or the
// listener fails
func runServerMode(ctx context.Context, server *web.Server, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-serverErrCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info().Msg("server stopped successfully")
	return nil
}

// runStdioMode serves MCP until the parent process closes stdin
func runStdioMode(ctx context.Context, server *mcp.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	service, err := buildPipeline(cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	ctx := context.Background()

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, service, logger)
		if err != nil {
			return fmt.Errorf("create MCP server: %w", err)
		}
		return runStdioMode(ctx, server)
	}

	server, err := web.NewServer(web.DefaultConfig(cfg.Address(), cfg.MaxUploadSize), service, registry, logger)
	if err != nil {
		return fmt.Errorf("create HTTP server: %w", err)
	}
	return runServerMode(ctx, server, logger)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stdout, os.Stderr)
	logger.Debug().Str("config", cfg.String()).Msg("starting with configuration")

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		if cfg.IsStdioMode() && !cfg.IsDebug() {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "DOI Metadata Extractor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
