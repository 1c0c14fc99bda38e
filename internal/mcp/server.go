package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/a3tai/doi-metadata-extractor/internal/config"
	"github.com/a3tai/doi-metadata-extractor/internal/descriptions"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/pipeline"
	"github.com/a3tai/doi-metadata-extractor/internal/report"
	"github.com/a3tai/doi-metadata-extractor/internal/security"
)

// reportPerm is the mode of workbooks written by doi_extract_archive
const reportPerm = 0o640

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pipeline.Service
	guard     *security.PathGuard
	mcpServer *server.MCPServer
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pipeline.Service, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	guard, err := security.NewPathGuard(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("path guard: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool list is fixed
	)

	s := &Server{
		config:    cfg,
		service:   service,
		guard:     guard,
		mcpServer: mcpServer,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	extractFileTool := mcp.NewTool(
		"doi_extract_file",
		mcp.WithDescription(descriptions.DOIExtractFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, absolute or relative to the configured directory"),
		),
	)
	s.mcpServer.AddTool(extractFileTool, s.handleExtractFile)

	extractArchiveTool := mcp.NewTool(
		"doi_extract_archive",
		mcp.WithDescription(descriptions.DOIExtractArchiveDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the ZIP archive, absolute or relative to the configured directory"),
		),
		mcp.WithString("output",
			mcp.Description("Where to write the .xlsx report (defaults to metadata_output.xlsx next to the archive)"),
		),
	)
	s.mcpServer.AddTool(extractArchiveTool, s.handleExtractArchive)

	serverInfoTool := mcp.NewTool(
		"doi_server_info",
		mcp.WithDescription(descriptions.DOIServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, err = s.resolvePath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec, err := s.service.ProcessFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRecord(rec)), nil
}

func (s *Server) handleExtractArchive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	archivePath, err := s.resolvePath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output := filepath.Join(filepath.Dir(archivePath), report.DefaultFilename)
	if o, ok := request.GetArguments()["output"].(string); ok && o != "" {
		output = o
	}
	output, err = s.resolvePath(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := s.service.ProcessArchiveFile(ctx, archivePath)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyBatch) && out != nil {
			return mcp.NewToolResultError(formatEmpty(archivePath, out)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := os.WriteFile(output, out.Report, reportPerm); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("write report: %v", err)), nil
	}

	s.logger.Debug().
		Str("archive", archivePath).
		Str("output", output).
		Int("records", len(out.Result.Records)).
		Msg("archive processed")

	return mcp.NewToolResultText(formatSummary(archivePath, output, out)), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Server: %s\n", s.config.ServerName)
	fmt.Fprintf(&b, "Version: %s\n", s.config.Version)
	fmt.Fprintf(&b, "Directory: %s\n", s.guard.Root())
	fmt.Fprintf(&b, "Max PDF size: %d bytes\n", s.config.MaxFileSize)
	fmt.Fprintf(&b, "On error: %s\n", s.config.OnError)
	b.WriteString("\nTools:\n")
	b.WriteString("- doi_extract_file(path): metadata of one PDF\n")
	b.WriteString("- doi_extract_archive(path, output?): Excel report for a ZIP of PDFs\n")
	b.WriteString("- doi_server_info(): this summary\n")
	b.WriteString("\nColumns: " + strings.Join(metadata.Columns, ", ") + "\n")
	return mcp.NewToolResultText(b.String()), nil
}

// resolvePath anchors relative paths at the configured directory and rejects
// anything outside it
func (s *Server) resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.guard.Root(), path)
	}
	if err := s.guard.ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}

// Formatting
func formatRecord(rec metadata.Record) string {
	var b strings.Builder
	values := rec.Values()
	for i, col := range metadata.Columns {
		fmt.Fprintf(&b, "%s: %s\n", col, values[i])
	}
	return b.String()
}

func formatSummary(archivePath, output string, out *pipeline.Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed archive: %s\n", archivePath)
	fmt.Fprintf(&b, "Records: %d\n", len(out.Result.Records))
	fmt.Fprintf(&b, "Skipped: %d\n", len(out.Result.Failures))
	fmt.Fprintf(&b, "Report: %s (%d bytes)\n", output, len(out.Report))

	if len(out.Result.Records) > 0 {
		b.WriteString("\nFiles:\n")
		for i, rec := range out.Result.Records {
			fmt.Fprintf(&b, "%d. %s  DOI: %s\n", i+1, rec.Filename, rec.DOI)
		}
	}
	writeFailures(&b, out)
	return b.String()
}

func formatEmpty(archivePath string, out *pipeline.Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", archivePath, pipeline.ErrEmptyBatch)
	writeFailures(&b, out)
	return b.String()
}

func writeFailures(b *strings.Builder, out *pipeline.Output) {
	if out.Result == nil || len(out.Result.Failures) == 0 {
		return
	}
	b.WriteString("\nSkipped files:\n")
	for _, f := range out.Result.Failures {
		fmt.Fprintf(b, "- %s: %s\n", f.Filename, f.Message())
	}
}

// Run serves MCP over stdin and stdout until ctx is cancelled or input ends
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Debug().Str("directory", s.guard.Root()).Msg("starting MCP server in stdio mode")

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
