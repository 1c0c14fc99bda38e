package mcp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/doi-metadata-extractor/internal/batch"
	"github.com/a3tai/doi-metadata-extractor/internal/config"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/pdf"
	"github.com/a3tai/doi-metadata-extractor/internal/pipeline"
	"github.com/a3tai/doi-metadata-extractor/internal/report"
)

// textExtractor treats file content as document text so tests need no real PDFs
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, path string) (*pdf.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &pdf.ExtractError{Path: path, Op: "validate", Err: err}
	}
	return &pdf.Document{Path: path, Text: string(data), FirstPageLines: []string{"Paper Title", "First Author"}}, nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeStdio
	cfg.Directory = dir
	cfg.ServerName = "test-server"

	parser, err := metadata.NewParser(metadata.IssueMatchWord)
	require.NoError(t, err)
	runner := batch.NewRunner(textExtractor{}, parser, batch.PolicySkip, nil, zerolog.Nop())
	svc, err := pipeline.NewService(runner, report.NewWriter(),
		pipeline.Options{ScratchDirectory: t.TempDir()}, nil, zerolog.Nop())
	require.NoError(t, err)

	s, err := NewServer(cfg, svc, zerolog.Nop())
	require.NoError(t, err)
	return s, dir
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	s, dir := newTestServer(t)
	assert.NotNil(t, s.mcpServer)
	assert.Equal(t, dir, s.guard.Root())

	_, err := NewServer(nil, s.service, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewServer(s.config, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestHandleExtractFile(t *testing.T) {
	s, dir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper.pdf"),
		[]byte("doi:10.5555/abc.123 IEEE Vol. 4 No. 2 pp. 10-20 June 2018"), 0o644))

	result, err := s.handleExtractFile(context.Background(), callRequest(map[string]interface{}{"path": "paper.pdf"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	for _, want := range []string{
		"Filename: paper.pdf",
		"Title: Paper Title",
		"Authors: First Author",
		"DOI: 10.5555/abc.123",
		"Publisher: IEEE",
		"Volume: 4",
		"Issue: 2",
		"Pages: 10-20",
		"Year: 2018",
		"Publication Date: June 2018",
	} {
		assert.Contains(t, text, want)
	}
}

func TestHandleExtractFile_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{name: "missing path", args: map[string]interface{}{}},
		{name: "outside directory", args: map[string]interface{}{"path": "../elsewhere.pdf"}},
		{name: "absolute outside", args: map[string]interface{}{"path": "/etc/passwd"}},
		{name: "missing file", args: map[string]interface{}{"path": "nope.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleExtractFile(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestHandleExtractArchive(t *testing.T) {
	s, dir := newTestServer(t)
	writeZip(t, filepath.Join(dir, "papers.zip"), map[string]string{
		"b.pdf": "Taylor & Francis",
		"a.pdf": "10.1000/first",
	})

	result, err := s.handleExtractArchive(context.Background(), callRequest(map[string]interface{}{"path": "papers.zip"}))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	require.False(t, result.IsError, text)

	assert.Contains(t, text, "Records: 2")
	assert.Contains(t, text, "1. a.pdf  DOI: 10.1000/first")

	output := filepath.Join(dir, report.DefaultFilename)
	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.MetadataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a.pdf", rows[1][0])
	assert.Equal(t, "Taylor & Francis", rows[2][4])
}

func TestHandleExtractArchive_CustomOutput(t *testing.T) {
	s, dir := newTestServer(t)
	writeZip(t, filepath.Join(dir, "papers.zip"), map[string]string{"a.pdf": "Nature 2022"})

	result, err := s.handleExtractArchive(context.Background(), callRequest(map[string]interface{}{
		"path":   filepath.Join(dir, "papers.zip"),
		"output": "reports.xlsx",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	_, err = os.Stat(filepath.Join(dir, "reports.xlsx"))
	assert.NoError(t, err)
}

func TestHandleExtractArchive_Errors(t *testing.T) {
	s, dir := newTestServer(t)
	writeZip(t, filepath.Join(dir, "empty.zip"), map[string]string{"notes.txt": "hello"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.zip"), []byte("not a zip"), 0o644))

	tests := []struct {
		name     string
		args     map[string]interface{}
		contains string
	}{
		{name: "missing path", args: map[string]interface{}{}},
		{name: "empty batch", args: map[string]interface{}{"path": "empty.zip"}, contains: "no PDFs found"},
		{name: "invalid archive", args: map[string]interface{}{"path": "bad.zip"}, contains: "invalid ZIP archive"},
		{name: "output outside", args: map[string]interface{}{"path": "empty.zip", "output": "../out.xlsx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleExtractArchive(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			if tt.contains != "" {
				assert.Contains(t, extractTextFromResult(result), tt.contains)
			}
		})
	}

	_, err := os.Stat(filepath.Join(dir, report.DefaultFilename))
	assert.True(t, os.IsNotExist(err), "no report for failed archives")
}

func TestHandleServerInfo(t *testing.T) {
	s, dir := newTestServer(t)

	result, err := s.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Server: test-server")
	assert.Contains(t, text, "Directory: "+dir)
	assert.Contains(t, text, "doi_extract_archive")
	assert.Contains(t, text, "Publication Date")
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.mcpServer.HandleMessage(context.Background(), msg)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"doi_extract_file", "doi_extract_archive", "doi_server_info"} {
		assert.Contains(t, string(data), name)
	}
}

func TestServe_EndOfInput(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	assert.NoError(t, s.Serve(ctx, bytes.NewReader(nil), &out))
}

// extractTextFromResult returns the first text content of a tool result
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
