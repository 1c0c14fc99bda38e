package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
)

const (
	pageTitle        = "DOI Metadata Extractor"
	successBanner    = "Excel Report Generated!"
	noRecordsWarning = "No PDFs found or DOI metadata not extracted."
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData drives templates/index.html
type pageData struct {
	Title         string
	SuccessBanner string
	Success       bool
	Warning       string
	Error         string
	Columns       []string
	Records       []metadata.Record
	Failures      []failureResponse
	Filename      string
	DownloadURL   template.URL
}

// renderPage renders into a buffer first so a template failure can still
// produce a clean 500
func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	data.Title = pageTitle
	data.SuccessBanner = successBanner

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error().Err(err).Msg("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
