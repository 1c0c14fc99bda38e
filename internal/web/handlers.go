package web

import (
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/a3tai/doi-metadata-extractor/internal/archive"
	"github.com/a3tai/doi-metadata-extractor/internal/batch"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/pdf"
	"github.com/a3tai/doi-metadata-extractor/internal/pipeline"
	"github.com/a3tai/doi-metadata-extractor/internal/report"
)

var (
	errMissingUpload  = errors.New("no archive uploaded")
	errUploadTooLarge = errors.New("upload exceeds the maximum allowed size")
)

// extractResponse is the JSON form of a processed archive
type extractResponse struct {
	BatchID  string            `json:"batch_id"`
	Records  []metadata.Record `json:"records"`
	Failures []failureResponse `json:"failures"`
}

type failureResponse struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	s.renderPage(w, http.StatusOK, pageData{})
}

// uploadHandler serves the HTML form submission
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.processUpload(w, r)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyBatch) {
			s.renderPage(w, http.StatusOK, pageData{
				Warning:  noRecordsWarning,
				Failures: failuresOf(out),
			})
			return
		}
		status := statusFor(err)
		s.renderPage(w, status, pageData{Error: userMessage(err, status)})
		return
	}

	s.renderPage(w, http.StatusOK, pageData{
		Success:     true,
		Columns:     metadata.Columns,
		Records:     out.Result.Records,
		Failures:    failuresOf(out),
		Filename:    out.Filename,
		DownloadURL: template.URL(dataURI(out.Report)), //nolint:gosec // generated workbook, not user input
	})
}

// extractHandler returns the workbook itself, or JSON records when asked
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.processUpload(w, r)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, pipeline.ErrEmptyBatch) {
			writeJSON(w, status, map[string]any{
				"error":    err.Error(),
				"failures": failuresOf(out),
			})
			return
		}
		writeError(w, status, userMessage(err, status))
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, extractResponse{
			BatchID:  out.BatchID,
			Records:  out.Result.Records,
			Failures: failuresOf(out),
		})
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Report)))
	w.Header().Set("X-Batch-ID", out.BatchID)
	w.Header().Set("X-Record-Count", strconv.Itoa(len(out.Result.Records)))
	w.Header().Set("X-Failure-Count", strconv.Itoa(len(out.Result.Failures)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Report)
}

// processUpload reads the multipart archive and runs it through the pipeline.
// On ErrEmptyBatch the output is returned alongside the error.
func (s *Server) processUpload(w http.ResponseWriter, r *http.Request) (*pipeline.Output, error) {
	if r.ContentLength > s.maxUploadSize {
		return nil, errUploadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errUploadTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errMissingUpload
		}
		return nil, fmt.Errorf("%w: %v", errMissingUpload, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(formField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingUpload
		}
		return nil, fmt.Errorf("%w: %v", errMissingUpload, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	s.logger.Debug().
		Str("upload", header.Filename).
		Int64("size", header.Size).
		Msg("archive received")

	return s.processor.ProcessArchive(r.Context(), file, header.Size)
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	var extractErr *pdf.ExtractError
	switch {
	case errors.Is(err, errUploadTooLarge),
		errors.Is(err, archive.ErrEntryTooLarge),
		errors.Is(err, archive.ErrArchiveTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMissingUpload),
		errors.Is(err, archive.ErrInvalidArchive),
		errors.Is(err, archive.ErrUnsafePath):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrEmptyBatch),
		errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessage hides internal failures behind a generic message
func userMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal error while processing the archive"
	}
	return err.Error()
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func failuresOf(out *pipeline.Output) []failureResponse {
	if out == nil || out.Result == nil {
		return []failureResponse{}
	}
	return toFailureResponses(out.Result.Failures)
}

func toFailureResponses(failures []batch.FileFailure) []failureResponse {
	resp := make([]failureResponse, 0, len(failures))
	for _, f := range failures {
		resp = append(resp, failureResponse{Filename: f.Filename, Error: f.Message()})
	}
	return resp
}

// dataURI embeds the workbook in the page so no download state is kept
func dataURI(data []byte) string {
	return "data:" + report.ContentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
