package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxTextSize caps the text kept per document
const DefaultMaxTextSize = 10 * 1024 * 1024

// Document is the text content of one PDF
type Document struct {
	Path           string
	Pages          int
	Size           int64
	Text           string
	FirstPageLines []string
}

// Reader extracts text from PDF files
type Reader struct {
	validator   *Validator
	maxTextSize int
}

// NewReader creates a new PDF reader with the specified constraints
func NewReader(validator *Validator) *Reader {
	return &Reader{
		validator:   validator,
		maxTextSize: DefaultMaxTextSize,
	}
}

// Extract validates the file at path and returns its full text and the
// line-split text of its first page
func (r *Reader) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size, err := r.validator.ValidateFile(path)
	if err != nil {
		return nil, &ExtractError{Path: path, Op: "validate", Err: err}
	}

	doc, err := r.extract(path)
	if err != nil {
		return nil, &ExtractError{Path: path, Op: "extract", Err: err}
	}
	doc.Size = size

	return doc, nil
}

// extract opens the file with ledongthuc/pdf. The library panics on some
// malformed inputs, so panics are turned into errors here.
func (r *Reader) extract(path string) (doc *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()

	f, pdfReader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	doc = &Document{
		Path:  path,
		Pages: pdfReader.NumPage(),
	}
	doc.Text, doc.FirstPageLines = r.extractText(pdfReader)

	return doc, nil
}

// extractText joins the lines of every page, capped at maxTextSize, and
// returns the lines of the first page separately
func (r *Reader) extractText(pdfReader *pdf.Reader) (string, []string) {
	var builder strings.Builder
	var first []string

	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		lines := pageLines(pdfReader.Page(pageNum))
		if pageNum == 1 {
			first = lines
		}

		if builder.Len() >= r.maxTextSize {
			break
		}
		if pageNum > 1 {
			builder.WriteString("\n")
		}

		content := strings.Join(lines, "\n")
		if remaining := r.maxTextSize - builder.Len(); len(content) > remaining {
			content = content[:max(remaining, 0)]
		}
		builder.WriteString(content)
	}

	return builder.String(), first
}
