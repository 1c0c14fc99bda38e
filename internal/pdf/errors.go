package pdf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by the reader and validator
var (
	ErrNotPDF      = errors.New("file is not a PDF")
	ErrIsDirectory = errors.New("path is a directory, not a file")
	ErrEmptyFile   = errors.New("file is empty")
	ErrTooLarge    = errors.New("file too large")
	ErrMalformed   = errors.New("malformed PDF")
)

// ExtractError describes a failure to read one PDF
type ExtractError struct {
	Path string
	Op   string
	Err  error
}

// Error implements the error interface
func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause
func (e *ExtractError) Unwrap() error {
	return e.Err
}
