package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
	structural  bool
}

// NewValidator creates a new PDF validator. When structural is set, files
// are also parsed with pdfcpu in relaxed mode before text extraction.
func NewValidator(maxFileSize int64, structural bool) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
		structural:  structural,
	}
}

// IsPDFName reports whether name carries a .pdf extension, ignoring case
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// ValidateFile checks the file on disk and returns its size
func (v *Validator) ValidateFile(filePath string) (int64, error) {
	if filePath == "" {
		return 0, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("cannot access file: %w", err)
	}

	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return 0, err
	}

	if v.structural {
		if err := v.validateStructure(filePath); err != nil {
			return 0, err
		}
	}

	return fileInfo.Size(), nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, filePath)
	}

	if !IsPDFName(filePath) {
		return fmt.Errorf("%w: %s", ErrNotPDF, filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d bytes)",
			ErrTooLarge, fileInfo.Size(), v.maxFileSize)
	}

	return nil
}

// validateStructure parses the cross reference table and page tree with pdfcpu
func (v *Validator) validateStructure(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return fmt.Errorf("%w: page tree: %v", ErrMalformed, err)
	}

	return nil
}
