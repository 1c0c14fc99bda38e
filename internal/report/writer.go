// Package report renders batch results as XLSX workbooks.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/doi-metadata-extractor/internal/batch"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
)

const (
	// DefaultFilename is the download name of generated reports
	DefaultFilename = "metadata_output.xlsx"
	// ContentType is the MIME type of XLSX files
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MetadataSheet holds one row per record
	MetadataSheet = "Metadata"
	// ErrorsSheet lists skipped files; only present when there are failures
	ErrorsSheet = "Errors"
)

var errorColumns = []string{"Filename", "Error"}

// column widths in characters, in metadata.Columns order
var columnWidths = []float64{28, 48, 40, 30, 18, 10, 10, 14, 8, 20}

// Writer produces XLSX workbooks
type Writer struct{}

// NewWriter creates a report writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write returns the workbook bytes for result: a header row followed by one
// row per record, in order
func (w *Writer) Write(result *batch.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet so the workbook opens on the metadata
	if err := f.SetSheetName(f.GetSheetName(0), MetadataSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	rows := make([][]string, 0, len(result.Records))
	for _, rec := range result.Records {
		rows = append(rows, rec.Values())
	}
	if err := writeSheet(f, MetadataSheet, metadata.Columns, rows, headerStyle); err != nil {
		return nil, err
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(MetadataSheet, col, col, width)
	}

	if len(result.Failures) > 0 {
		if _, err := f.NewSheet(ErrorsSheet); err != nil {
			return nil, fmt.Errorf("create errors sheet: %w", err)
		}

		failures := make([][]string, 0, len(result.Failures))
		for _, fail := range result.Failures {
			failures = append(failures, []string{fail.Filename, fail.Message()})
		}
		if err := writeSheet(f, ErrorsSheet, errorColumns, failures, headerStyle); err != nil {
			return nil, err
		}
		_ = f.SetColWidth(ErrorsSheet, "A", "A", 28)
		_ = f.SetColWidth(ErrorsSheet, "B", "B", 80)
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSheet writes a styled, frozen header row followed by rows
func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", toAny(header)); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, toAny(row)); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}

	return nil
}

// toAny adapts a string row to the slice pointer SetSheetRow expects
func toAny(values []string) *[]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &out
}
