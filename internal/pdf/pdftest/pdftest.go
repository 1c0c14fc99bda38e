// Package pdftest builds small, well-formed text PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// LineBreak selects the text operator used to move between lines
type LineBreak int

const (
	// NextLine uses T* with a TL leading
	NextLine LineBreak = iota
	// Offset uses a relative "0 -14 Td" move
	Offset
	// Matrix sets an absolute text matrix per line with Tm
	Matrix
)

const (
	leading = 14
	topY    = 720
	leftX   = 72
)

// Page is one page of lines drawn top to bottom in Helvetica 12
type Page struct {
	Lines []string
	Break LineBreak
}

// Build returns the bytes of a PDF with one page per entry
func Build(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{}}
	}

	// objects: 1 catalog, 2 pages, 3 font, then a page and its content per page
	objects := []string{
		"",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		pageNum := len(objects) + 1
		contentNum := pageNum + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))

		stream := contentStream(p)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentNum),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

// WriteFile writes Build(pages...) to path
func WriteFile(path string, pages ...Page) error {
	return os.WriteFile(path, Build(pages...), 0o644)
}

func contentStream(p Page) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n")
	fmt.Fprintf(&b, "%d TL\n", leading)

	for i, line := range p.Lines {
		switch p.Break {
		case Matrix:
			fmt.Fprintf(&b, "1 0 0 1 %d %d Tm\n", leftX, topY-i*leading)
		case Offset:
			if i == 0 {
				fmt.Fprintf(&b, "%d %d Td\n", leftX, topY)
			} else {
				fmt.Fprintf(&b, "0 -%d Td\n", leading)
			}
		default:
			if i == 0 {
				fmt.Fprintf(&b, "%d %d Td\n", leftX, topY)
			} else {
				b.WriteString("T*\n")
			}
		}
		fmt.Fprintf(&b, "(%s) Tj\n", escape(line))
	}

	b.WriteString("ET")
	return b.String()
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}
