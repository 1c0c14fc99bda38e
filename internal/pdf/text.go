package pdf

import (
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// lineTolerance is the vertical drift, in text space units, still
	// treated as the same line
	lineTolerance = 1.0

	// kerningSpace is the TJ adjustment, in thousandths of a text space
	// unit, beyond which a gap reads as a word break
	kerningSpace = 200
)

// pageLines returns the text lines drawn on page in content stream order.
// Blank lines are dropped.
func pageLines(page pdf.Page) []string {
	if page.V.IsNull() {
		return nil
	}

	b := &lineBuilder{}
	contents := page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		b.interpret(page, contents)
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			if part := contents.Index(i); part.Kind() == pdf.Stream {
				b.interpret(page, part)
			}
		}
	}
	return b.lines()
}

// lineBuilder follows the text positioning operators of a content stream
// and starts a new line whenever text is shown at a different baseline
type lineBuilder struct {
	out     []string
	line    strings.Builder
	open    bool
	lineY   float64
	y       float64
	leading float64
	space   bool
	enc     pdf.TextEncoding
}

func (b *lineBuilder) interpret(page pdf.Page, strm pdf.Value) {
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "BT":
			b.y = 0
			b.space = true
		case "Tf":
			if len(args) == 2 {
				b.enc = page.Font(args[0].Name()).Encoder()
			}
		case "TL":
			if len(args) == 1 {
				b.leading = args[0].Float64()
			}
		case "Td", "TD":
			if len(args) == 2 {
				ty := args[1].Float64()
				if op == "TD" {
					b.leading = -ty
				}
				b.y += ty
				b.space = true
			}
		case "Tm":
			if len(args) == 6 {
				b.y = args[5].Float64()
				b.space = true
			}
		case "T*":
			b.nextLine()
		case "Tj":
			if len(args) == 1 {
				b.show(args[0])
			}
		case "'":
			b.nextLine()
			if len(args) == 1 {
				b.show(args[0])
			}
		case "\"":
			b.nextLine()
			if len(args) == 3 {
				b.show(args[2])
			}
		case "TJ":
			if len(args) == 1 {
				b.showArray(args[0])
			}
		}
	})
}

func (b *lineBuilder) show(v pdf.Value) {
	if v.Kind() != pdf.String {
		return
	}
	s := v.RawString()
	if b.enc != nil {
		s = b.enc.Decode(s)
	}
	if s == "" {
		return
	}

	if b.open && math.Abs(b.y-b.lineY) > lineTolerance {
		b.flush()
	}
	if !b.open {
		b.open = true
		b.lineY = b.y
	} else if b.space && !strings.HasSuffix(b.line.String(), " ") && !strings.HasPrefix(s, " ") {
		b.line.WriteByte(' ')
	}
	b.space = false
	b.line.WriteString(s)
}

func (b *lineBuilder) showArray(v pdf.Value) {
	for i := 0; i < v.Len(); i++ {
		x := v.Index(i)
		switch x.Kind() {
		case pdf.String:
			b.show(x)
		case pdf.Integer, pdf.Real:
			if x.Float64() < -kerningSpace {
				b.space = true
			}
		}
	}
}

// nextLine always breaks, even when no leading was set
func (b *lineBuilder) nextLine() {
	b.y -= b.leading
	b.flush()
}

func (b *lineBuilder) flush() {
	if b.open {
		b.out = append(b.out, b.line.String())
	}
	b.line.Reset()
	b.open = false
	b.space = false
}

func (b *lineBuilder) lines() []string {
	b.flush()

	lines := make([]string, 0, len(b.out))
	for _, l := range b.out {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
