// Package metadata maps raw document text to bibliographic records using a
// fixed, ordered set of pattern rules. Every rule is independent and a miss
// yields the NotFound placeholder, so parsing never fails.
package metadata

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// IssueMatch selects how the issue marker is recognised
type IssueMatch string

const (
	// IssueMatchWord requires "No" to start a word, so "Casino 7" is not an issue
	IssueMatchWord IssueMatch = "word"
	// IssueMatchSubstring matches "No" anywhere, including inside other words
	IssueMatchSubstring IssueMatch = "substring"
)

// Publishers is the closed vocabulary searched by the publisher rule, in
// alternation order
var Publishers = []string{
	"Elsevier",
	"Springer",
	"IEEE",
	"Wiley",
	"ACM",
	"Taylor & Francis",
	"Nature",
	"Science",
	"AMS",
}

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var (
	doiPattern       = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[-._;()/:A-Z0-9]+`)
	publisherPattern = regexp.MustCompile(`(?i)(` + alternation(Publishers) + `)`)
	volumePattern    = regexp.MustCompile(`(?i)Vol\.?\s*(\d+)`)
	pagesPattern     = regexp.MustCompile(`(\d+)\s*[-–]\s*(\d+)`)
	yearPattern      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	datePattern      = regexp.MustCompile(`(?i)(` + strings.Join(months, "|") + `)\s+\d{4}`)

	issueWordPattern      = regexp.MustCompile(`(?i)\bNo\.?\s*(\d+)`)
	issueSubstringPattern = regexp.MustCompile(`(?i)No\.?\s*(\d+)`)
)

// Parser extracts records from document text. The zero value is not usable;
// construct one with NewParser.
type Parser struct {
	issuePattern *regexp.Regexp
}

// NewParser creates a parser using the given issue matching mode
func NewParser(mode IssueMatch) (*Parser, error) {
	switch mode {
	case IssueMatchWord, "":
		return &Parser{issuePattern: issueWordPattern}, nil
	case IssueMatchSubstring:
		return &Parser{issuePattern: issueSubstringPattern}, nil
	default:
		return nil, fmt.Errorf("unknown issue match mode: %q", mode)
	}
}

var defaultParser = &Parser{issuePattern: issueWordPattern}

// Parse runs the default rule set over a document. fullText is the
// concatenated text of all pages and firstPageLines the line-split text of
// the first page.
func Parse(fullText string, firstPageLines []string) Record {
	return defaultParser.Parse("", fullText, firstPageLines)
}

// Parse builds a record for filename from the document text. An empty
// filename is stored as NotFound.
func (p *Parser) Parse(filename, fullText string, firstPageLines []string) Record {
	text := normalizeSpace(fullText)

	return Record{
		Filename:        orNotFound(filename),
		Title:           lineAt(firstPageLines, 0),
		Authors:         lineAt(firstPageLines, 1),
		DOI:             firstMatch(doiPattern, text, 0),
		Publisher:       canonicalPublisher(firstMatch(publisherPattern, text, 0)),
		Volume:          firstMatch(volumePattern, text, 1),
		Issue:           firstMatch(p.issuePattern, text, 1),
		Pages:           firstMatch(pagesPattern, text, 0),
		Year:            firstMatch(yearPattern, text, 0),
		PublicationDate: firstMatch(datePattern, text, 0),
	}
}

// firstMatch returns capture group of the leftmost match, or NotFound
func firstMatch(re *regexp.Regexp, text string, group int) string {
	m := re.FindStringSubmatch(text)
	if m == nil || group >= len(m) || m[group] == "" {
		return NotFound
	}
	return m[group]
}

// normalizeSpace maps every Unicode space, including line breaks and
// non-breaking spaces, to an ASCII space. RE2 \s and \b only know ASCII.
func normalizeSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func lineAt(lines []string, i int) string {
	if i >= len(lines) {
		return NotFound
	}
	return orNotFound(strings.TrimSpace(lines[i]))
}

func orNotFound(s string) string {
	if s == "" {
		return NotFound
	}
	return s
}

// canonicalPublisher maps a case-insensitive match back to the vocabulary spelling
func canonicalPublisher(match string) string {
	for _, name := range Publishers {
		if strings.EqualFold(name, match) {
			return name
		}
	}
	return match
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
