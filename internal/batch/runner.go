// Package batch walks an extracted archive and turns every PDF in it into a
// metadata record.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/observability"
	"github.com/a3tai/doi-metadata-extractor/internal/pdf"
)

// FailurePolicy decides what happens when one PDF cannot be read
type FailurePolicy string

const (
	// PolicySkip records the failure and continues with the next file
	PolicySkip FailurePolicy = "skip"
	// PolicyAbort stops the batch at the first failure
	PolicyAbort FailurePolicy = "abort"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(s)) {
	case PolicySkip, "":
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy: %q (must be one of: skip, abort)", s)
	}
}

// Extractor returns the text of one PDF
type Extractor interface {
	Extract(ctx context.Context, path string) (*pdf.Document, error)
}

// FileFailure marks a PDF that was skipped
type FileFailure struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Err      error  `json:"-"`
}

// Message returns the failure reason
func (f FileFailure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Result is the ordered outcome of one batch
type Result struct {
	Records  []metadata.Record
	Failures []FileFailure
}

// Empty reports whether no record was produced
func (r *Result) Empty() bool {
	return r == nil || len(r.Records) == 0
}

// Runner processes every PDF below a directory
type Runner struct {
	extractor Extractor
	parser    *metadata.Parser
	policy    FailurePolicy
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewRunner creates a batch runner. metrics may be nil.
func NewRunner(extractor Extractor, parser *metadata.Parser, policy FailurePolicy,
	metrics *observability.Metrics, logger zerolog.Logger,
) *Runner {
	if policy == "" {
		policy = PolicySkip
	}
	return &Runner{
		extractor: extractor,
		parser:    parser,
		policy:    policy,
		metrics:   metrics,
		logger:    logger.With().Str("component", "batch").Logger(),
	}
}

// Run extracts a record from each PDF below dir, in lexicographic order of
// the path relative to dir. A directory without PDFs yields an empty result
// and no error.
func (r *Runner) Run(ctx context.Context, dir string) (*Result, error) {
	paths, err := FindPDFs(dir)
	if err != nil {
		return nil, err
	}

	result := &Result{Records: make([]metadata.Record, 0, len(paths))}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.ProcessFile(ctx, path)
		if err != nil {
			if r.policy == PolicyAbort || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("process %s: %w", filepath.Base(path), err)
			}

			r.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("skipping unreadable PDF")
			result.Failures = append(result.Failures, FileFailure{
				Filename: filepath.Base(path),
				Path:     path,
				Err:      err,
			})
			continue
		}

		result.Records = append(result.Records, rec)
	}

	r.logger.Info().
		Int("records", len(result.Records)).
		Int("failures", len(result.Failures)).
		Msg("batch finished")

	return result, nil
}

// ProcessFile extracts and parses a single PDF
func (r *Runner) ProcessFile(ctx context.Context, path string) (metadata.Record, error) {
	start := time.Now()

	doc, err := r.extractor.Extract(ctx, path)
	if err != nil {
		r.metrics.ObserveFile(observability.OutcomeFailed, time.Since(start))
		return metadata.Record{}, err
	}

	rec := r.parser.Parse(filepath.Base(path), doc.Text, doc.FirstPageLines)
	r.metrics.ObserveFile(observability.OutcomeExtracted, time.Since(start))
	r.metrics.ObserveMissing(rec.Missing())

	r.logger.Debug().
		Str("file", rec.Filename).
		Int("pages", doc.Pages).
		Strs("missing", rec.Missing()).
		Msg("extracted metadata")

	return rec, nil
}

// FindPDFs returns the PDF files below dir sorted by relative path. macOS
// resource fork entries are skipped.
func FindPDFs(dir string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if d.Name() == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), "._") {
			return nil
		}

		if pdf.IsPDFName(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(paths, func(i, j int) bool {
		return filepath.ToSlash(paths[i]) < filepath.ToSlash(paths[j])
	})

	return paths, nil
}
