// Package pipeline runs one uploaded archive end to end: unpack into a
// scratch directory, extract metadata from every PDF, render the report and
// release the scratch space.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/a3tai/doi-metadata-extractor/internal/archive"
	"github.com/a3tai/doi-metadata-extractor/internal/batch"
	"github.com/a3tai/doi-metadata-extractor/internal/metadata"
	"github.com/a3tai/doi-metadata-extractor/internal/observability"
	"github.com/a3tai/doi-metadata-extractor/internal/report"
)

// ErrEmptyBatch is returned when an archive yields no records
var ErrEmptyBatch = errors.New("no PDFs found or DOI metadata not extracted")

// Options configures a Service
type Options struct {
	// ScratchDirectory is the parent of per-upload work directories. Empty
	// means the system temp directory.
	ScratchDirectory string
	Limits           archive.Limits
}

// Output is the outcome of one archive
type Output struct {
	BatchID  string
	Result   *batch.Result
	Report   []byte
	Filename string
	Duration time.Duration
}

// Service processes archives. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	runner  *batch.Runner
	writer  *report.Writer
	opts    Options
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewService creates a pipeline service
func NewService(runner *batch.Runner, writer *report.Writer, opts Options,
	metrics *observability.Metrics, logger zerolog.Logger,
) (*Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer cannot be nil")
	}

	return &Service{
		runner:  runner,
		writer:  writer,
		opts:    opts,
		metrics: metrics,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// ProcessArchive processes a ZIP archive of size bytes read from r
func (s *Service) ProcessArchive(ctx context.Context, r io.ReaderAt, size int64) (*Output, error) {
	return s.process(ctx, func(ctx context.Context, dest string) error {
		_, err := archive.Extract(ctx, r, size, dest, s.opts.Limits)
		return err
	})
}

// ProcessArchiveFile processes the ZIP archive at path
func (s *Service) ProcessArchiveFile(ctx context.Context, path string) (*Output, error) {
	return s.process(ctx, func(ctx context.Context, dest string) error {
		_, err := archive.ExtractFile(ctx, path, dest, s.opts.Limits)
		return err
	})
}

// ProcessFile extracts the metadata of a single PDF
func (s *Service) ProcessFile(ctx context.Context, path string) (metadata.Record, error) {
	return s.runner.ProcessFile(ctx, path)
}

func (s *Service) process(ctx context.Context, unpack func(context.Context, string) error) (out *Output, err error) {
	start := time.Now()
	batchID := uuid.NewString()
	logger := s.logger.With().Str("batch_id", batchID).Logger()

	defer func() {
		outcome := observability.BatchSucceeded
		switch {
		case errors.Is(err, ErrEmptyBatch):
			outcome = observability.BatchEmpty
		case err != nil:
			outcome = observability.BatchFailed
		}
		s.metrics.ObserveBatch(outcome, time.Since(start))
	}()

	scratch, err := os.MkdirTemp(s.opts.ScratchDirectory, "upload-"+batchID+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Error().Err(rmErr).Str("dir", scratch).Msg("failed to remove scratch directory")
		}
	}()

	if err := unpack(ctx, scratch); err != nil {
		logger.Warn().Err(err).Msg("archive rejected")
		return nil, err
	}

	result, err := s.runner.Run(ctx, scratch)
	if err != nil {
		return nil, err
	}

	out = &Output{
		BatchID:  batchID,
		Result:   result,
		Filename: report.DefaultFilename,
	}

	if result.Empty() {
		logger.Warn().Int("failures", len(result.Failures)).Msg("archive produced no records")
		out.Duration = time.Since(start)
		return out, ErrEmptyBatch
	}

	out.Report, err = s.writer.Write(result)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	s.metrics.ObserveReport(len(out.Report))
	out.Duration = time.Since(start)

	logger.Info().
		Int("records", len(result.Records)).
		Int("failures", len(result.Failures)).
		Int("report_bytes", len(out.Report)).
		Dur("elapsed", out.Duration).
		Msg("report generated")

	return out, nil
}
