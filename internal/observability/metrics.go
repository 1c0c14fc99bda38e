package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name
const Namespace = "doi_meta"

// File outcomes
const (
	OutcomeExtracted = "extracted"
	OutcomeFailed    = "failed"
)

// Batch outcomes
const (
	BatchSucceeded = "succeeded"
	BatchEmpty     = "empty"
	BatchFailed    = "failed"
)

// Metrics contains the Prometheus collectors for the extraction pipeline.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Batches counts processed archives by outcome.
	Batches *prometheus.CounterVec

	// BatchDuration observes the end-to-end duration of one archive in seconds.
	BatchDuration prometheus.Histogram

	// Files counts PDFs by outcome.
	Files *prometheus.CounterVec

	// FileDuration observes text extraction and parsing time per PDF in seconds.
	FileDuration prometheus.Histogram

	// FieldsNotFound counts fields that fell back to the placeholder, by field.
	FieldsNotFound *prometheus.CounterVec

	// ReportBytes observes the size of generated spreadsheets.
	ReportBytes prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_total",
			Help:      "Total number of archives processed, by outcome",
		}, []string{"outcome"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time taken to process one archive",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "files_total",
			Help:      "Total number of PDF files processed, by outcome",
		}, []string{"outcome"}),
		FileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "file_duration_seconds",
			Help:      "Time taken to extract metadata from one PDF",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		FieldsNotFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fields_not_found_total",
			Help:      "Total number of fields with no match, by field",
		}, []string{"field"}),
		ReportBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "report_bytes",
			Help:      "Size of generated spreadsheets in bytes",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
		}),
	}
}

// ObserveBatch records one archive outcome
func (m *Metrics) ObserveBatch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
	m.BatchDuration.Observe(d.Seconds())
}

// ObserveFile records one PDF outcome
func (m *Metrics) ObserveFile(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(outcome).Inc()
	m.FileDuration.Observe(d.Seconds())
}

// ObserveMissing counts the placeholder fields of one record
func (m *Metrics) ObserveMissing(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.FieldsNotFound.WithLabelValues(f).Inc()
	}
}

// ObserveReport records the size of a generated spreadsheet
func (m *Metrics) ObserveReport(size int) {
	if m == nil {
		return
	}
	m.ReportBytes.Observe(float64(size))
}
