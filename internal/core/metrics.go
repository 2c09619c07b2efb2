package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingest outcomes recorded by Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics contains Prometheus metrics for ingestion and queries. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ingestsTotal   *prometheus.CounterVec
	ingestedRows   prometheus.Counter
	ingestedBytes  prometheus.Counter
	ingestDuration prometheus.Histogram
	queryDuration  *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ingestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csvstore_ingests_total",
				Help: "Total number of CSV uploads by outcome",
			},
			[]string{"outcome"}, // success, invalid, rejected, error
		),
		ingestedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csvstore_ingested_rows_total",
			Help: "Total number of records persisted",
		}),
		ingestedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csvstore_ingested_bytes_total",
			Help: "Total number of CSV bytes read from uploads",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "csvstore_ingest_duration_seconds",
			Help: "Time taken to parse and persist an upload",
			// 10ms to ~40s
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csvstore_query_duration_seconds",
				Help:    "Time taken by read and delete operations",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"operation"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.ingestsTotal.Describe(ch)
	m.ingestedRows.Describe(ch)
	m.ingestedBytes.Describe(ch)
	m.ingestDuration.Describe(ch)
	m.queryDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.ingestsTotal.Collect(ch)
	m.ingestedRows.Collect(ch)
	m.ingestedBytes.Collect(ch)
	m.ingestDuration.Collect(ch)
	m.queryDuration.Collect(ch)
}

// RecordIngest records the outcome of one upload.
func (m *Metrics) RecordIngest(outcome string, rows int, bytes int64, seconds float64) {
	if m == nil {
		return
	}
	m.ingestsTotal.WithLabelValues(outcome).Inc()
	m.ingestedBytes.Add(float64(bytes))
	m.ingestDuration.Observe(seconds)
	if outcome == OutcomeSuccess {
		m.ingestedRows.Add(float64(rows))
	}
}

// RecordQuery records the duration of a read or delete operation.
func (m *Metrics) RecordQuery(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(operation).Observe(seconds)
}
