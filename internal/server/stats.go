package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventql/eventql-sub000/pkg/catalog"
)

const metricsNamespace = "csql"

var errorKinds = []catalog.ErrorKind{
	catalog.KindParseError,
	catalog.KindTableNotFound,
	catalog.KindColumnNotFound,
	catalog.KindTypeError,
	catalog.KindNotConstant,
	catalog.KindRuntimeError,
}

// StatsSnapshot is a copy of the query counters at one point in time.
type StatsSnapshot struct {
	QueriesExecuted  int64
	QueriesSucceeded int64
	QueriesFailed    int64
	TotalQueryTimeNs int64
	RowsReturned     int64

	// failures by error kind name
	Errors map[string]int64

	StartTime time.Time
}

// AvgQueryTimeMs returns the mean query latency in milliseconds.
func (s StatsSnapshot) AvgQueryTimeMs() float64 {
	if s.QueriesExecuted == 0 {
		return 0
	}
	return float64(s.TotalQueryTimeNs) / float64(s.QueriesExecuted) / 1e6
}

// Statistics tracks query metrics of a running server. Every server owns
// its own registry.
type Statistics struct {
	mu       sync.RWMutex
	counters StatsSnapshot

	registry      *prometheus.Registry
	queriesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	rowsReturned  prometheus.Counter
	queryDuration prometheus.Histogram
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	s := &Statistics{
		counters: StatsSnapshot{
			Errors:    make(map[string]int64),
			StartTime: time.Now(),
		},
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "queries_total",
				Help:      "Total number of queries executed.",
			}, []string{"status"}),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "query_errors_total",
				Help:      "Failed queries by error kind.",
			}, []string{"kind"}),
		rowsReturned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rows_returned_total",
				Help:      "Total number of result rows returned.",
			}),
		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "query_duration_seconds",
				Help:      "Query planning and execution latency.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			}),
	}

	s.queriesTotal.WithLabelValues("success")
	s.queriesTotal.WithLabelValues("failed")
	for _, k := range errorKinds {
		s.errorsTotal.WithLabelValues(k.String())
	}

	s.registry.MustRegister(
		s.queriesTotal,
		s.errorsTotal,
		s.rowsReturned,
		s.queryDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// RecordQuery records one query request. err is nil for successful queries.
func (s *Statistics) RecordQuery(err error, durationNs int64, rows int64) {
	s.mu.Lock()
	c := &s.counters
	c.QueriesExecuted++
	c.TotalQueryTimeNs += durationNs
	c.RowsReturned += rows
	if err == nil {
		c.QueriesSucceeded++
	} else {
		c.QueriesFailed++
		c.Errors[catalog.KindOf(err).String()]++
	}
	s.mu.Unlock()

	s.rowsReturned.Add(float64(rows))
	s.queryDuration.Observe(time.Duration(durationNs).Seconds())
	if err == nil {
		s.queriesTotal.WithLabelValues("success").Inc()
	} else {
		s.queriesTotal.WithLabelValues("failed").Inc()
		s.errorsTotal.WithLabelValues(catalog.KindOf(err).String()).Inc()
	}
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.counters
	snap.Errors = make(map[string]int64, len(s.counters.Errors))
	for k, v := range s.counters.Errors {
		snap.Errors[k] = v
	}
	return snap
}

// Handler serves the metrics in the Prometheus exposition format.
func (s *Statistics) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
