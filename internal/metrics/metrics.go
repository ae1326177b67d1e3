// Package metrics exposes Prometheus counters for Firefly III calls and
// import outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fireflyiii/pkg/firefly"
)

const namespace = "fireflyiii"

// Recorder owns its registry so several instances can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	imports     *prometheus.CounterVec
	ledgerRows  *prometheus.GaugeVec
}

var _ firefly.Observer = (*Recorder)(nil)

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Firefly III API requests by method and status code (0 = no response).",
			},
			[]string{"method", "code"},
		),
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Firefly III API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Import outcomes by status.",
			},
			[]string{"status"},
		),
		ledgerRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_rows",
				Help:      "Rows in the import ledger by status.",
			},
			[]string{"status"},
		),
	}

	r.registry.MustRegister(
		r.apiRequests,
		r.apiDuration,
		r.imports,
		r.ledgerRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRequest implements firefly.Observer.
func (r *Recorder) ObserveRequest(method, _ string, status int, elapsed time.Duration) {
	r.apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.apiDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordImport counts one import outcome.
func (r *Recorder) RecordImport(status string) {
	r.imports.WithLabelValues(status).Inc()
}

// SetLedgerRows publishes the current row count per ledger status.
func (r *Recorder) SetLedgerRows(counts map[string]int64) {
	for status, n := range counts {
		r.ledgerRows.WithLabelValues(status).Set(float64(n))
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
