// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway. Collectors live in a private registry; Flush pushes the whole
// registry under the configured job name, replacing the previous push.
package prompush

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"xtract/internal/metrics"
)

// Backend buffers metrics in Prometheus collectors.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	columns  *prometheus.CounterVec
	rules    *prometheus.CounterVec
	rows     prometheus.Counter
	alerts   prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewBackend registers the collectors and prepares a pusher for gatewayURL.
// grouping adds extra grouping labels (e.g. instance) to every push.
func NewBackend(job, gatewayURL string, grouping map[string]string) (*Backend, error) {
	if strings.TrimSpace(job) == "" {
		return nil, fmt.Errorf("prompush: empty job name")
	}
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	return newBackend(job, gatewayURL, grouping, http.DefaultClient)
}

func newBackend(job, gatewayURL string, grouping map[string]string, client push.HTTPDoer) (*Backend, error) {
	b := &Backend{
		reg: prometheus.NewRegistry(),
		columns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ColumnsTotal,
			Help: "Columns profiled, by column type.",
		}, []string{"type"}),
		rules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RulesTotal,
			Help: "Rules processed, by outcome.",
		}, []string{"status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows scanned by the profiler.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.AlertsTotal,
			Help: "Alerts emitted by the evaluator.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Duration of pipeline steps.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"step", "status"}),
	}

	for _, c := range []prometheus.Collector{b.columns, b.rules, b.rows, b.alerts, b.duration} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}

	p := push.New(gatewayURL, job).Gatherer(b.reg).Client(client)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	b.pusher = p
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.ColumnsTotal:
		b.columns.WithLabelValues(label(labels, "type")).Add(delta)
	case metrics.RulesTotal:
		b.rules.WithLabelValues(label(labels, "status")).Add(delta)
	case metrics.RowsTotal:
		b.rows.Add(delta)
	case metrics.AlertsTotal:
		b.alerts.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || value < 0 {
		return
	}
	b.duration.WithLabelValues(label(labels, "step"), label(labels, "status")).Observe(value)
}

// Flush pushes the registry to the gateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Gatherer exposes the registry, mainly for tests and debug endpoints.
func (b *Backend) Gatherer() prometheus.Gatherer { return b.reg }

func label(labels metrics.Labels, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return "unknown"
}

var _ metrics.Backend = (*Backend)(nil)
