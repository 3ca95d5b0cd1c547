// Package metrics is the process-wide metrics facade.
//
// Core packages record through the package-level helpers (IncCounter,
// ObserveHistogram, ObserveStep). The concrete backend (Datadog, Prometheus
// Pushgateway, or nothing) is chosen once by the command and installed with
// SetBackend. Until then every call goes to a no-op backend, so library code
// and tests never need to care whether metrics are configured.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by recorders and backends.
const (
	ColumnsTotal        = "xtract_columns_total"
	RowsTotal           = "xtract_rows_total"
	RulesTotal          = "xtract_rules_total"
	AlertsTotal         = "xtract_alerts_total"
	StepDurationSeconds = "xtract_step_duration_seconds"
)

// Labels are metric dimensions. Backends ignore labels they do not know.
type Labels map[string]string

// Backend receives metric events.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush asks the installed backend to submit buffered data.
func Flush() error { return current().Flush() }

// ObserveStep records the duration of a pipeline step since start.
func ObserveStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), Labels{"step": step, "status": status})
}
