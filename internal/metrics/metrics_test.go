package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	hists    map[string][]Labels
	flushErr error
}

func newRecorder() *recorder {
	return &recorder{counters: map[string]float64{}, hists: map[string][]Labels{}}
}

func (r *recorder) IncCounter(name string, delta float64, _ Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recorder) ObserveHistogram(name string, _ float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists[name] = append(r.hists[name], labels)
}

func (r *recorder) Flush() error { return r.flushErr }

func TestSetBackend(t *testing.T) {
	rec := newRecorder()
	rec.flushErr = errors.New("flush failed")
	SetBackend(rec)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(RulesTotal, 2, Labels{"status": "ok"})
	IncCounter(RulesTotal, 1, nil)
	ObserveStep("profile", time.Now(), nil)
	ObserveStep("alerts", time.Now(), errors.New("x"))

	assert.Equal(t, 3.0, rec.counters[RulesTotal])
	require.Len(t, rec.hists[StepDurationSeconds], 2)
	assert.Equal(t, Labels{"step": "profile", "status": "ok"}, rec.hists[StepDurationSeconds][0])
	assert.Equal(t, "error", rec.hists[StepDurationSeconds][1]["status"])
	assert.EqualError(t, Flush(), "flush failed")
}

func TestNilBackendRestoresNop(t *testing.T) {
	SetBackend(nil)
	IncCounter(AlertsTotal, 1, nil)
	assert.NoError(t, Flush())
}
