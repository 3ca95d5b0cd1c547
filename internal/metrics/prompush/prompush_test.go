package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xtract/internal/metrics"
)

func TestNewBackend_Validation(t *testing.T) {
	_, err := NewBackend("", "http://localhost:9091", nil)
	require.Error(t, err)
	_, err = NewBackend("xtract", " ", nil)
	require.Error(t, err)
}

func TestCollectors(t *testing.T) {
	b, err := NewBackend("xtract", "http://localhost:9091", nil)
	require.NoError(t, err)

	b.IncCounter(metrics.ColumnsTotal, 2, metrics.Labels{"type": "Float"})
	b.IncCounter(metrics.ColumnsTotal, 1, nil)
	b.IncCounter(metrics.RowsTotal, 10, nil)
	b.IncCounter(metrics.AlertsTotal, 0, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, metrics.Labels{"step": "profile", "status": "ok"})

	assert.Equal(t, 2.0, testutil.ToFloat64(b.columns.WithLabelValues("Float")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.columns.WithLabelValues("unknown")))
	assert.Equal(t, 10.0, testutil.ToFloat64(b.rows))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.alerts))
	assert.Equal(t, 1, testutil.CollectAndCount(b.duration))
}

func TestFlush_PushesToGateway(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("xtract", srv.URL, map[string]string{"instance": "ci"})
	require.NoError(t, err)
	b.IncCounter(metrics.RulesTotal, 3, metrics.Labels{"status": "ok"})

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "PUT /metrics/job/xtract/instance/ci", paths[0])
	assert.NotEmpty(t, bodies[0])
}

func TestFlush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("xtract", srv.URL, nil)
	require.NoError(t, err)
	err = b.Flush()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "prompush: push:"))
}
