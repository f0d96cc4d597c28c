package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Credit("task", 10)
	m.Debit("withdrawal", 10)
	m.TaskCompleted("once")
	m.Withdrawal("pending")
	m.AuthEvent("login")
	m.Failure("op", "kind")
	m.AuditMismatches(3)

	h := m.Instrument(func(*http.Request) string { return "/x" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Credit("task", 100)
	m.Credit("task", 50)
	m.Debit("withdrawal", 500)
	m.Withdrawal("approved")

	assert.Equal(t, 150.0, testutil.ToFloat64(m.coinsCredited.WithLabelValues("task")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.coinsDebited.WithLabelValues("withdrawal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.withdrawals.WithLabelValues("approved")))
}

func TestInstrumentRecordsStatus(t *testing.T) {
	m := New(prometheus.NewRegistry())
	h := m.Instrument(func(r *http.Request) string { return r.URL.Path })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/tasks", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodPost, "/api/tasks", "409")))
}

func TestRegisterPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := PoolStats{Total: 4, Idle: 1, Acquired: 3}
	RegisterPool(reg, func() PoolStats { return stats })

	families, err := reg.Gather()
	assert.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		got[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"rewardhub_db_pool_connections":          4,
		"rewardhub_db_pool_idle_connections":     1,
		"rewardhub_db_pool_acquired_connections": 3,
	}, got)

	stats.Acquired = 0
	families, err = reg.Gather()
	assert.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "rewardhub_db_pool_acquired_connections" {
			assert.Equal(t, 0.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
}
