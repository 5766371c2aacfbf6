package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector("loregraph")

	c.RecordRun(ModeMulti, OutcomeSuccess, 20*time.Millisecond)
	c.RecordRun(ModeMulti, OutcomeSuccess, 30*time.Millisecond)
	c.RecordRun(ModeSingle, OutcomeLoadFailed, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DetectionRuns.WithLabelValues(ModeMulti, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DetectionRuns.WithLabelValues(ModeSingle, OutcomeLoadFailed)))
}

func TestCollector_RecordLevel(t *testing.T) {
	c := NewCollector("loregraph")

	c.RecordLevel(0, 12, 3, true)
	c.RecordLevel(1, 2, 100, false)

	assert.Equal(t, 12.0, testutil.ToFloat64(c.Communities.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Communities.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ConvergenceWarning))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("loregraph")
	b := NewCollector("loregraph")
	a.RecordHTTP(http.MethodGet, "/communities/:id", http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.HTTPRequests.WithLabelValues(http.MethodGet, "/communities/:id", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HTTPRequests.WithLabelValues(http.MethodGet, "/communities/:id", "200")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("loregraph")
	c.RecordRun(ModeSingle, OutcomeSuccess, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `loregraph_detection_runs_total{mode="single",outcome="success"} 1`))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordRun(ModeSingle, OutcomeSuccess, time.Second)
		c.RecordLevel(0, 1, 1, false)
		c.RecordHTTP(http.MethodGet, "/", http.StatusOK)
	})
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
