package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveProcess(t *testing.T) {
	m := New()

	m.ObserveProcess("vectorizer", OutcomeOK, 3, 10*time.Millisecond)
	m.ObserveProcess("vectorizer", OutcomeInvalidInput, 5, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("vectorizer", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("vectorizer", OutcomeInvalidInput)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rows.WithLabelValues("vectorizer")))
}

func TestGaugesAndCounters(t *testing.T) {
	m := New()

	m.SetReady("lid", true)
	m.ObserveLoad("lid", 2*time.Second)
	m.AddDownloadBytes(1024)
	m.AddDownloadBytes(-1)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.SetHostResources(100, 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready.WithLabelValues("lid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loadSeconds.WithLabelValues("lid")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.downloadBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.diskFree))

	m.SetReady("lid", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ready.WithLabelValues("lid")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveProcess("x", OutcomeOK, 1, time.Second)
		m.ObserveLoad("x", time.Second)
		m.SetReady("x", true)
		m.AddDownloadBytes(1)
		m.CacheLookup(true)
		m.SetHostResources(1, 1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetReady("vectorizer", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `fasttext_service_ready{service="vectorizer"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
