package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/metrics"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.RecordsTotal.WithLabelValues("remoteok", metrics.OutcomeAdmitted).Inc()
	a.RecordsTotal.WithLabelValues("remoteok", metrics.OutcomeAdmitted).Inc()
	a.BreakerState.WithLabelValues("remoteok").Set(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.RecordsTotal.WithLabelValues("remoteok", metrics.OutcomeAdmitted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.BreakerState.WithLabelValues("remoteok")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.RecordsTotal))
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.BacklogSize.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ingest_backlog_size 3")
}
