package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUnitTransition("Available", "Transfused")
		m.IncUnitsCollected("O-")
		m.ObserveEligibility(false, "interval")
		m.IncTransfusion("create")
		m.IncDeferralChange("Reinstated")
		m.IncSweepRun()
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveUnitTransition("Quarantined", "Available")
	m.ObserveUnitTransition("Quarantined", "Available")
	m.ObserveEligibility(true, "eligible")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnitTransitions.WithLabelValues("Quarantined", "Available")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Eligibility.WithLabelValues("true", "eligible")))
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New()
		_ = New()
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/blood-units/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blood-units/123", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bloodbank_http_request_duration_seconds_count{code="200",method="GET",route="/api/v1/blood-units/:id"} 1`), body)
}
