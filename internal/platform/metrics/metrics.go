// Package metrics exposes Prometheus instrumentation for the blood-bank
// service. All methods are safe to call on a nil *Metrics so domain services
// can run uninstrumented in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPDuration     *prometheus.HistogramVec
	UnitTransitions  *prometheus.CounterVec
	UnitsCollected   *prometheus.CounterVec
	Eligibility      *prometheus.CounterVec
	Transfusions     *prometheus.CounterVec
	DeferralChanges  *prometheus.CounterVec
	ExpiredSweepRuns prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodbank_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),

		UnitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_unit_status_transitions_total",
			Help: "Blood unit status transitions by source and target status",
		}, []string{"from", "to"}),

		UnitsCollected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_units_collected_total",
			Help: "Blood units recorded, by blood type",
		}, []string{"blood_type"}),

		Eligibility: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_eligibility_evaluations_total",
			Help: "Donor eligibility evaluations by outcome and deciding rule",
		}, []string{"eligible", "rule"}),

		Transfusions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_transfusions_total",
			Help: "Transfusion records created or retracted",
		}, []string{"operation"}),

		DeferralChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodbank_deferral_status_changes_total",
			Help: "Donor deferral status writes by resulting status",
		}, []string{"status"}),

		ExpiredSweepRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "bloodbank_expiry_sweep_runs_total",
			Help: "Explicit expiry sweeps executed",
		}),
	}
}

func (m *Metrics) ObserveUnitTransition(from, to string) {
	if m != nil {
		m.UnitTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncUnitsCollected(bloodType string) {
	if m != nil {
		m.UnitsCollected.WithLabelValues(bloodType).Inc()
	}
}

// ObserveEligibility records an evaluation; rule names the check that decided it.
func (m *Metrics) ObserveEligibility(eligible bool, rule string) {
	if m != nil {
		m.Eligibility.WithLabelValues(strconv.FormatBool(eligible), rule).Inc()
	}
}

func (m *Metrics) IncTransfusion(operation string) {
	if m != nil {
		m.Transfusions.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncDeferralChange(status string) {
	if m != nil {
		m.DeferralChanges.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncSweepRun() {
	if m != nil {
		m.ExpiredSweepRuns.Inc()
	}
}

// Middleware records request latency labelled by the matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPDuration.WithLabelValues(c.Request().Method, route, strconv.Itoa(code)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
