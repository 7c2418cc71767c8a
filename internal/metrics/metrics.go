// Package metrics exposes the staging engine's Prometheus instrumentation.
// All recording methods are nil-safe so callers can run without metrics
// wired (bench runs, tests).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	startsTotal    *prometheus.CounterVec
	stopsTotal     *prometheus.CounterVec
	deferralsTotal *prometheus.CounterVec
	emergencyStops prometheus.Counter

	runningUnits    *prometheus.GaugeVec
	targetUnits     *prometheus.GaugeVec
	availableUnits  *prometheus.GaugeVec
	capacityPercent prometheus.Gauge
	tier            prometheus.Gauge
	runtimeMinutes  *prometheus.GaugeVec
	priorityScore   *prometheus.GaugeVec
	maintenance     *prometheus.GaugeVec
}

// New builds and registers the collectors on a private registry, so several
// engines can coexist in one process (tests, simulators).
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		startsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staging_starts_total",
			Help: "Units started by the staging engine, by equipment kind.",
		}, []string{"kind"}),
		stopsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staging_stops_total",
			Help: "Units stopped by the staging engine, by equipment kind.",
		}, []string{"kind"}),
		deferralsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staging_deferrals_total",
			Help: "Staging actions deferred by guard, by equipment kind and reason.",
		}, []string{"kind", "reason"}),
		emergencyStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emergency_stops_total",
			Help: "Emergency stop activations.",
		}),
		runningUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_running_units",
			Help: "Units currently running, by equipment kind.",
		}, []string{"kind"}),
		targetUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_target_units",
			Help: "Unit targets computed from demand, by equipment kind.",
		}, []string{"kind"}),
		availableUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plant_available_units",
			Help: "Units installed and enabled, by equipment kind.",
		}, []string{"kind"}),
		capacityPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "capacity_demand_percent",
			Help: "Requested plant capacity in percent.",
		}),
		tier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staging_tier",
			Help: "Current capacity tier, 1 (lowest band) through 4.",
		}),
		runtimeMinutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "unit_runtime_minutes",
			Help: "Accumulated runtime per unit in minutes.",
		}, []string{"kind", "unit"}),
		priorityScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "condenser_priority_score",
			Help: "Last computed condenser priority score.",
		}, []string{"unit"}),
		maintenance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "condenser_maintenance_state",
			Help: "Condenser maintenance state (0 ok, 1 due soon, 2 due now, 3 critical, 4 in progress).",
		}, []string{"unit"}),
	}

	m.reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.startsTotal,
		m.stopsTotal,
		m.deferralsTotal,
		m.emergencyStops,
		m.runningUnits,
		m.targetUnits,
		m.availableUnits,
		m.capacityPercent,
		m.tier,
		m.runtimeMinutes,
		m.priorityScore,
		m.maintenance,
	)

	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) UnitStarted(kind string) {
	if m == nil {
		return
	}
	m.startsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) UnitStopped(kind string) {
	if m == nil {
		return
	}
	m.stopsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Deferral(kind, reason string) {
	if m == nil {
		return
	}
	m.deferralsTotal.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) EmergencyStop() {
	if m == nil {
		return
	}
	m.emergencyStops.Inc()
}

func (m *Metrics) SetRunning(kind string, n int) {
	if m == nil {
		return
	}
	m.runningUnits.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) SetTarget(kind string, n int) {
	if m == nil {
		return
	}
	m.targetUnits.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) SetAvailable(kind string, n int) {
	if m == nil {
		return
	}
	m.availableUnits.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) SetCapacity(pct float64) {
	if m == nil {
		return
	}
	m.capacityPercent.Set(pct)
}

func (m *Metrics) SetTier(t int) {
	if m == nil {
		return
	}
	m.tier.Set(float64(t))
}

func (m *Metrics) SetRuntime(kind string, unit int, minutes int64) {
	if m == nil {
		return
	}
	m.runtimeMinutes.WithLabelValues(kind, strconv.Itoa(unit)).Set(float64(minutes))
}

func (m *Metrics) SetScore(unit int, score float64) {
	if m == nil {
		return
	}
	m.priorityScore.WithLabelValues(strconv.Itoa(unit)).Set(score)
}

func (m *Metrics) SetMaintenanceState(unit, state int) {
	if m == nil {
		return
	}
	m.maintenance.WithLabelValues(strconv.Itoa(unit)).Set(float64(state))
}
