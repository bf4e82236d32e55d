// Package observability bundles the Prometheus metrics and OpenTelemetry
// tracing wiring for the control plane.
package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridsentry/gridchaos/powergrid"
)

// Collector bundles Prometheus metrics for the HTTP surface and the grid
// itself, and satisfies the controller's MetricsRecorder interface.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	GridMinVoltage   prometheus.Gauge
	GridTotalLoad    prometheus.Gauge
	GridGeneration   prometheus.Gauge
	SolveDurations   prometheus.Histogram
	SolveDivergences prometheus.Counter
	GridRebuilds     *prometheus.CounterVec
	BlastRadiusTrips prometheus.Counter
}

// NewCollector registers the control plane's metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridchaos_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "gridchaos_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridchaos_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "gridchaos_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	minVoltage, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridchaos_grid_min_voltage_pu",
		Help: "Minimum bus voltage of the last converged solve, per unit.",
	}), "gridchaos_grid_min_voltage_pu")
	if err != nil {
		return nil, err
	}
	totalLoad, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridchaos_grid_total_load_mw",
		Help: "Total in-service demand at the last solve, MW.",
	}), "gridchaos_grid_total_load_mw")
	if err != nil {
		return nil, err
	}
	generation, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridchaos_grid_generation_mw",
		Help: "Total generation at the last converged solve, MW.",
	}), "gridchaos_grid_generation_mw")
	if err != nil {
		return nil, err
	}

	solveDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridchaos_solve_duration_seconds",
		Help:    "Power flow solve latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	solveDurations, err = registerHistogram(reg, solveDurations, "gridchaos_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	divergences, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gridchaos_solve_divergences_total",
		Help: "Total number of diverged power flow solves.",
	}), "gridchaos_solve_divergences_total")
	if err != nil {
		return nil, err
	}

	rebuilds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridchaos_grid_rebuilds_total",
		Help: "Total number of baseline grid rebuilds, labeled by source (reset or rollback).",
	}, []string{"source"})
	rebuilds, err = registerCounterVec(reg, rebuilds, "gridchaos_grid_rebuilds_total")
	if err != nil {
		return nil, err
	}

	trips, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gridchaos_blast_radius_trips_total",
		Help: "Total number of blast radius containments.",
	}), "gridchaos_blast_radius_trips_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		HTTPRequests:     requests,
		HTTPDurations:    durations,
		GridMinVoltage:   minVoltage,
		GridTotalLoad:    totalLoad,
		GridGeneration:   generation,
		SolveDurations:   solveDurations,
		SolveDivergences: divergences,
		GridRebuilds:     rebuilds,
		BlastRadiusTrips: trips,
	}, nil
}

// Middleware records request counts and durations for gin handlers.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(g *gin.Context) {
		start := time.Now()
		g.Next()

		if c == nil {
			return
		}
		route := g.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, g.Request.Method, strconv.Itoa(g.Writer.Status())).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route, g.Request.Method).Observe(time.Since(start).Seconds())
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveSolve satisfies the controller's MetricsRecorder interface.
func (c *Collector) ObserveSolve(snap powergrid.Snapshot) {
	if c == nil {
		return
	}
	if c.SolveDurations != nil {
		c.SolveDurations.Observe(snap.SolveTimeMs / 1000.0)
	}
	if c.GridTotalLoad != nil {
		c.GridTotalLoad.Set(snap.TotalLoadMw)
	}
	if !snap.Converged {
		if c.SolveDivergences != nil {
			c.SolveDivergences.Inc()
		}
		return
	}
	if c.GridMinVoltage != nil {
		c.GridMinVoltage.Set(snap.MinVoltagePu)
	}
	if c.GridGeneration != nil {
		c.GridGeneration.Set(snap.GenerationMw)
	}
}

// RecordGridRebuild counts a wholesale grid replacement.
func (c *Collector) RecordGridRebuild(source string) {
	if c == nil || c.GridRebuilds == nil {
		return
	}
	c.GridRebuilds.WithLabelValues(source).Inc()
}

// RecordBlastRadiusTrip counts a guardrail containment.
func (c *Collector) RecordBlastRadiusTrip() {
	if c == nil || c.BlastRadiusTrips == nil {
		return
	}
	c.BlastRadiusTrips.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
