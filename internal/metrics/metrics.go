// Package metrics exposes provisioning activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weatherbird/provisioning/internal/claim"
	"github.com/weatherbird/provisioning/internal/provisioning"
	"github.com/weatherbird/provisioning/internal/radio"
)

const namespace = "weatherbird"

// Collector holds the provisioning metrics on a private registry. It
// implements provisioning.Observer.
type Collector struct {
	registry *prometheus.Registry

	transitionsTotal *prometheus.CounterVec
	state            prometheus.Gauge
	connectTotal     *prometheus.CounterVec
	connectRounds    prometheus.Histogram
	connectDuration  prometheus.Histogram
	claimTotal       *prometheus.CounterVec
	recordWrites     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a collector with Go runtime and process metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "transitions_total",
				Help:      "Total number of state transitions by source state, target state and event",
			},
			[]string{"from", "to", "event"},
		),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "state",
			Help:      "Current provisioning state as its numeric value",
		}),
		connectTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "radio",
				Name:      "connect_total",
				Help:      "Total number of multi-round connect attempts by result",
			},
			[]string{"result"},
		),
		connectRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "connect_rounds",
			Help:      "Rounds used by connect attempts",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		connectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "connect_duration_seconds",
			Help:      "Duration of connect attempts in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		claimTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "claim",
				Name:      "requests_total",
				Help:      "Total number of identity claim calls by result",
			},
			[]string{"result"},
		),
		recordWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "record",
				Name:      "writes_total",
				Help:      "Total number of configuration record saves by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.transitionsTotal,
		c.state,
		c.connectTotal,
		c.connectRounds,
		c.connectDuration,
		c.claimTotal,
		c.recordWrites,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTransition implements provisioning.Observer.
func (c *Collector) ObserveTransition(t provisioning.Transition) {
	c.transitionsTotal.WithLabelValues(t.From.String(), t.To.String(), t.Event.String()).Inc()
	c.state.Set(float64(t.To))
}

// ObserveConnect implements provisioning.Observer.
func (c *Collector) ObserveConnect(res radio.ConnectResult) {
	result := "failed"
	if res.Connected {
		result = "connected"
	}
	c.connectTotal.WithLabelValues(result).Inc()
	if res.Rounds > 0 {
		c.connectRounds.Observe(float64(res.Rounds))
	}
	c.connectDuration.Observe(res.Elapsed.Seconds())
}

// ObserveClaim implements provisioning.Observer.
func (c *Collector) ObserveClaim(err error) {
	c.claimTotal.WithLabelValues(claimResult(err)).Inc()
}

// ObservePersist implements provisioning.Observer.
func (c *Collector) ObservePersist(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.recordWrites.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(route string, code int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func claimResult(err error) string {
	if err == nil {
		return "success"
	}
	var claimErr *claim.Error
	if !errors.As(err, &claimErr) {
		return "error"
	}
	switch claimErr.Type {
	case claim.ErrTypeHTTP:
		return "rejected"
	case claim.ErrTypeTimeout:
		return "timeout"
	default:
		return "unreachable"
	}
}
