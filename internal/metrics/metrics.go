// Package metrics exports fsbox store operations to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nuln/fsbox"
)

const namespace = "fsbox"

// Collector implements fsbox.Observer and owns a private registry.
type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// New creates a Collector with the store metrics and the Go runtime
// collectors registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"op", "scheme", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	c.registry.MustRegister(
		c.operationsTotal,
		c.operationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Observe implements fsbox.Observer.
func (c *Collector) Observe(op, scheme string, err error, elapsed time.Duration) {
	if scheme == "" {
		scheme = "unknown"
	}
	c.operationsTotal.WithLabelValues(op, scheme, Result(err)).Inc()
	c.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Result turns an operation error into a bounded label value.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	switch fsbox.Kind(err) {
	case fsbox.ErrNotFound:
		return "not_found"
	case fsbox.ErrConflict:
		return "conflict"
	case fsbox.ErrUnknownScheme:
		return "unknown_scheme"
	case fsbox.ErrInvalidAddress:
		return "invalid_address"
	case fsbox.ErrBackendUnavailable:
		return "unavailable"
	}
	var opErr *fsbox.OpError
	if errors.As(err, &opErr) {
		return "error"
	}
	return "failure"
}

var _ fsbox.Observer = (*Collector)(nil)
