// Package metrics exposes Prometheus collectors for unlock, migration and signing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seedless"

// Metrics groups the collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	migrations     *prometheus.CounterVec
	signatures     *prometheus.CounterVec
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keychain_migrations_total",
			Help:      "Keychain migration attempts by status and result.",
		}, []string{"status", "result"}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Signing requests by chain and result.",
		}, []string{"chain", "result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Calls to the custody backend by operation and result.",
		}, []string{"operation", "result"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of custody backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	m.registry.MustRegister(m.migrations, m.signatures, m.remoteCalls, m.remoteDuration)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveMigration counts one migration attempt
func (m *Metrics) ObserveMigration(status string, err error) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(status, result(err)).Inc()
}

// ObserveSignature counts one signing request
func (m *Metrics) ObserveSignature(chain string, err error) {
	if m == nil {
		return
	}
	m.signatures.WithLabelValues(chain, result(err)).Inc()
}

// ObserveRemoteCall records a custody backend call started at start
func (m *Metrics) ObserveRemoteCall(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(operation, result(err)).Inc()
	m.remoteDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
