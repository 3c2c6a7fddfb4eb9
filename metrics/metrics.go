// Package metrics exposes the agent's Prometheus metrics and the server that
// publishes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves a dedicated Prometheus registry over HTTP.
type MetricsServer struct {
	registry *prometheus.Registry
	srv      *http.Server

	// Metrics holds the collectors registered on this server's registry.
	Metrics *Metrics
}

// New creates a metrics server listening on addr with all agent collectors
// registered under namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		registry: registry,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Metrics: NewMetrics(namespace, registry),
	}, nil
}

// Registry returns the registry backing the server.
func (s *MetricsServer) Registry() *prometheus.Registry {
	return s.registry
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics provides observability for the request workflow and pinning
// backends. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Workflow outcomes by operation and result
	WorkflowOutcomes *prometheus.CounterVec

	// Failed workflow steps by operation and step
	WorkflowFailures *prometheus.CounterVec

	// Pinning operations by backend, operation and result
	StorageOps *prometheus.CounterVec

	// Pinning latency by backend and operation
	StorageLatency *prometheus.HistogramVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WorkflowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Total workflow operations by operation and result",
		}, []string{"operation", "result"}), // operation: "approve", "reject", "register", ...

		WorkflowFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_step_failures_total",
			Help:      "Total workflow failures by operation and failing step",
		}, []string{"operation", "step"}),

		StorageOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total pinning backend operations by backend, operation and result",
		}, []string{"backend", "op", "result"}),

		StorageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Duration of pinning backend operations",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"backend", "op"}),
	}
}

// IncrementOutcome records the result of a workflow operation.
func (m *Metrics) IncrementOutcome(operation, result string) {
	if m != nil {
		m.WorkflowOutcomes.WithLabelValues(operation, result).Inc()
	}
}

// IncrementFailure records the step at which a workflow operation failed.
func (m *Metrics) IncrementFailure(operation, step string) {
	if m != nil {
		m.WorkflowFailures.WithLabelValues(operation, step).Inc()
	}
}

// ObserveStorageOp records a pinning backend operation.
func (m *Metrics) ObserveStorageOp(backend, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StorageOps.WithLabelValues(backend, op, result).Inc()
	m.StorageLatency.WithLabelValues(backend, op).Observe(d.Seconds())
}
