package middleware

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fiftyone-dev/appsync/internal/errors"
	"github.com/fiftyone-dev/appsync/pkg/history"
	"github.com/fiftyone-dev/appsync/pkg/router"
	"github.com/fiftyone-dev/appsync/pkg/synchronizer"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "appsync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "appsync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for one client.
type Metrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
	navigations      *prometheus.CounterVec
	pending          prometheus.Counter
	connection       *prometheus.GaugeVec
	reconnects       prometheus.Counter

	mu        sync.Mutex
	connected bool
}

// NewMetrics registers the collectors with the configured registry.
//
// Metrics collected:
//   - appsync_dispatch_total: dispatches by kind, name and status
//   - appsync_dispatch_duration_seconds: dispatch duration by kind and name
//   - appsync_dispatch_errors_total: failed dispatches by kind, name and error type
//   - appsync_navigations_total: committed navigations by history action
//   - appsync_navigations_pending_total: navigations that started loading
//   - appsync_connection_state: 1 for the current connection state
//   - appsync_reconnects_total: connections opened after the first
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_total",
			Help:        "Total number of events, writes and sets dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "name", "status"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_duration_seconds",
			Help:        "Dispatch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind", "name"}),

		dispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_errors_total",
			Help:        "Total number of failed dispatches",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "name", "error_type"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of committed navigations",
			ConstLabels: config.ConstLabels,
		}, []string{"action"}),

		pending: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_pending_total",
			Help:        "Total number of navigations that had to load data",
			ConstLabels: config.ConstLabels,
		}),

		connection: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connection_state",
			Help:        "Event connection state (1 for the current state)",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Total number of event connections opened after the first",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Middleware times and counts every dispatch.
func (m *Metrics) Middleware() synchronizer.Middleware {
	return synchronizer.MiddlewareFunc(func(ctx context.Context, d synchronizer.Dispatch, next func(context.Context) error) error {
		kind := string(d.Kind)
		start := time.Now()

		err := next(ctx)

		m.dispatchDuration.WithLabelValues(kind, d.Name).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
			m.dispatchErrors.WithLabelValues(kind, d.Name, categorizeError(err)).Inc()
		}
		m.dispatchTotal.WithLabelValues(kind, d.Name, status).Inc()
		return err
	})
}

// ObserveRouter counts navigations of r. The returned func stops counting.
func (m *Metrics) ObserveRouter(r *router.Router) (stop func()) {
	return r.Subscribe(func(_ *router.Entry, action history.Action, _ *router.Entry) {
		m.navigations.WithLabelValues(actionLabel(action)).Inc()
	}, m.pending.Inc)
}

// ObserveSynchronizer tracks the connection state of s. The returned func
// stops tracking.
func (m *Metrics) ObserveSynchronizer(s *synchronizer.Synchronizer) (stop func()) {
	m.setConnection(s.ReadyState())
	return s.OnStateChange(m.setConnection)
}

func (m *Metrics) setConnection(state synchronizer.ReadyState) {
	for _, s := range []synchronizer.ReadyState{synchronizer.Connecting, synchronizer.Open, synchronizer.Closed} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connection.WithLabelValues(s.String()).Set(v)
	}

	if state != synchronizer.Open {
		return
	}
	m.mu.Lock()
	reconnect := m.connected
	m.connected = true
	m.mu.Unlock()
	if reconnect {
		m.reconnects.Inc()
	}
}

func actionLabel(a history.Action) string {
	if a == history.ActionNone {
		return "LOAD"
	}
	return string(a)
}

// categorizeError returns a low-cardinality label for err: its error code
// when it has one.
func categorizeError(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case stderrors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
