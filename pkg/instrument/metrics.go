// Package instrument reports bridge activity to Prometheus and OpenTelemetry.
package instrument

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-renderbridge/pkg/cache"
	"github.com/goliatone/go-renderbridge/pkg/extension"
	"github.com/goliatone/go-renderbridge/pkg/markup"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "renderbridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for evaluation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry registers the collectors and serves them from Handler.
	// Default: a new prometheus.Registry.
	Registry *prometheus.Registry
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		if namespace != "" {
			c.Namespace = namespace
		}
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
		if len(buckets) > 0 {
			c.Buckets = buckets
		}
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		if registry != nil {
			c.Registry = registry
		}
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "renderbridge",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics implements extension.Metrics with Prometheus collectors.
//
// Metrics collected:
//   - renderbridge_escapes_total: gate invocations by context, value kind and mode
//   - renderbridge_node_evaluations_total: evaluator calls by status
//   - renderbridge_node_evaluation_seconds: evaluator latency
//   - renderbridge_renders_total: closed render scopes by cacheability
//   - renderbridge_render_cache_tags: cache tags bubbled per render
type Metrics struct {
	registry     *prometheus.Registry
	escapes      *prometheus.CounterVec
	evaluations  *prometheus.CounterVec
	evalDuration prometheus.Histogram
	renders      *prometheus.CounterVec
	renderTags   prometheus.Histogram
}

var _ extension.Metrics = (*Metrics)(nil)

// NewMetrics registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&config)
		}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		escapes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "escapes_total",
			Help:        "Total number of escape gate invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"context", "kind", "mode"}),

		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "node_evaluations_total",
			Help:        "Total number of render node evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		evalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "node_evaluation_seconds",
			Help:        "Render node evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of completed renders by cacheability",
			ConstLabels: config.ConstLabels,
		}, []string{"cacheability"}),

		renderTags: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_cache_tags",
			Help:        "Number of cache tags bubbled to the top of a render",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

// EscapeObserved implements extension.Metrics.
func (m *Metrics) EscapeObserved(ctx markup.Context, kind string, autoescape bool) {
	mode := "explicit"
	if autoescape {
		mode = "auto"
	}
	m.escapes.WithLabelValues(string(ctx), kind, mode).Inc()
}

// NodeEvaluated implements extension.Metrics.
func (m *Metrics) NodeEvaluated(elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.evaluations.WithLabelValues(status).Inc()
	m.evalDuration.Observe(elapsed.Seconds())
}

// RenderCompleted implements extension.Metrics.
func (m *Metrics) RenderCompleted(result cache.Bubbleable) {
	m.renders.WithLabelValues(cacheability(result.Metadata.MaxAge)).Inc()
	m.renderTags.Observe(float64(len(result.Metadata.Tags)))
}

func cacheability(age cache.MaxAge) string {
	switch {
	case !age.Cacheable():
		return "uncacheable"
	case age == cache.MaxAgePermanent:
		return "permanent"
	default:
		return "limited"
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
