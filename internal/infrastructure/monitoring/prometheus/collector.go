package prometheus

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers metric vectors on a private registry and serves
// them. Registering the same name twice returns the existing vector.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	MustRegister(collectors ...prometheus.Collector)
	Handler() http.Handler
}

type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

type Counter interface {
	Inc()
	Add(delta float64)
}

type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
	Sub(delta float64)
}

type HistogramVec interface {
	WithLabelValues(lvs ...string) Histogram
}

type Histogram interface {
	Observe(value float64)
}

// CollectorConfig configures NewMetricsCollector. Subsystem is optional.
type CollectorConfig struct {
	Namespace            string
	Subsystem            string
	EnableProcessMetrics bool
	EnableGoMetrics      bool
	ConstLabels          map[string]string
}

var defaultBuckets = prometheus.DefBuckets

type registryCollector struct {
	registry *prometheus.Registry
	cfg      CollectorConfig
	logger   logging.Logger

	mu   sync.Mutex
	vecs map[string]prometheus.Collector
}

// NewMetricsCollector builds a collector backed by a fresh registry, so
// several collectors can coexist in one process.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("metrics namespace is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(prometheus.NewGoCollector())
	}
	return &registryCollector{
		registry: reg,
		cfg:      cfg,
		logger:   logger.Named("metrics"),
		vecs:     make(map[string]prometheus.Collector),
	}, nil
}

func (c *registryCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *registryCollector) MustRegister(collectors ...prometheus.Collector) {
	c.registry.MustRegister(collectors...)
}

// register returns the vector already stored under name, or registers vec.
// A nil result means registration failed and the caller falls back to no-op.
func (c *registryCollector) register(name, kind string, vec prometheus.Collector) prometheus.Collector {
	c.mu.Lock()
	defer c.mu.Unlock()

	fq := prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
	if existing, ok := c.vecs[fq]; ok {
		return existing
	}
	if err := c.registry.Register(vec); err != nil {
		c.logger.Error("metric registration failed",
			logging.String("name", fq),
			logging.String("kind", kind),
			logging.Err(err))
		return nil
	}
	c.vecs[fq] = vec
	return vec
}

func (c *registryCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	opts := prometheus.CounterOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels}
	if v, ok := c.register(name, "counter", prometheus.NewCounterVec(opts, labels)).(*prometheus.CounterVec); ok {
		return counterVec{v}
	}
	return noopCounterVec{}
}

func (c *registryCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	opts := prometheus.GaugeOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels}
	if v, ok := c.register(name, "gauge", prometheus.NewGaugeVec(opts, labels)).(*prometheus.GaugeVec); ok {
		return gaugeVec{v}
	}
	return noopGaugeVec{}
}

func (c *registryCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = defaultBuckets
	}
	opts := prometheus.HistogramOpts{Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels, Buckets: buckets}
	if v, ok := c.register(name, "histogram", prometheus.NewHistogramVec(opts, labels)).(*prometheus.HistogramVec); ok {
		return histogramVec{v}
	}
	return noopHistogramVec{}
}

// The client_golang metric types already satisfy Counter, Gauge and
// Histogram; these adapters only narrow the WithLabelValues return type.

type counterVec struct{ *prometheus.CounterVec }

func (v counterVec) WithLabelValues(lvs ...string) Counter { return v.CounterVec.WithLabelValues(lvs...) }

type gaugeVec struct{ *prometheus.GaugeVec }

func (v gaugeVec) WithLabelValues(lvs ...string) Gauge { return v.GaugeVec.WithLabelValues(lvs...) }

type histogramVec struct{ *prometheus.HistogramVec }

func (v histogramVec) WithLabelValues(lvs ...string) Histogram {
	return v.HistogramVec.WithLabelValues(lvs...)
}

// noopMetric stands in for every metric kind.
type noopMetric struct{}

func (noopMetric) Inc()            {}
func (noopMetric) Dec()            {}
func (noopMetric) Add(float64)     {}
func (noopMetric) Sub(float64)     {}
func (noopMetric) Set(float64)     {}
func (noopMetric) Observe(float64) {}

type noopCounterVec struct{}

func (noopCounterVec) WithLabelValues(...string) Counter { return noopMetric{} }

type noopGaugeVec struct{}

func (noopGaugeVec) WithLabelValues(...string) Gauge { return noopMetric{} }

type noopHistogramVec struct{}

func (noopHistogramVec) WithLabelValues(...string) Histogram { return noopMetric{} }

type noopCollector struct{}

// NewNoopCollector returns a collector that records nothing; its handler
// answers 204.
func NewNoopCollector() MetricsCollector { return noopCollector{} }

func (noopCollector) RegisterCounter(string, string, ...string) CounterVec { return noopCounterVec{} }
func (noopCollector) RegisterGauge(string, string, ...string) GaugeVec     { return noopGaugeVec{} }
func (noopCollector) RegisterHistogram(string, string, []float64, ...string) HistogramVec {
	return noopHistogramVec{}
}
func (noopCollector) MustRegister(...prometheus.Collector) {}
func (noopCollector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}
