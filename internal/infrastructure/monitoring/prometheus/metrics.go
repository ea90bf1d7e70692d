package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Profiling pipeline
	ProfileStageDuration HistogramVec
	ProfilesTotal        CounterVec
	SpansDecodedTotal    CounterVec
	SpansDroppedTotal    CounterVec
	RedFlagsTotal        CounterVec

	// Jobs
	JobsTotal          CounterVec
	JobDuration        HistogramVec
	JobActiveWorkers   GaugeVec
	MessageProcessTime HistogramVec

	// Infrastructure Layer
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	// System Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultStageDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30}
	DefaultJobDurationBuckets   = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	// Profiling
	m.ProfileStageDuration = collector.RegisterHistogram("profile_stage_duration_seconds", "Duration of one profiling pipeline stage", DefaultStageDurationBuckets, "stage")
	m.ProfilesTotal = collector.RegisterCounter("profiles_total", "Profiles produced", "status")
	m.SpansDecodedTotal = collector.RegisterCounter("spans_decoded_total", "Entity spans kept after merging")
	m.SpansDroppedTotal = collector.RegisterCounter("spans_dropped_total", "Clauses dropped by the refinement filter")
	m.RedFlagsTotal = collector.RegisterCounter("red_flags_total", "Quality red flags raised", "flag")

	// Jobs
	m.JobsTotal = collector.RegisterCounter("jobs_total", "Profiling jobs by terminal status", "status")
	m.JobDuration = collector.RegisterHistogram("job_duration_seconds", "Profiling job duration", DefaultJobDurationBuckets, "status")
	m.JobActiveWorkers = collector.RegisterGauge("job_active_workers", "Workers currently running a job", "topic")
	m.MessageProcessTime = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultJobDurationBuckets, "topic")

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// System Health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// NewNoopAppMetrics returns metrics that record nothing.
func NewNoopAppMetrics() *AppMetrics {
	c := NewNoopCollector()
	return NewAppMetrics(c)
}

// Helpers. All of them accept a nil *AppMetrics.

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordStage(metrics *AppMetrics, stage string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.ProfileStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordProfile(metrics *AppMetrics, success bool, spans int, redFlags []string) {
	if metrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.ProfilesTotal.WithLabelValues(status).Inc()
	metrics.SpansDecodedTotal.WithLabelValues().Add(float64(spans))
	for _, f := range redFlags {
		metrics.RedFlagsTotal.WithLabelValues(f).Inc()
	}
}

func RecordSpansDropped(metrics *AppMetrics, n int) {
	if metrics == nil || n <= 0 {
		return
	}
	metrics.SpansDroppedTotal.WithLabelValues().Add(float64(n))
}

func RecordJob(metrics *AppMetrics, status string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.JobsTotal.WithLabelValues(status).Inc()
	metrics.JobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func RecordHealth(metrics *AppMetrics, component string, up bool) {
	if metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	metrics.HealthCheckStatus.WithLabelValues(component).Set(v)
}
