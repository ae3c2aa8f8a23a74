package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Jobs
	JobsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apigen_jobs_created_total",
			Help: "Total number of generation jobs started",
		},
	)
	JobStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_job_status_changes_total",
			Help: "Number of job status transitions",
		},
		[]string{"from", "to"},
	)
	ActiveJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apigen_jobs_active",
			Help: "Generation jobs currently running",
		},
	)
	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apigen_job_duration_seconds",
			Help:    "Histogram of generation job durations in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s..256s
		},
		[]string{"status"},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_llm_requests_total",
			Help: "Number of generation calls by model",
		},
		[]string{"model"},
	)
	LLMRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_llm_retries_total",
			Help: "Number of repeated attempts against the generation endpoint",
		},
		[]string{"model"},
	)
	LLMDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apigen_llm_duration_seconds",
			Help:    "Duration of generation calls including retries",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"model"},
	)

	// Parsing and packaging
	SectionsParsed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apigen_sections_parsed",
			Help:    "Recognized sections per generator response",
			Buckets: prometheus.LinearBuckets(0, 1, 8),
		},
	)
	ArchiveBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apigen_archive_bytes",
			Help:    "Size of produced archives",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
	CleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apigen_workspace_cleanup_failures_total",
			Help: "Workspace entries that could not be removed",
		},
	)

	// DB ops
	DBOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_db_ops_total",
			Help: "Database operations performed",
		},
		[]string{"collection", "op"}, // op: get|put|delete|list|count
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// Jobs
		JobsCreated,
		JobStatusChanges,
		ActiveJobs,
		JobDurationSeconds,
		// LLM
		LLMRequests,
		LLMRetries,
		LLMDurationSeconds,
		// Pipeline
		SectionsParsed,
		ArchiveBytes,
		CleanupFailures,
		// DB
		DBOps,
		// Errors
		Errors,
	)
}

// NewServer exposes the default registry on addr at /metrics.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Jobs
func IncJobsCreated() {
	JobsCreated.Inc()
}

func IncJobStatusChange(from, to string) {
	JobStatusChanges.WithLabelValues(from, to).Inc()
}

func IncActiveJobs() {
	ActiveJobs.Inc()
}

func DecActiveJobs() {
	ActiveJobs.Dec()
}

func ObserveJobDuration(status string, d time.Duration) {
	JobDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// LLM
func IncLLMRequest(model string) {
	LLMRequests.WithLabelValues(model).Inc()
}

func IncLLMRetry(model string) {
	LLMRetries.WithLabelValues(model).Inc()
}

func ObserveLLMDuration(model string, d time.Duration) {
	LLMDurationSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// Pipeline
func ObserveSectionsParsed(n int) {
	SectionsParsed.Observe(float64(n))
}

func ObserveArchiveBytes(n int64) {
	ArchiveBytes.Observe(float64(n))
}

func IncCleanupFailure() {
	CleanupFailures.Inc()
}

// DB
func IncDBOp(collection, op string) {
	DBOps.WithLabelValues(collection, op).Inc()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
