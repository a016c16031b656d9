package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sermoncast"

// Registry owns the process metrics. All methods are safe on a nil receiver
// so components can run without metrics.
type Registry struct {
	reg *prometheus.Registry

	jobs           *prometheus.CounterVec
	activeJobs     prometheus.Gauge
	stageDuration  *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	uploadFailures *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	engineCommands *prometheus.CounterVec
	events         *prometheus.CounterVec
}

// New registers the sermoncast collectors plus Go and process collectors on a
// private registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Processing jobs finished, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		activeJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs currently being processed.",
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"}),
		uploadBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to object storage.",
		}, []string{"backend"}),
		uploadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Failed object storage writes.",
		}, []string{"backend"}),
		uploadDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Object storage write latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		engineCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_commands_total",
			Help:      "Media engine invocations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_events_total",
			Help:      "Analytics events emitted, by name.",
		}, []string{"event"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests and embedding.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// JobStarted increments the active job gauge.
func (r *Registry) JobStarted() {
	if r == nil {
		return
	}
	r.activeJobs.Inc()
}

// JobFinished records the outcome ("completed", "failed", "fallback") of a job.
func (r *Registry) JobFinished(kind, outcome string) {
	if r == nil {
		return
	}
	r.activeJobs.Dec()
	r.jobs.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (r *Registry) ObserveStage(stage string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveUpload matches the blob uploader's observer signature.
func (r *Registry) ObserveUpload(backend string, bytes int64, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.uploadFailures.WithLabelValues(backend).Inc()
		return
	}
	r.uploadBytes.WithLabelValues(backend).Add(float64(bytes))
	r.uploadDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// ObserveEngine counts one engine command.
func (r *Registry) ObserveEngine(operation string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.engineCommands.WithLabelValues(operation, outcome).Inc()
}

// ObserveEvent counts an analytics event.
func (r *Registry) ObserveEvent(name string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(name).Inc()
}
