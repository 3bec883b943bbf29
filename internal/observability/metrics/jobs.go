// Package metrics exposes the Prometheus collectors for the job lifecycle.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/vitalsense/analysis-jobs/internal/observability/errors"
)

const namespace = "analysis"

// Recorder records job lifecycle metrics. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	submitted      *prometheus.CounterVec
	submitFailures *prometheus.CounterVec
	ingested       *prometheus.CounterVec
	swept          prometheus.Counter
	serviceUp      *prometheus.GaugeVec
}

// NewRecorder registers the job collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Accepted analysis job submissions by data type.",
		}, []string{"data_type"}),
		submitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submit_failures_total",
			Help:      "Rejected or failed analysis job submissions by reason.",
		}, []string{"reason"}),
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_ingested_total",
			Help:      "Ingested analysis results, split by whether a matching request existed.",
		}, []string{"orphan"}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_swept_total",
			Help:      "Pending jobs moved to failed by the stale job sweeper.",
		}),
		serviceUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_up",
			Help:      "Dependency health from the last health check (1 up, 0 down).",
		}, []string{"service"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// JobSubmitted counts an accepted submission.
func (r *Recorder) JobSubmitted(dataType string) {
	if r == nil {
		return
	}
	r.submitted.WithLabelValues(dataType).Inc()
}

// SubmitFailed counts a failed submission, labelled by the error class.
func (r *Recorder) SubmitFailed(err error) {
	if r == nil || err == nil {
		return
	}
	r.submitFailures.WithLabelValues(obserrors.Classify(err)).Inc()
}

// ResultIngested counts a stored result.
func (r *Recorder) ResultIngested(orphan bool) {
	if r == nil {
		return
	}
	r.ingested.WithLabelValues(strconv.FormatBool(orphan)).Inc()
}

// JobsSwept adds n failed jobs.
func (r *Recorder) JobsSwept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.swept.Add(float64(n))
}

// ServiceUp records a dependency health probe.
func (r *Recorder) ServiceUp(service string, up bool) {
	if r == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	r.serviceUp.WithLabelValues(service).Set(v)
}
