package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/sanitize"
)

// Recorder records the operational metrics of taskscope.
type Recorder interface {
	// SnapshotRecorded counts a recorded status snapshot.
	SnapshotRecorded(status model.TaskStatus)
	// PhaseObserved counts a derived display phase.
	PhaseObserved(phase model.Phase)
	// PayloadSanitized tracks the result of sanitizing a debug payload.
	PayloadSanitized(report sanitize.Report)
	// HTTPRequest tracks a served HTTP request.
	HTTPRequest(route, method string, statusCode int, duration time.Duration)
	// StreamConnections updates the number of open timeline streams.
	StreamConnections(delta int)
}

// Noop is a Recorder that ignores everything.
const Noop = noop(0)

type noop int

func (noop) SnapshotRecorded(model.TaskStatus) {}
func (noop) PhaseObserved(model.Phase) {}
func (noop) PayloadSanitized(sanitize.Report) {}
func (noop) HTTPRequest(string, string, int, time.Duration) {}
func (noop) StreamConnections(int) {}

const namespace = "taskscope"

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	registry *prometheus.Registry

	snapshotsTotal      *prometheus.CounterVec
	phasesTotal         *prometheus.CounterVec
	sanitizedTotal      prometheus.Counter
	sanitizeFindings    *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamsOpen         prometheus.Gauge
}

// NewPrometheus returns a Prometheus recorder registered on its own registry, together
// with the Go and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		snapshotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_recorded_total",
			Help:      "Total number of recorded task status snapshots",
		}, []string{"status"}),
		phasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phases_observed_total",
			Help:      "Total number of derived display phases",
		}, []string{"phase"}),
		sanitizedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_sanitized_total",
			Help:      "Total number of sanitized debug payloads",
		}),
		sanitizeFindings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sanitize_findings_total",
			Help:      "Total number of values replaced while sanitizing debug payloads",
		}, []string{"kind"}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		streamsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timeline_streams_open",
			Help:      "Number of open timeline streams",
		}),
	}
}

// SnapshotRecorded counts a recorded snapshot by status.
func (p *Prometheus) SnapshotRecorded(status model.TaskStatus) {
	p.snapshotsTotal.WithLabelValues(string(status)).Inc()
}

// PhaseObserved counts a derived display phase.
func (p *Prometheus) PhaseObserved(phase model.Phase) {
	p.phasesTotal.WithLabelValues(string(phase)).Inc()
}

// PayloadSanitized counts a sanitized payload and its replaced values by kind.
func (p *Prometheus) PayloadSanitized(report sanitize.Report) {
	p.sanitizedTotal.Inc()
	p.sanitizeFindings.WithLabelValues("masked").Add(float64(report.Masked))
	p.sanitizeFindings.WithLabelValues("circular").Add(float64(report.Circular))
	p.sanitizeFindings.WithLabelValues("truncated").Add(float64(report.Truncated))
}

// HTTPRequest counts a served request and observes its latency.
func (p *Prometheus) HTTPRequest(route, method string, statusCode int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	p.httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// StreamConnections adds delta to the open timeline streams.
func (p *Prometheus) StreamConnections(delta int) {
	p.streamsOpen.Add(float64(delta))
}

// Registry returns the registry the collectors are registered on.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler returns the HTTP handler that exposes the metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
