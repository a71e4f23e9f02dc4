package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client's Prometheus collectors. All methods are safe on
// a nil receiver so components can run without instrumentation.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	NetworkErrors   *prometheus.CounterVec

	Recordings        *prometheus.CounterVec
	RecordingDuration prometheus.Histogram

	Questions   *prometheus.CounterVec
	Errors      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Rejected    prometheus.Counter

	ProbeDuration prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_backend_requests_total",
			Help: "Backend requests by operation and status code",
		}, []string{"op", "status_code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragyverse_backend_request_duration_seconds",
			Help:    "Duration of backend requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"op"}),
		NetworkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_backend_network_errors_total",
			Help: "Backend requests that failed before a response arrived",
		}, []string{"op"}),
		Recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_recordings_total",
			Help: "Finished recordings by stop reason",
		}, []string{"reason"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragyverse_recording_duration_seconds",
			Help:    "Length of captured audio",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		Questions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_questions_total",
			Help: "Questions answered by input mode",
		}, []string{"mode"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_session_errors_total",
			Help: "Session errors by kind",
		}, []string{"kind"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragyverse_session_transitions_total",
			Help: "Session phase transitions by target phase",
		}, []string{"to"}),
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "ragyverse_session_rejected_total",
			Help: "Operations rejected because another one was in flight",
		}),
		ProbeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragyverse_playback_probe_duration_seconds",
			Help:    "Time spent validating synthesized audio",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveRequest(op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) NetworkError(op string) {
	if m == nil {
		return
	}
	m.NetworkErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRecording(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.Recordings.WithLabelValues(reason).Inc()
	m.RecordingDuration.Observe(d.Seconds())
}

func (m *Metrics) Answered(mode string) {
	if m == nil {
		return
	}
	m.Questions.WithLabelValues(mode).Inc()
}

func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Transition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RejectConcurrent() {
	if m == nil {
		return
	}
	m.Rejected.Inc()
}

func (m *Metrics) ObserveProbe(d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.Observe(d.Seconds())
}
