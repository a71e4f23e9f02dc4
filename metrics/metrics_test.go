package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("ask_text", 200, 120*time.Millisecond)
	m.ObserveRequest("ask_text", 200, 80*time.Millisecond)
	m.ObserveRequest("ask_text", 500, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("ask_text", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("ask_text", "500")))
}

func TestSessionCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Answered("voice")
	m.Error("network")
	m.Error("network")
	m.RejectConcurrent()
	m.Transition("answer_ready")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Questions.WithLabelValues("voice")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Errors.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("answer_ready")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 200, time.Second)
	m.NetworkError("x")
	m.ObserveRecording("manual", time.Second)
	m.Answered("text")
	m.Error("x")
	m.Transition("idle")
	m.RejectConcurrent()
	m.ObserveProbe(time.Second)
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
