// Package metrics exposes the relay's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "velora"

// Metrics is the relay's instrumentation bundle. One instance per
// process, shared across calls.
type Metrics struct {
	CallsStarted  prometheus.Counter
	ActiveCalls   prometheus.Gauge
	CallDuration  prometheus.Histogram
	FramesSent    prometheus.Counter
	SilenceFrames prometheus.Counter
	BargeIns      prometheus.Counter
	ToolCalls     *prometheus.CounterVec
	ToolLatency   prometheus.Histogram
}

// New registers the relay metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Calls accepted on the media endpoint.",
		}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls currently bridged.",
		}),
		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of completed calls.",
			Buckets:   []float64{15, 30, 60, 120, 300, 600, 1200},
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound 20ms frames delivered to the telephony leg.",
		}),
		SilenceFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silence_frames_total",
			Help:      "Silence fill frames inserted on underrun.",
		}),
		BargeIns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barge_ins_total",
			Help:      "In-flight responses cancelled by caller speech.",
		}),
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_seconds",
			Help:      "Latency of tool HTTP dispatches.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordCallStart marks one accepted call.
func (m *Metrics) RecordCallStart() {
	m.CallsStarted.Inc()
	m.ActiveCalls.Inc()
}

// RecordCallEnd marks one completed call with its pacing totals.
func (m *Metrics) RecordCallEnd(duration time.Duration, framesSent, silenceFrames uint64) {
	m.ActiveCalls.Dec()
	m.CallDuration.Observe(duration.Seconds())
	m.FramesSent.Add(float64(framesSent))
	m.SilenceFrames.Add(float64(silenceFrames))
}

// RecordBargeIn marks one cancelled response.
func (m *Metrics) RecordBargeIn() {
	m.BargeIns.Inc()
}

// RecordToolCall marks one dispatch with its outcome label.
func (m *Metrics) RecordToolCall(tool, outcome string, latency time.Duration) {
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolLatency.Observe(latency.Seconds())
}
