// Package metrics registers the client's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice client. A nil
// *Metrics is valid everywhere and records nothing, so tests can skip
// registry setup entirely.
type Metrics struct {
	// Voice engine
	VoiceTransitions *prometheus.CounterVec
	PromptsSent      prometheus.Counter
	PromptFailures   prometheus.Counter
	PromptDuration   prometheus.Histogram
	PlaybacksStarted prometheus.Counter

	// Location engine
	PositionChecks        prometheus.Counter
	PositionCheckFailures prometheus.Counter
	StaleChecksDiscarded  prometheus.Counter
	TriggeredReminders    prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		VoiceTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gwen_voice_transitions_total",
			Help: "Voice engine state transitions by source and destination state",
		}, []string{"from", "to"}),
		PromptsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_prompts_sent_total",
			Help: "Prompts submitted to the backend",
		}),
		PromptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_prompt_failures_total",
			Help: "Prompt submissions that ended in an error",
		}),
		PromptDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gwen_prompt_duration_seconds",
			Help:    "Round-trip time of a prompt including reply synthesis",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		PlaybacksStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_playbacks_started_total",
			Help: "Reply audio playbacks started",
		}),
		PositionChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_position_checks_total",
			Help: "Geofence checks issued to the backend",
		}),
		PositionCheckFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_position_check_failures_total",
			Help: "Geofence checks that failed",
		}),
		StaleChecksDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gwen_stale_checks_discarded_total",
			Help: "Geofence check results dropped because a newer check was issued",
		}),
		TriggeredReminders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gwen_triggered_reminders",
			Help: "Reminders currently triggered at the latest checked position",
		}),
	}
}

// RecordTransition counts one state transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.VoiceTransitions.WithLabelValues(from, to).Inc()
}

// RecordPrompt counts a prompt round trip.
func (m *Metrics) RecordPrompt(seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.PromptsSent.Inc()
	m.PromptDuration.Observe(seconds)
	if failed {
		m.PromptFailures.Inc()
	}
}

// RecordPlayback counts one started playback.
func (m *Metrics) RecordPlayback() {
	if m == nil {
		return
	}
	m.PlaybacksStarted.Inc()
}

// RecordPositionCheck counts one geofence check outcome.
func (m *Metrics) RecordPositionCheck(failed bool) {
	if m == nil {
		return
	}
	m.PositionChecks.Inc()
	if failed {
		m.PositionCheckFailures.Inc()
	}
}

// RecordStaleCheck counts a discarded out-of-date check result.
func (m *Metrics) RecordStaleCheck() {
	if m == nil {
		return
	}
	m.StaleChecksDiscarded.Inc()
}

// SetTriggeredReminders publishes the size of the current triggered set.
func (m *Metrics) SetTriggeredReminders(n int) {
	if m == nil {
		return
	}
	m.TriggeredReminders.Set(float64(n))
}
