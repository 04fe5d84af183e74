package player

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the playback collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	TracksStarted      prometheus.Counter
	ResolutionFailures prometheus.Counter
	PlaybackErrors     prometheus.Counter
	AdvancesSkipped    prometheus.Counter
	QueueRejected      prometheus.Counter
	QueueLength        *prometheus.GaugeVec
	ResolveDuration    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kumaqueue_tracks_started_total",
			Help: "Tracks handed to a voice sink",
		}),
		ResolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kumaqueue_resolution_failures_total",
			Help: "Tracks that could not be resolved during advance",
		}),
		PlaybackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kumaqueue_playback_errors_total",
			Help: "Playback errors reported by voice sinks",
		}),
		AdvancesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kumaqueue_advances_deduplicated_total",
			Help: "Advance calls ignored because one was already in flight",
		}),
		QueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kumaqueue_queue_full_total",
			Help: "Enqueue attempts rejected at capacity",
		}),
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumaqueue_queue_length",
			Help: "Pending entries per guild",
		}, []string{"guild"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kumaqueue_resolve_duration_seconds",
			Help:    "Time spent resolving the next track",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TracksStarted,
			m.ResolutionFailures,
			m.PlaybackErrors,
			m.AdvancesSkipped,
			m.QueueRejected,
			m.QueueLength,
			m.ResolveDuration,
		)
	}
	return m
}

func (m *Metrics) trackStarted() {
	if m != nil {
		m.TracksStarted.Inc()
	}
}

func (m *Metrics) resolutionFailed() {
	if m != nil {
		m.ResolutionFailures.Inc()
	}
}

func (m *Metrics) playbackFailed() {
	if m != nil {
		m.PlaybackErrors.Inc()
	}
}

func (m *Metrics) advanceSkipped() {
	if m != nil {
		m.AdvancesSkipped.Inc()
	}
}

func (m *Metrics) queueRejected() {
	if m != nil {
		m.QueueRejected.Inc()
	}
}

func (m *Metrics) setQueueLength(guildID GuildID, n int) {
	if m != nil {
		m.QueueLength.WithLabelValues(guildID.String()).Set(float64(n))
	}
}

func (m *Metrics) observeResolve(seconds float64) {
	if m != nil {
		m.ResolveDuration.Observe(seconds)
	}
}
