// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the set of engine metrics.
type Recorder interface {
	LobbyPromoted()
	ReadyCheckEnded(outcome string)
	SetupFailed(reason string)
	MatchStarted(setupDuration time.Duration)
	MatchFinalized(outcome string)
	CallbackReceived(kind, result string)
}

// Metrics registers the collectors on a registry.
type Metrics struct {
	lobbyPromotions  prometheus.Counter
	readyChecks      *prometheus.CounterVec
	setupFailures    *prometheus.CounterVec
	matchesStarted   prometheus.Counter
	matchesFinalized *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	setupDuration    prometheus.Histogram
	activeMatches    prometheus.Gauge
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		lobbyPromotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchhost_lobby_promotions_total",
			Help: "Lobbies that reached capacity and started a ready check",
		}),
		readyChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchhost_ready_checks_total",
			Help: "Ready checks by outcome",
		}, []string{"outcome"}),
		setupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchhost_setup_failures_total",
			Help: "Match setups that failed, by reason",
		}, []string{"reason"}),
		matchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchhost_matches_started_total",
			Help: "Matches provisioned and persisted",
		}),
		matchesFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchhost_matches_finalized_total",
			Help: "Matches torn down, by outcome",
		}, []string{"outcome"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchhost_callbacks_total",
			Help: "Provider callbacks by kind and result",
		}, []string{"kind", "result"}),
		setupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchhost_setup_duration_seconds",
			Help:    "Time from a full lobby to a live match",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
		activeMatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "matchhost_active_matches",
			Help: "Matches started and not yet finalized by this process",
		}),
	}
}

func (m *Metrics) LobbyPromoted() {
	m.lobbyPromotions.Inc()
}

func (m *Metrics) ReadyCheckEnded(outcome string) {
	m.readyChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetupFailed(reason string) {
	m.setupFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) MatchStarted(setupDuration time.Duration) {
	m.matchesStarted.Inc()
	m.activeMatches.Inc()
	m.setupDuration.Observe(setupDuration.Seconds())
}

func (m *Metrics) MatchFinalized(outcome string) {
	m.matchesFinalized.WithLabelValues(outcome).Inc()
	m.activeMatches.Dec()
}

func (m *Metrics) CallbackReceived(kind, result string) {
	m.callbacks.WithLabelValues(kind, result).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) LobbyPromoted()                  {}
func (Nop) ReadyCheckEnded(string)          {}
func (Nop) SetupFailed(string)              {}
func (Nop) MatchStarted(time.Duration)      {}
func (Nop) MatchFinalized(string)           {}
func (Nop) CallbackReceived(string, string) {}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = Nop{}
)
