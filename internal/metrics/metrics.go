// Package metrics publishes runtime counters over Prometheus. The recorder
// doubles as an event-bus handler so hardware and state-transition events
// feed the same registry as trial outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"operantcore/pkg/domain"
)

// Recorder aggregates experiment metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	trials      *prometheus.CounterVec
	rewards     prometheus.Counter
	punishments prometheus.Counter
	faults      *prometheus.CounterVec
	sessions    prometheus.Counter
	phase       *prometheus.GaugeVec
	trialDur    prometheus.Histogram
	events      *prometheus.CounterVec
}

// NewRecorder builds a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.trials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operant_trials_total",
		Help: "Completed trials by condition and correctness.",
	}, []string{"condition", "correct"})
	r.rewards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "operant_rewards_total",
		Help: "Rewards actually delivered.",
	})
	r.punishments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "operant_punishments_total",
		Help: "Punishments actually delivered.",
	})
	r.faults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operant_faults_total",
		Help: "Recovered faults by kind (hardware, store).",
	}, []string{"kind"})
	r.sessions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "operant_sessions_total",
		Help: "Sessions started.",
	})
	r.phase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "operant_phase",
		Help: "1 for the active state-machine phase, 0 otherwise.",
	}, []string{"phase"})
	r.trialDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "operant_trial_duration_seconds",
		Help:    "Wall-clock duration of the trial pipeline.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	r.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "operant_events_total",
		Help: "Telemetry events by source and action.",
	}, []string{"name", "action"})

	r.registry.MustRegister(r.trials, r.rewards, r.punishments, r.faults,
		r.sessions, r.phase, r.trialDur, r.events)
	return r
}

// ObserveTrial records a completed trial.
func (r *Recorder) ObserveTrial(t *domain.Trial, seconds float64) {
	correct := "undefined"
	if t.Correct != nil {
		if *t.Correct {
			correct = "true"
		} else {
			correct = "false"
		}
	}
	r.trials.WithLabelValues(t.Condition.Name, correct).Inc()
	if t.Reward {
		r.rewards.Inc()
	}
	if t.Punish {
		r.punishments.Inc()
	}
	if seconds > 0 {
		r.trialDur.Observe(seconds)
	}
}

// ObserveFault counts a recovered fault.
func (r *Recorder) ObserveFault(kind string) {
	r.faults.WithLabelValues(kind).Inc()
}

// ObserveSession counts a session start.
func (r *Recorder) ObserveSession() {
	r.sessions.Inc()
}

// ObservePhase marks the active phase.
func (r *Recorder) ObservePhase(phase domain.Phase) {
	for _, p := range []domain.Phase{domain.PhaseIdle, domain.PhaseSleep, domain.PhaseSession} {
		v := 0.0
		if p == phase {
			v = 1
		}
		r.phase.WithLabelValues(string(p)).Set(v)
	}
}

// Handle implements the event-bus handler, counting events by source.
func (r *Recorder) Handle(ev domain.Event) {
	r.events.WithLabelValues(ev.Name, ev.Action).Inc()
}

// Close implements the event-bus handler; the registry needs no teardown.
func (r *Recorder) Close() error { return nil }

// Handler exposes the registry for HTTP scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry for tests.
func (r *Recorder) Gather() prometheus.Gatherer { return r.registry }
