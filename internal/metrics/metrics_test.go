package metrics

import (
	"testing"

	"operantcore/pkg/domain"
)

func counterValue(t *testing.T, r *Recorder, name string) float64 {
	t.Helper()
	families, err := r.Gather().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
	}
	return total
}

func TestObserveTrialCounts(t *testing.T) {
	r := NewRecorder()
	correct := true
	r.ObserveTrial(&domain.Trial{
		Condition: domain.Condition{Name: "Rewarded"},
		Correct:   &correct,
		Reward:    true,
	}, 2.5)
	if got := counterValue(t, r, "operant_trials_total"); got != 1 {
		t.Fatalf("trials = %v, want 1", got)
	}
	if got := counterValue(t, r, "operant_rewards_total"); got != 1 {
		t.Fatalf("rewards = %v, want 1", got)
	}
	if got := counterValue(t, r, "operant_punishments_total"); got != 0 {
		t.Fatalf("punishments = %v, want 0", got)
	}
}

func TestObserveFaultAndSession(t *testing.T) {
	r := NewRecorder()
	r.ObserveFault("hardware")
	r.ObserveFault("store")
	r.ObserveSession()
	if got := counterValue(t, r, "operant_faults_total"); got != 2 {
		t.Fatalf("faults = %v, want 2", got)
	}
	if got := counterValue(t, r, "operant_sessions_total"); got != 1 {
		t.Fatalf("sessions = %v, want 1", got)
	}
}

func TestPhaseGaugeIsExclusive(t *testing.T) {
	r := NewRecorder()
	r.ObservePhase(domain.PhaseSession)
	r.ObservePhase(domain.PhaseIdle)
	if got := counterValue(t, r, "operant_phase"); got != 1 {
		t.Fatalf("phase gauge sum = %v, want 1", got)
	}
}

func TestHandleCountsEvents(t *testing.T) {
	r := NewRecorder()
	r.Handle(domain.Event{Name: "feeder", Action: "write"})
	r.Handle(domain.Event{Name: "feeder", Action: "write"})
	if got := counterValue(t, r, "operant_events_total"); got != 2 {
		t.Fatalf("events = %v, want 2", got)
	}
}
