package experiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"operantcore/internal/blocks"
	"operantcore/internal/hwio"
	"operantcore/internal/queues"
	"operantcore/internal/reinforce"
	"operantcore/internal/schedule"
	"operantcore/internal/trials"
	"operantcore/pkg/domain"
)

type memStore struct {
	trials []*domain.Trial
}

func (m *memStore) StoreTrial(_ context.Context, t *domain.Trial) error {
	m.trials = append(m.trials, t)
	return nil
}

func goNoGoRig(t *testing.T, opts GoNoGoOptions) (*hwio.Sim, *hwio.StandardPanel, *GoNoGo) {
	t.Helper()
	sim := hwio.NewSim()
	panel, err := hwio.NewStandardPanel(sim, nil)
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	behavior, err := NewGoNoGo(panel, nil, opts, nil)
	if err != nil {
		t.Fatalf("behavior: %v", err)
	}
	return sim, panel, behavior
}

func fixedBlockFactory(conds []domain.Condition, reps int, bound domain.Scheduler) BlockFactory {
	return func(int) (*blocks.Handler, error) {
		return blocks.NewHandler(&domain.Block{
			Conditions:    conds,
			Queue:         queues.NewFixedBlock(conds, reps, false, nil),
			Reinforcement: reinforce.Continuous{},
			Bound:         bound,
		}), nil
	}
}

var goNoGoConditions = []domain.Condition{
	{Name: "go", Response: true, Rewarded: true, Content: "go.wav"},
	{Name: "nogo", Response: false, Punished: true, Content: "nogo.wav"},
}

func fastOpts() GoNoGoOptions {
	return GoNoGoOptions{
		StimulusDuration: 50 * time.Millisecond,
		RewardDuration:   time.Millisecond,
		PunishDuration:   time.Millisecond,
		StartTimeout:     50 * time.Millisecond,
	}
}

func TestGoNoGoSessionRunsAllTrials(t *testing.T) {
	sim, panel, behavior := goNoGoRig(t, fastOpts())
	sim.Set("response_port", true) // subject pecks constantly

	store := &memStore{}
	exp, err := New(Options{
		Name:        "gng",
		Panel:       panel,
		Hooks:       behavior,
		Blocks:      fixedBlockFactory(goNoGoConditions, 2, nil),
		Storer:      store,
		NumSessions: 1,
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}

	if err := exp.RunSession(context.Background()); err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(store.trials) != 4 {
		t.Fatalf("stored %d trials, want 4", len(store.trials))
	}
	if len(sim.Played()) != 4 {
		t.Fatalf("played %d stimuli, want 4", len(sim.Played()))
	}
	for _, trial := range store.trials {
		if trial.Correct == nil {
			t.Fatal("every completed trial must be consequated")
		}
		switch trial.Condition.Name {
		case "go":
			if !*trial.Correct || !trial.Reward {
				t.Fatalf("constant pecking should reward go trials: %+v", trial)
			}
			if trial.RT <= 0 {
				t.Fatalf("responded trial must carry a reaction time: %+v", trial)
			}
		case "nogo":
			if *trial.Correct || !trial.Punish {
				t.Fatalf("constant pecking should punish nogo trials: %+v", trial)
			}
		}
	}
	if !exp.Finished() {
		t.Fatal("one configured session has run, experiment should be finished")
	}
}

func TestSessionGateBoundsTrialCount(t *testing.T) {
	sim, panel, behavior := goNoGoRig(t, fastOpts())
	sim.Set("response_port", true)

	store := &memStore{}
	exp, err := New(Options{
		Panel:   panel,
		Hooks:   behavior,
		Blocks:  fixedBlockFactory(goNoGoConditions, 50, nil),
		Storer:  store,
		Session: schedule.NewCount(3),
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}

	err = exp.RunSession(context.Background())
	if !errors.Is(err, domain.ErrEndSession) {
		t.Fatalf("expected the session gate to end the session, got %v", err)
	}
	if len(store.trials) != 3 {
		t.Fatalf("stored %d trials, want 3", len(store.trials))
	}
}

func TestNoInitiationEndsSessionWithoutTrials(t *testing.T) {
	_, panel, behavior := goNoGoRig(t, GoNoGoOptions{
		StimulusDuration: 50 * time.Millisecond,
		StartTimeout:     30 * time.Millisecond,
	})
	store := &memStore{}
	exp, err := New(Options{
		Panel:  panel,
		Hooks:  behavior,
		Blocks: fixedBlockFactory(goNoGoConditions, 2, nil),
		Storer: store,
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}

	err = exp.RunSession(context.Background())
	if !errors.Is(err, domain.ErrEndSession) {
		t.Fatalf("expected end-session on initiation timeout, got %v", err)
	}
	if len(store.trials) != 0 {
		t.Fatalf("aborted initiation must not store trials, got %d", len(store.trials))
	}
}

func TestHardwareFaultAbortsSession(t *testing.T) {
	sim, panel, behavior := goNoGoRig(t, fastOpts())
	sim.Set("response_port", true)
	sim.FailOn("play", errors.New("dac gone"))

	exp, err := New(Options{
		Panel:  panel,
		Hooks:  behavior,
		Blocks: fixedBlockFactory(goNoGoConditions, 2, nil),
		Storer: &memStore{},
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}

	err = exp.RunSession(context.Background())
	if !domain.IsHardwareError(err) {
		t.Fatalf("expected a hardware fault to reach the session boundary, got %v", err)
	}
}

func TestAdaptiveBlockTracksOutcomes(t *testing.T) {
	sim, panel, behavior := goNoGoRig(t, fastOpts())
	sim.Set("response_port", true) // always responds, so go trials stay correct

	store := &memStore{}
	cond := domain.Condition{Name: "go", Response: true, Rewarded: true, Content: "go.wav"}

	var exp *Experiment
	factory := func(int) (*blocks.Handler, error) {
		stair, err := queues.NewStaircase(queues.StaircaseConfig{
			Start: 10, Up: 1, Down: 1, Step: 3, TrMax: 4,
		}, func() (bool, bool) { return exp.LastOutcome() })
		if err != nil {
			return nil, err
		}
		return blocks.NewHandler(&domain.Block{
			Conditions: []domain.Condition{cond},
			Queue:      NewAdaptiveQueue(cond, stair),
		}), nil
	}

	exp, err := New(Options{
		Panel:  panel,
		Hooks:  behavior,
		Blocks: factory,
		Storer: store,
	})
	if err != nil {
		t.Fatalf("new experiment: %v", err)
	}
	if err := exp.RunSession(context.Background()); err != nil {
		t.Fatalf("session: %v", err)
	}

	want := []float64{10, 7, 4, 1}
	if len(store.trials) != len(want) {
		t.Fatalf("stored %d trials, want %d", len(store.trials), len(want))
	}
	for i, trial := range store.trials {
		got, ok := trial.Annotations["staircase_value"].(float64)
		if !ok || got != want[i] {
			t.Fatalf("trial %d staircase_value = %v, want %v", i+1, trial.Annotations["staircase_value"], want[i])
		}
	}
}

func TestConstructionFailsFastOnMissingParts(t *testing.T) {
	_, panel, behavior := goNoGoRig(t, fastOpts())
	cases := []Options{
		{Hooks: behavior, Blocks: fixedBlockFactory(goNoGoConditions, 1, nil)},
		{Panel: panel, Blocks: fixedBlockFactory(goNoGoConditions, 1, nil)},
		{Panel: panel, Hooks: behavior},
	}
	for i, opts := range cases {
		if _, err := New(opts); !errors.As(err, new(*domain.ConfigError)) {
			t.Errorf("case %d: expected ConfigError, got %v", i, err)
		}
	}
}

var _ trials.Hooks = (*GoNoGo)(nil)
