package trials

import (
	"context"
	"errors"
	"testing"

	"operantcore/internal/reinforce"
	"operantcore/pkg/domain"
)

// recordingHooks captures the stage order and lets individual stages mutate
// the trial or inject errors.
type recordingHooks struct {
	NopHooks
	stages   []string
	response func(t *domain.Trial)
	postErr  error
}

func (h *recordingHooks) mark(s string) { h.stages = append(h.stages, s) }

func (h *recordingHooks) TrialPre(_ context.Context, t *domain.Trial) error {
	h.mark("trial_pre")
	return nil
}

func (h *recordingHooks) StimulusMain(_ context.Context, t *domain.Trial) error {
	h.mark("stimulus_main")
	return nil
}

func (h *recordingHooks) ResponseMain(_ context.Context, t *domain.Trial) error {
	h.mark("response_main")
	if h.response != nil {
		h.response(t)
	}
	return nil
}

func (h *recordingHooks) RewardMain(_ context.Context, t *domain.Trial) error {
	h.mark("reward_main")
	return nil
}

func (h *recordingHooks) PunishMain(_ context.Context, t *domain.Trial) error {
	h.mark("punish_main")
	return nil
}

func (h *recordingHooks) TrialPost(_ context.Context, t *domain.Trial) error {
	h.mark("trial_post")
	return h.postErr
}

type memStore struct {
	trials []*domain.Trial
	err    error
}

func (m *memStore) StoreTrial(_ context.Context, t *domain.Trial) error {
	if m.err != nil {
		return m.err
	}
	m.trials = append(m.trials, t)
	return nil
}

func rewardedTrial(respond bool) (*domain.Trial, *domain.Block) {
	cond := domain.Condition{Name: "go", Response: true, Rewarded: true, Punished: true}
	trial := &domain.Trial{Index: 1, Session: 1, Condition: cond, Responded: respond, Response: respond}
	block := &domain.Block{Reinforcement: reinforce.Continuous{}}
	return trial, block
}

func TestCorrectRewardedTrialRunsRewardBranch(t *testing.T) {
	hooks := &recordingHooks{}
	store := &memStore{}
	r := NewRunner(hooks, store, nil, nil, nil)
	trial, block := rewardedTrial(true)

	if err := r.Run(context.Background(), trial, block); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"trial_pre", "stimulus_main", "response_main", "reward_main", "trial_post"}
	if len(hooks.stages) != len(want) {
		t.Fatalf("stages = %v, want %v", hooks.stages, want)
	}
	for i := range want {
		if hooks.stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", hooks.stages, want)
		}
	}
	if !trial.Reward || trial.Punish {
		t.Fatalf("reward=%v punish=%v, want reward only", trial.Reward, trial.Punish)
	}
	if trial.Correct == nil || !*trial.Correct {
		t.Fatal("trial should be marked correct")
	}
	if len(store.trials) != 1 {
		t.Fatalf("stored %d trials, want 1", len(store.trials))
	}
}

func TestIncorrectPunishedTrialRunsPunishBranch(t *testing.T) {
	hooks := &recordingHooks{}
	r := NewRunner(hooks, &memStore{}, nil, nil, nil)
	trial, block := rewardedTrial(false) // no response on a go condition

	if err := r.Run(context.Background(), trial, block); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, s := range hooks.stages {
		if s == "reward_main" {
			t.Fatal("incorrect trial must not reach the reward branch")
		}
	}
	if !trial.Punish {
		t.Fatal("punished condition with wrong response should set Punish")
	}
}

func TestContinuousPolicyConsequatesEveryTrial(t *testing.T) {
	r := NewRunner(&recordingHooks{}, &memStore{}, nil, nil, nil)
	for i := 1; i <= 5; i++ {
		trial, block := rewardedTrial(true)
		trial.Index = i
		if err := r.Run(context.Background(), trial, block); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !trial.Reward {
			t.Fatalf("continuous reinforcement must reward every correct trial, trial %d missed", i)
		}
	}
}

func TestEndSessionFromTrialPostStoresThenSignals(t *testing.T) {
	hooks := &recordingHooks{postErr: domain.ErrEndSession}
	store := &memStore{}
	r := NewRunner(hooks, store, nil, nil, nil)
	trial, block := rewardedTrial(true)

	err := r.Run(context.Background(), trial, block)
	if !errors.Is(err, domain.ErrEndSession) {
		t.Fatalf("expected ErrEndSession, got %v", err)
	}
	if len(store.trials) != 1 {
		t.Fatal("the ending trial must still be persisted")
	}
}

func TestEndExperimentFromTrialPostPropagatesUnchanged(t *testing.T) {
	hooks := &recordingHooks{postErr: domain.ErrEndExperiment}
	store := &memStore{}
	r := NewRunner(hooks, store, nil, nil, nil)
	trial, block := rewardedTrial(true)

	err := r.Run(context.Background(), trial, block)
	if !errors.Is(err, domain.ErrEndExperiment) {
		t.Fatalf("expected ErrEndExperiment, got %v", err)
	}
	if errors.Is(err, domain.ErrEndSession) {
		t.Fatal("end-experiment must not be downgraded to end-session")
	}
	if len(store.trials) != 1 {
		t.Fatal("the final trial must still be persisted")
	}
}

func TestSessionGateTrippedEndsSession(t *testing.T) {
	r := NewRunner(&recordingHooks{}, &memStore{}, closedGate{}, nil, nil)
	trial, block := rewardedTrial(true)
	if err := r.Run(context.Background(), trial, block); !errors.Is(err, domain.ErrEndSession) {
		t.Fatalf("expected ErrEndSession from tripped gate, got %v", err)
	}
}

type closedGate struct{}

func (closedGate) Start()      {}
func (closedGate) Stop()       {}
func (closedGate) Check() bool { return false }

func TestStoreFailureIsToleratedUnlessStrict(t *testing.T) {
	fail := &memStore{err: &domain.StoreError{Driver: "csv", Err: errors.New("disk full")}}
	r := NewRunner(&recordingHooks{}, fail, nil, nil, nil)
	trial, block := rewardedTrial(true)
	if err := r.Run(context.Background(), trial, block); err != nil {
		t.Fatalf("lenient runner should tolerate store failure, got %v", err)
	}

	r.Strict = true
	trial, block = rewardedTrial(true)
	err := r.Run(context.Background(), trial, block)
	var se *domain.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("strict runner should surface StoreError, got %v", err)
	}
}

func TestHardwareFaultAbortsTrial(t *testing.T) {
	fault := &domain.HardwareError{Port: "feeder", Op: "write", Err: errors.New("io")}
	hooks := &faultingHooks{err: fault}
	store := &memStore{}
	r := NewRunner(hooks, store, nil, nil, nil)
	trial, block := rewardedTrial(true)

	err := r.Run(context.Background(), trial, block)
	if !domain.IsHardwareError(err) {
		t.Fatalf("expected hardware fault to propagate, got %v", err)
	}
	if len(store.trials) != 0 {
		t.Fatal("aborted trial must not be stored")
	}
}

type faultingHooks struct {
	NopHooks
	err error
}

func (h *faultingHooks) StimulusMain(context.Context, *domain.Trial) error { return h.err }
