// Package trials runs the fixed stimulus→response→consequence pipeline for
// one trial. Every stage delegates to an experiment-supplied hook; behaviors
// override only the stages they need. The consequate stage owns correctness,
// reinforcement, and the reward/punish branches; trial_post owns the
// end-session check.
package trials

import (
	"context"
	"log/slog"
	"time"

	"operantcore/pkg/domain"
)

// Hooks are the overridable pipeline stages. The consequate stage expands
// into the reward and punish triplets; a behavior that needs neither leaves
// them as no-ops.
type Hooks interface {
	TrialPre(ctx context.Context, t *domain.Trial) error

	StimulusPre(ctx context.Context, t *domain.Trial) error
	StimulusMain(ctx context.Context, t *domain.Trial) error
	StimulusPost(ctx context.Context, t *domain.Trial) error

	ResponsePre(ctx context.Context, t *domain.Trial) error
	ResponseMain(ctx context.Context, t *domain.Trial) error
	ResponsePost(ctx context.Context, t *domain.Trial) error

	RewardPre(ctx context.Context, t *domain.Trial) error
	RewardMain(ctx context.Context, t *domain.Trial) error
	RewardPost(ctx context.Context, t *domain.Trial) error

	PunishPre(ctx context.Context, t *domain.Trial) error
	PunishMain(ctx context.Context, t *domain.Trial) error
	PunishPost(ctx context.Context, t *domain.Trial) error

	TrialPost(ctx context.Context, t *domain.Trial) error
}

// NopHooks implements every stage as a no-op. Behaviors embed it and
// override a subset.
type NopHooks struct{}

func (NopHooks) TrialPre(context.Context, *domain.Trial) error     { return nil }
func (NopHooks) StimulusPre(context.Context, *domain.Trial) error  { return nil }
func (NopHooks) StimulusMain(context.Context, *domain.Trial) error { return nil }
func (NopHooks) StimulusPost(context.Context, *domain.Trial) error { return nil }
func (NopHooks) ResponsePre(context.Context, *domain.Trial) error  { return nil }
func (NopHooks) ResponseMain(context.Context, *domain.Trial) error { return nil }
func (NopHooks) ResponsePost(context.Context, *domain.Trial) error { return nil }
func (NopHooks) RewardPre(context.Context, *domain.Trial) error    { return nil }
func (NopHooks) RewardMain(context.Context, *domain.Trial) error   { return nil }
func (NopHooks) RewardPost(context.Context, *domain.Trial) error   { return nil }
func (NopHooks) PunishPre(context.Context, *domain.Trial) error    { return nil }
func (NopHooks) PunishMain(context.Context, *domain.Trial) error   { return nil }
func (NopHooks) PunishPost(context.Context, *domain.Trial) error   { return nil }
func (NopHooks) TrialPost(context.Context, *domain.Trial) error    { return nil }

// Storer persists a completed trial. Satisfied by subjects.Subject.
type Storer interface {
	StoreTrial(ctx context.Context, t *domain.Trial) error
}

// Observer receives completed trials, e.g. for metrics.
type Observer interface {
	ObserveTrial(t *domain.Trial, seconds float64)
}

// Runner executes trials against one hook set. A single runner serves all
// blocks in a session; the control thread is the only caller.
type Runner struct {
	hooks   Hooks
	storer  Storer
	sink    domain.Sink
	logger  *slog.Logger
	session domain.Scheduler // enclosing session gate, checked in trial_post
	obs     Observer

	// Strict makes a persistence failure abort the session instead of
	// being reported and tolerated.
	Strict bool
}

// NewRunner builds a trial runner. sink and logger may be nil; session may
// be nil when no session gate applies (e.g. unbounded free-run sessions).
func NewRunner(hooks Hooks, storer Storer, session domain.Scheduler, sink domain.Sink, logger *slog.Logger) *Runner {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{hooks: hooks, storer: storer, sink: sink, logger: logger, session: session}
}

// SetObserver attaches a trial observer. Wiring time only.
func (r *Runner) SetObserver(obs Observer) { r.obs = obs }

// Run executes the full pipeline for one trial. It returns ErrEndSession
// when the session gate trips in trial_post, passes ErrEndExperiment from a
// trial_post hook through unchanged, returns a HardwareError when a stage
// faults, and nil otherwise. The persistence attempt for this trial
// completes before Run returns, so the caller never constructs trial N+1
// before trial N is settled.
func (r *Runner) Run(ctx context.Context, trial *domain.Trial, block *domain.Block) error {
	started := time.Now()
	r.logger.Debug("trial start",
		"session", trial.Session, "block", trial.BlockIndex,
		"trial", trial.Index, "condition", trial.Condition.Name)
	r.sink.Write(domain.Event{Name: "trial", Action: "start", Metadata: trial.Condition.Name})

	if err := r.hooks.TrialPre(ctx, trial); err != nil {
		return err
	}

	if err := r.stage3(ctx, trial, r.hooks.StimulusPre, r.hooks.StimulusMain, r.hooks.StimulusPost); err != nil {
		return err
	}
	if err := r.stage3(ctx, trial, r.hooks.ResponsePre, r.hooks.ResponseMain, r.hooks.ResponsePost); err != nil {
		return err
	}
	if err := r.consequate(ctx, trial, block); err != nil {
		return err
	}

	// trial_post runs before persistence, but its control signal is held
	// until the record is stored: trial N settles completely before the
	// session or the run unwinds. ErrEndSession and ErrEndExperiment are
	// distinct outcomes and must surface as raised.
	var signal error
	if err := r.hooks.TrialPost(ctx, trial); err != nil {
		if !domain.IsControlSignal(err) {
			return err
		}
		signal = err
	}
	if signal == nil && r.session != nil && !r.session.Check() {
		signal = domain.ErrEndSession
	}

	if err := r.store(ctx, trial); err != nil {
		return err
	}

	if r.obs != nil {
		r.obs.ObserveTrial(trial, time.Since(started).Seconds())
	}
	r.sink.Write(domain.Event{Name: "trial", Action: "end", Metadata: trial.Condition.Name})

	if signal != nil {
		r.logger.Info("ending after trial", "trial", trial.Index, "signal", signal)
		return signal
	}
	return nil
}

func (r *Runner) stage3(ctx context.Context, t *domain.Trial, pre, main, post func(context.Context, *domain.Trial) error) error {
	if err := pre(ctx, t); err != nil {
		return err
	}
	if err := main(ctx, t); err != nil {
		return err
	}
	return post(ctx, t)
}

func (r *Runner) consequate(ctx context.Context, trial *domain.Trial, block *domain.Block) error {
	correct := trial.MarkCorrect()
	policy := block.Reinforcement
	switch {
	case correct && trial.Condition.Rewarded && (policy == nil || policy.Consequate(trial)):
		trial.Reward = true
		return r.stage3(ctx, trial, r.hooks.RewardPre, r.hooks.RewardMain, r.hooks.RewardPost)
	case !correct && trial.Condition.Punished && (policy == nil || policy.Consequate(trial)):
		trial.Punish = true
		return r.stage3(ctx, trial, r.hooks.PunishPre, r.hooks.PunishMain, r.hooks.PunishPost)
	}
	return nil
}

func (r *Runner) store(ctx context.Context, trial *domain.Trial) error {
	if r.storer == nil {
		return nil
	}
	err := r.storer.StoreTrial(ctx, trial)
	if err == nil {
		return nil
	}
	if r.Strict {
		return err
	}
	// Reported, not fatal: a storage hiccup must not end a multi-day run.
	r.logger.Error("trial record not stored", "trial", trial.Index, "err", err)
	r.sink.Write(domain.Event{Name: "datastore", Action: "error", Metadata: err.Error()})
	return nil
}
