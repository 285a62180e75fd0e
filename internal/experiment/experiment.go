// Package experiment ties the runtime together: the panel, the subject, the
// schedulers, the block structure, and the behavior hooks. The Experiment
// implements the phase controller the state machine drives and owns the
// session loop.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"operantcore/internal/blocks"
	"operantcore/internal/hwio"
	"operantcore/internal/trials"
	"operantcore/pkg/domain"
)

// DefaultPollInterval paces the idle and sleep transition checks.
const DefaultPollInterval = time.Minute

// BlockFactory builds a fresh block handler for one session. Queues are
// consumed as they run, so every session gets newly constructed blocks.
type BlockFactory func(session int) (*blocks.Handler, error)

// Storer persists completed trials, normally a subjects.Subject.
type Storer interface {
	StoreTrial(ctx context.Context, t *domain.Trial) error
}

// Observer receives run telemetry, normally the metrics recorder. All
// methods are optional via a nil observer.
type Observer interface {
	ObserveTrial(t *domain.Trial, seconds float64)
	ObserveSession()
	ObserveFault(kind string)
}

// Options configures an Experiment. Panel, Hooks and Blocks are required.
type Options struct {
	Name    string
	Panel   hwio.Panel
	Hooks   trials.Hooks
	Blocks  BlockFactory
	Storer  Storer

	// Light gates the lights-on phases; nil means always lit.
	Light domain.Scheduler
	// Session gates both session start (checked from idle) and session
	// continuation (checked in trial_post). Nil sessions start immediately
	// and run until their blocks are exhausted.
	Session domain.Scheduler

	// NumSessions ends the experiment after that many sessions; zero runs
	// unbounded.
	NumSessions int

	PollInterval time.Duration
	StrictStore  bool

	Sink   domain.Sink
	Logger *slog.Logger
}

// Experiment owns one subject's run on one panel.
type Experiment struct {
	name    string
	panel   hwio.Panel
	blocks  BlockFactory
	light   domain.Scheduler
	session domain.Scheduler
	poll    time.Duration
	maxRuns int

	runner *trials.Runner
	sink   domain.Sink
	logger *slog.Logger
	obs    Observer

	sessions  int
	lastTrial *domain.Trial
}

// New validates opts and builds the experiment. Construction faults are
// configuration errors and surface before the control loop starts.
func New(opts Options) (*Experiment, error) {
	if opts.Panel == nil {
		return nil, domain.NewConfigError("panel", fmt.Errorf("required"))
	}
	if opts.Hooks == nil {
		return nil, domain.NewConfigError("behavior", fmt.Errorf("hooks required"))
	}
	if opts.Blocks == nil {
		return nil, domain.NewConfigError("blocks", fmt.Errorf("block factory required"))
	}
	sink := opts.Sink
	if sink == nil {
		sink = domain.NopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	runner := trials.NewRunner(opts.Hooks, opts.Storer, opts.Session, sink, logger)
	runner.Strict = opts.StrictStore
	return &Experiment{
		name:    opts.Name,
		panel:   opts.Panel,
		blocks:  opts.Blocks,
		light:   opts.Light,
		session: opts.Session,
		poll:    poll,
		maxRuns: opts.NumSessions,
		runner:  runner,
		sink:    sink,
		logger:  logger,
	}, nil
}

// SetObserver attaches the telemetry observer. Wiring time only.
func (e *Experiment) SetObserver(obs Observer) {
	e.obs = obs
	e.runner.SetObserver(obs)
}

// Sessions returns the number of sessions started so far.
func (e *Experiment) Sessions() int { return e.sessions }

// LastOutcome reports the correctness of the most recent consequated trial.
// ok is false until a trial has completed. Adaptive queues adjust from this.
func (e *Experiment) LastOutcome() (correct bool, ok bool) {
	if e.lastTrial == nil || e.lastTrial.Correct == nil {
		return false, false
	}
	return *e.lastTrial.Correct, true
}

// CheckLight reports whether the rig is inside a lights-on window.
func (e *Experiment) CheckLight() bool {
	return e.light == nil || e.light.Check()
}

// CheckSession reports whether a session should start now.
func (e *Experiment) CheckSession() bool {
	return e.session == nil || e.session.Check()
}

// Finished reports whether the configured session count has been reached.
func (e *Experiment) Finished() bool {
	return e.maxRuns > 0 && e.sessions >= e.maxRuns
}

// PollInterval paces the idle and sleep transition checks.
func (e *Experiment) PollInterval() time.Duration { return e.poll }

// PanelIdle parks the panel between sessions.
func (e *Experiment) PanelIdle() error { return e.panel.Idle() }

// PanelSleep darkens the panel for the dormant phase.
func (e *Experiment) PanelSleep() error { return e.panel.Sleep() }

// PanelWake restores the panel from the dormant phase.
func (e *Experiment) PanelWake() error { return e.panel.Wake() }

// RunSession executes one session: ready the panel, walk the blocks, run
// every trial. It returns ErrEndSession when the session gate unwinds the
// session early, ErrEndExperiment to stop the run, and any hardware fault
// that aborted a trial.
func (e *Experiment) RunSession(ctx context.Context) error {
	e.sessions++
	session := e.sessions
	e.logger.Info("session start", "experiment", e.name, "session", session)
	e.sink.Write(domain.Event{Name: "session", Action: "start", Metadata: fmt.Sprintf("%d", session)})
	if e.session != nil {
		e.session.Start()
		defer e.session.Stop()
	}
	defer func() {
		e.sink.Write(domain.Event{Name: "session", Action: "end", Metadata: fmt.Sprintf("%d", session)})
		if e.obs != nil {
			e.obs.ObserveSession()
		}
	}()

	if err := e.panel.Ready(); err != nil {
		e.fault(err)
		return err
	}
	handler, err := e.blocks(session)
	if err != nil {
		return fmt.Errorf("build blocks for session %d: %w", session, err)
	}
	return e.runBlocks(ctx, session, handler)
}

func (e *Experiment) runBlocks(ctx context.Context, session int, handler *blocks.Handler) error {
	for {
		block, ok := handler.Next()
		if !ok {
			return nil
		}
		block.Experiment = e.name
		e.sink.Write(domain.Event{Name: "block", Action: "start", Metadata: fmt.Sprintf("%d", block.Index)})
		if err := e.runBlock(ctx, session, block); err != nil {
			return err
		}
	}
}

func (e *Experiment) runBlock(ctx context.Context, session int, block *domain.Block) error {
	src := blocks.NewTrialSource(block, session)
	defer src.Stop()
	for {
		trial, ok := src.Next()
		if !ok {
			return nil
		}
		annotateAdaptive(trial, block)
		err := e.runner.Run(ctx, trial, block)
		if trial.Correct != nil {
			e.lastTrial = trial
		}
		if err != nil {
			if !domain.IsControlSignal(err) {
				e.fault(err)
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (e *Experiment) fault(err error) {
	kind := "error"
	if domain.IsHardwareError(err) {
		kind = "hardware"
	} else if errors.As(err, new(*domain.StoreError)) {
		kind = "store"
	}
	e.logger.Error("session fault", "experiment", e.name, "kind", kind, "err", err)
	e.sink.Write(domain.Event{Name: "fault", Action: kind, Metadata: err.Error()})
	if e.obs != nil {
		e.obs.ObserveFault(kind)
	}
}
