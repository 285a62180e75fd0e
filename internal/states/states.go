// Package states drives the top-level phase machine of an experiment run.
// One phase is active at a time on the control goroutine; each phase polls
// its transition conditions and names its successor. Exit teardown always
// runs, even when the phase body fails or a control signal unwinds it.
package states

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"operantcore/pkg/domain"
)

// Controller is the experiment surface the built-in phases drive. The
// experiment owns sessions, schedules, and the panel; the phases only
// decide when to call what.
type Controller interface {
	// CheckLight reports whether the rig is inside a lights-on window.
	CheckLight() bool
	// CheckSession reports whether a session should start now.
	CheckSession() bool
	// Finished reports whether the whole experiment is complete.
	Finished() bool
	// PollInterval is the pause between transition checks in idle and
	// sleep.
	PollInterval() time.Duration

	PanelIdle() error
	PanelSleep() error
	PanelWake() error

	// RunSession executes one full session, pre through post. It returns
	// ErrEndExperiment to terminate the whole run.
	RunSession(ctx context.Context) error
}

// State is one phase of the machine.
type State interface {
	Name() domain.Phase
	Enter(ctx context.Context) error
	// Run blocks until a transition is due and returns the next phase.
	// Returning PhaseDone stops the machine.
	Run(ctx context.Context) (domain.Phase, error)
	Exit(ctx context.Context) error
}

// PhaseObserver is notified on every phase entry, e.g. for metrics.
type PhaseObserver interface {
	ObservePhase(phase domain.Phase)
}

// Machine runs registered states until one names PhaseDone, the context
// ends, or an unrecoverable error escapes.
type Machine struct {
	states  map[domain.Phase]State
	recover domain.Phase
	sink    domain.Sink
	logger  *slog.Logger
	obs     PhaseObserver
}

// NewMachine registers the given states. recoverTo names the phase to fall
// back to when a state fails with a non-signal error; empty disables
// recovery and the error escapes.
func NewMachine(recoverTo domain.Phase, sink domain.Sink, logger *slog.Logger, states ...State) *Machine {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Machine{
		states:  make(map[domain.Phase]State, len(states)),
		recover: recoverTo,
		sink:    sink,
		logger:  logger,
	}
	for _, s := range states {
		m.states[s.Name()] = s
	}
	return m
}

// SetObserver attaches a phase observer. Wiring time only.
func (m *Machine) SetObserver(obs PhaseObserver) { m.obs = obs }

// Run executes the machine from the start phase. It returns nil on clean
// termination, including termination by ErrEndExperiment.
func (m *Machine) Run(ctx context.Context, start domain.Phase) error {
	phase := start
	for phase != domain.PhaseDone {
		if err := ctx.Err(); err != nil {
			return err
		}
		state, ok := m.states[phase]
		if !ok {
			return domain.NewConfigError("phase", fmt.Errorf("no state registered for %q", phase))
		}
		next, err := m.runState(ctx, state)
		switch {
		case err == nil:
			phase = next
		case domain.IsControlSignal(err):
			m.logger.Info("experiment terminated", "phase", string(phase))
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case m.recover != "":
			m.logger.Error("phase failed, recovering", "phase", string(phase), "err", err)
			m.sink.Write(domain.Event{Name: "machine", Action: "recover", Metadata: err.Error()})
			phase = m.recover
		default:
			return err
		}
	}
	return nil
}

func (m *Machine) runState(ctx context.Context, state State) (next domain.Phase, err error) {
	name := string(state.Name())
	m.logger.Info("entering phase", "phase", name)
	m.sink.Write(domain.Event{Name: "phase", Action: name})
	if m.obs != nil {
		m.obs.ObservePhase(state.Name())
	}
	if err := state.Enter(ctx); err != nil {
		return "", fmt.Errorf("enter %s: %w", name, err)
	}
	defer func() {
		// Teardown always runs; its failure only wins when the body
		// succeeded.
		if exitErr := state.Exit(ctx); exitErr != nil && err == nil {
			err = fmt.Errorf("exit %s: %w", name, exitErr)
		}
	}()
	return state.Run(ctx)
}

// sleepFor pauses for d or until ctx ends.
func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
