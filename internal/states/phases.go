package states

import (
	"context"
	"errors"

	"operantcore/pkg/domain"
)

// Idle waits between sessions. It prefers sleep over a session when both
// transitions are due at the same poll, so the light schedule always wins.
type Idle struct {
	ctrl Controller
}

// NewIdle builds the idle phase over ctrl.
func NewIdle(ctrl Controller) *Idle { return &Idle{ctrl: ctrl} }

func (s *Idle) Name() domain.Phase { return domain.PhaseIdle }

func (s *Idle) Enter(context.Context) error { return s.ctrl.PanelIdle() }

func (s *Idle) Run(ctx context.Context) (domain.Phase, error) {
	for {
		switch {
		case s.ctrl.Finished():
			return domain.PhaseDone, nil
		case !s.ctrl.CheckLight():
			return domain.PhaseSleep, nil
		case s.ctrl.CheckSession():
			return domain.PhaseSession, nil
		}
		if err := sleepFor(ctx, s.ctrl.PollInterval()); err != nil {
			return "", err
		}
	}
}

func (s *Idle) Exit(context.Context) error { return nil }

// Sleep keeps the rig dark until the light schedule reopens. Waking the
// panel happens in Exit so lights come back even when the phase unwinds
// abnormally.
type Sleep struct {
	ctrl Controller
}

// NewSleep builds the sleep phase over ctrl.
func NewSleep(ctrl Controller) *Sleep { return &Sleep{ctrl: ctrl} }

func (s *Sleep) Name() domain.Phase { return domain.PhaseSleep }

func (s *Sleep) Enter(context.Context) error { return s.ctrl.PanelSleep() }

func (s *Sleep) Run(ctx context.Context) (domain.Phase, error) {
	for !s.ctrl.CheckLight() {
		if err := sleepFor(ctx, s.ctrl.PollInterval()); err != nil {
			return "", err
		}
	}
	return domain.PhaseIdle, nil
}

func (s *Sleep) Exit(context.Context) error { return s.ctrl.PanelWake() }

// Session runs one complete session and returns to idle. A session-level
// end signal is absorbed here; an experiment-level signal propagates and
// stops the machine.
type Session struct {
	ctrl Controller
}

// NewSession builds the session phase over ctrl.
func NewSession(ctrl Controller) *Session { return &Session{ctrl: ctrl} }

func (s *Session) Name() domain.Phase { return domain.PhaseSession }

func (s *Session) Enter(context.Context) error { return nil }

func (s *Session) Run(ctx context.Context) (domain.Phase, error) {
	err := s.ctrl.RunSession(ctx)
	if err == nil || errors.Is(err, domain.ErrEndSession) {
		return domain.PhaseIdle, nil
	}
	return "", err
}

func (s *Session) Exit(context.Context) error { return nil }
