package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"operantcore/internal/hwio"
	"operantcore/internal/trials"
	"operantcore/pkg/domain"
)

// Resolver materializes a stimulus content key to a local path the audio
// device can play, normally a stimbank.Bank.
type Resolver interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// GoNoGoOptions parameterizes the go/no-go behavior.
type GoNoGoOptions struct {
	// StimulusDuration bounds the response window per trial; a condition's
	// trial may still override it via MaxWait.
	StimulusDuration time.Duration
	// RewardDuration is how long the feeder stays up on a rewarded trial.
	RewardDuration time.Duration
	// PunishDuration is how long the house light stays dark on a punished
	// trial.
	PunishDuration time.Duration
	// StartTimeout bounds the wait for the subject to initiate a trial at
	// the response port. When it elapses with no initiation the behavior
	// ends the session; the schedules decide when to open the next one.
	// Non-positive waits until the context ends.
	StartTimeout time.Duration
}

// GoNoGo is the interruption go/no-go task: the subject initiates a trial at
// the response port, a stimulus plays, and responding during playback is
// correct on go conditions and incorrect on no-go conditions.
type GoNoGo struct {
	trials.NopHooks

	panel    *hwio.StandardPanel
	resolver Resolver
	opts     GoNoGoOptions
	logger   *slog.Logger
}

// NewGoNoGo builds the behavior over the standard panel. resolver may be nil
// when condition content keys already are playable paths.
func NewGoNoGo(panel *hwio.StandardPanel, resolver Resolver, opts GoNoGoOptions, logger *slog.Logger) (*GoNoGo, error) {
	if panel == nil {
		return nil, domain.NewConfigError("panel", fmt.Errorf("go/no-go requires the standard panel"))
	}
	if opts.StimulusDuration <= 0 {
		return nil, domain.NewConfigError("stimulus_duration", fmt.Errorf("must be positive"))
	}
	if opts.RewardDuration <= 0 {
		opts.RewardDuration = 2 * time.Second
	}
	if opts.PunishDuration <= 0 {
		opts.PunishDuration = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GoNoGo{panel: panel, resolver: resolver, opts: opts, logger: logger}, nil
}

// TrialPre waits for the subject to initiate the trial at the response port.
func (b *GoNoGo) TrialPre(ctx context.Context, t *domain.Trial) error {
	_, ok, err := b.panel.ResponsePort.Poll(ctx, b.opts.StartTimeout)
	if err != nil {
		return err
	}
	if !ok {
		b.logger.Info("no trial initiation, ending session", "trial", t.Index)
		return domain.ErrEndSession
	}
	return nil
}

// StimulusPre resolves the condition's content key to a playable path.
func (b *GoNoGo) StimulusPre(ctx context.Context, t *domain.Trial) error {
	t.Stimulus = t.Condition.Content
	if b.resolver != nil && t.Condition.Content != "" {
		path, err := b.resolver.Resolve(ctx, t.Condition.Content)
		if err != nil {
			return fmt.Errorf("resolve stimulus %s: %w", t.Condition.Content, err)
		}
		t.Stimulus = path
	}
	return nil
}

// StimulusMain queues and starts playback, stamping the onset time.
func (b *GoNoGo) StimulusMain(_ context.Context, t *domain.Trial) error {
	if err := b.panel.Speaker.Queue(t.Stimulus); err != nil {
		return err
	}
	if err := b.panel.Speaker.Play(); err != nil {
		return err
	}
	t.Time = time.Now()
	return nil
}

// ResponseMain polls the response port for the response window, capturing
// the response and reaction time.
func (b *GoNoGo) ResponseMain(ctx context.Context, t *domain.Trial) error {
	wait := t.MaxWait
	if wait <= 0 {
		wait = b.opts.StimulusDuration
		t.MaxWait = wait
	}
	detected, ok, err := b.panel.ResponsePort.Poll(ctx, wait)
	if err != nil {
		return err
	}
	if ok {
		t.Responded = true
		t.Response = true
		t.RT = detected.Sub(t.Time)
	}
	return nil
}

// ResponsePost stops playback once the response window closes; an
// interruption response cuts the stimulus short.
func (b *GoNoGo) ResponsePost(_ context.Context, t *domain.Trial) error {
	return b.panel.Speaker.Stop()
}

// RewardMain raises the feeder for the reward duration.
func (b *GoNoGo) RewardMain(ctx context.Context, t *domain.Trial) error {
	if _, err := b.panel.Feeder.Write(true); err != nil {
		return err
	}
	waitFor(ctx, b.opts.RewardDuration)
	_, err := b.panel.Feeder.Write(false)
	return err
}

// PunishMain darkens the house light for the punish duration.
func (b *GoNoGo) PunishMain(ctx context.Context, t *domain.Trial) error {
	if _, err := b.panel.HouseLight.Write(false); err != nil {
		return err
	}
	waitFor(ctx, b.opts.PunishDuration)
	_, err := b.panel.HouseLight.Write(true)
	return err
}

func waitFor(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
