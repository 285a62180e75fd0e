package hwio

import (
	"fmt"

	"operantcore/pkg/domain"
)

// Panel is the full hardware surface a behavior drives. Each method puts the
// hardware into one of the coarse phase postures; all of them are
// synchronous.
type Panel interface {
	// Reset returns all outputs to their baseline values.
	Reset() error
	// Ready prepares the panel for an active session.
	Ready() error
	// Idle parks the panel between sessions with house light on.
	Idle() error
	// Sleep puts the panel into its dormant overnight posture.
	Sleep() error
	// Wake restores the panel from the dormant posture.
	Wake() error
}

// StandardPanel is the common operant-box layout: a house light, a feeder, a
// response port, and a speaker. Behaviors that need more ports embed or wrap
// it.
type StandardPanel struct {
	HouseLight   *BooleanOutput
	Feeder       *BooleanOutput
	ResponsePort *BooleanInput
	Speaker      *AudioOutput
}

// NewStandardPanel wires the standard ports against one driver. Any missing
// capability surfaces here as a configuration fault.
func NewStandardPanel(driver any, sink domain.Sink) (*StandardPanel, error) {
	light, err := NewBooleanOutput("house_light", driver, nil, sink)
	if err != nil {
		return nil, fmt.Errorf("wire house light: %w", err)
	}
	feeder, err := NewBooleanOutput("feeder", driver, nil, sink)
	if err != nil {
		return nil, fmt.Errorf("wire feeder: %w", err)
	}
	response, err := NewBooleanInput("response_port", driver, nil, sink)
	if err != nil {
		return nil, fmt.Errorf("wire response port: %w", err)
	}
	speaker, err := NewAudioOutput("speaker", driver, nil, sink)
	if err != nil {
		return nil, fmt.Errorf("wire speaker: %w", err)
	}
	return &StandardPanel{
		HouseLight:   light,
		Feeder:       feeder,
		ResponsePort: response,
		Speaker:      speaker,
	}, nil
}

// Reset turns the feeder off, stops playback, and lights the house light.
func (p *StandardPanel) Reset() error {
	if _, err := p.Feeder.Write(false); err != nil {
		return err
	}
	if err := p.Speaker.Stop(); err != nil {
		return err
	}
	_, err := p.HouseLight.Write(true)
	return err
}

// Ready is the session posture; the baseline posture already is ready.
func (p *StandardPanel) Ready() error { return p.Reset() }

// Idle parks the panel between sessions.
func (p *StandardPanel) Idle() error { return p.Reset() }

// Sleep darkens the panel for the dormant phase.
func (p *StandardPanel) Sleep() error {
	if _, err := p.Feeder.Write(false); err != nil {
		return err
	}
	if err := p.Speaker.Stop(); err != nil {
		return err
	}
	_, err := p.HouseLight.Write(false)
	return err
}

// Wake restores the house light after the dormant phase.
func (p *StandardPanel) Wake() error {
	_, err := p.HouseLight.Write(true)
	return err
}
