package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestControlSignalClassification(t *testing.T) {
	if !IsControlSignal(ErrEndSession) || !IsControlSignal(ErrEndExperiment) {
		t.Fatal("control signals not recognized")
	}
	if !IsControlSignal(fmt.Errorf("session bound: %w", ErrEndSession)) {
		t.Fatal("wrapped control signal not recognized")
	}
	if IsControlSignal(errors.New("boom")) {
		t.Fatal("plain error treated as control signal")
	}
}

func TestHardwareErrorWrapping(t *testing.T) {
	cause := errors.New("device gone")
	err := fmt.Errorf("trial aborted: %w", &HardwareError{Port: "response_port", Op: "poll", Err: cause})
	if !IsHardwareError(err) {
		t.Fatal("hardware error not detected through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if IsControlSignal(err) {
		t.Fatal("hardware fault must not look like a control signal")
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := NewConfigError("reinforcement", errors.New("unknown policy \"sometimes\""))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatal("expected ConfigError")
	}
	if ce.Field != "reinforcement" {
		t.Fatalf("unexpected field %q", ce.Field)
	}
}
