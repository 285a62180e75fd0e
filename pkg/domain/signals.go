package domain

import (
	"errors"
	"fmt"
)

// Control signals are expected, cooperative outcomes, never failures. They
// are returned as sentinel errors and checked with errors.Is at pipeline
// stage boundaries only; nothing interrupts a stage mid-flight.
var (
	// ErrEndSession unwinds the trial pipeline to the session boundary
	// without yielding further trials.
	ErrEndSession = errors.New("end session")
	// ErrEndExperiment terminates the state-machine loop from any state.
	ErrEndExperiment = errors.New("end experiment")
)

// IsControlSignal reports whether err is one of the cooperative control
// signals rather than a real fault.
func IsControlSignal(err error) bool {
	return errors.Is(err, ErrEndSession) || errors.Is(err, ErrEndExperiment)
}

// HardwareError marks a read/write/poll failure on a hardware port. A
// hardware fault aborts the current trial or phase and is recovered at the
// nearest structural boundary; it is reported, never silently swallowed.
type HardwareError struct {
	Port string
	Op   string
	Err  error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s: %s: %v", e.Port, e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// IsHardwareError reports whether err wraps a HardwareError.
func IsHardwareError(err error) bool {
	var he *HardwareError
	return errors.As(err, &he)
}

// ConfigError marks an invalid construction-time configuration (unknown
// policy name, missing hardware capability, malformed schedule). These are
// fatal before the control loop starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a construction-time configuration fault.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// StoreError marks a trial-record persistence failure. It is reported
// distinctly from control faults and does not itself stop the control loop.
type StoreError struct {
	Driver string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Driver, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
