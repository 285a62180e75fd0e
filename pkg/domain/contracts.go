package domain

import "context"

// Scheduler gates whether a phase or block is currently permitted to run.
// Start and Stop are called at phase entry/exit and are the only mutations;
// Check is a pure decision.
type Scheduler interface {
	Start()
	Stop()
	Check() bool
}

// ReinforcementPolicy decides, given a trial outcome and its history, whether
// an eligible reward/punishment is actually delivered. It is the single
// extension point controlling reward density.
type ReinforcementPolicy interface {
	Consequate(*Trial) bool
}

// ConditionQueue lazily yields stimulus conditions for one block. The second
// return is false once the queue is exhausted.
type ConditionQueue interface {
	Next() (Condition, bool)
}

// TrialStore persists flat trial records. A store failure is reported through
// the event path but must also surface here so callers can enforce strict
// durability when they need it.
type TrialStore interface {
	Store(ctx context.Context, rec Record) error
	Close() error
}

// Event is one telemetry record on the decoupled event path.
type Event struct {
	// Time is stamped by the bus at write.
	Time float64 `json:"time"`
	// Name identifies the emitting component (port, state, block, ...).
	Name string `json:"name"`
	// Action is what happened (e.g. "write", "poll", "enter").
	Action string `json:"action"`
	// Metadata carries free-form detail.
	Metadata string `json:"metadata,omitempty"`
}

// Sink accepts events. Write must be non-blocking and best-effort; a slow or
// stalled consumer must never stall the control thread.
type Sink interface {
	Write(Event)
}

// NopSink discards events. Useful as a default and in tests.
type NopSink struct{}

// Write discards the event.
func (NopSink) Write(Event) {}
