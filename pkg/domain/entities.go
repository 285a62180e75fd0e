// Package domain defines the core value types, control signals, and boundary
// contracts of the experiment-control runtime. It must stay free of any
// internal package dependencies so that hardware, persistence, and scheduling
// implementations all plug in from the outside.
package domain

import "time"

// Phase identifies a top-level state of the experiment state machine.
type Phase string

// Canonical phases. PhaseDone is the terminal pseudo-phase returned by a
// state to stop the machine.
const (
	PhaseIdle    Phase = "idle"
	PhaseSleep   Phase = "sleep"
	PhaseSession Phase = "session"
	PhaseDone    Phase = ""
)

// Condition is a named stimulus category. It carries the response the subject
// is expected to give and whether a correct/incorrect outcome is eligible for
// reward/punishment. Conditions are immutable after construction and owned by
// exactly one block.
type Condition struct {
	// Name labels the condition in records and event logs.
	Name string
	// Response is the expected response for a correct trial.
	Response bool
	// Rewarded marks correct trials as eligible for reward delivery.
	Rewarded bool
	// Punished marks incorrect trials as eligible for punishment delivery.
	Punished bool
	// Content is the stimulus content key, resolved through the stimulus
	// bank when the trial starts.
	Content string
}

// Trial captures one stimulus-response-consequence cycle. A trial belongs to
// exactly one block and one condition, both fixed at construction. Indices
// are never reused within a process lifetime.
type Trial struct {
	// Index is the per-block trial index, starting at 1.
	Index int
	// Session is the session counter at the time the trial ran.
	Session int
	// BlockIndex is a non-owning back-reference to the enclosing block.
	BlockIndex int

	Condition Condition

	// Stimulus is the resolved content reference (e.g. a local file path).
	Stimulus string
	// Time is the stimulus onset time.
	Time time.Time

	// Response holds the subject's response. Responded distinguishes an
	// explicit false response from no response at all.
	Response  bool
	Responded bool

	// Correct is nil until the consequate stage has compared the response
	// against the condition.
	Correct *bool

	// RT is the reaction time; zero when the subject did not respond.
	RT time.Duration

	// Reward and Punish record whether a consequence was actually delivered.
	Reward bool
	Punish bool

	// MaxWait is how long the response stage waited, typically the stimulus
	// duration.
	MaxWait time.Duration

	// Annotations carries experiment-specific extras destined for the
	// trial record.
	Annotations map[string]any
}

// Annotate attaches an extra field to the trial record.
func (t *Trial) Annotate(key string, value any) {
	if t.Annotations == nil {
		t.Annotations = make(map[string]any)
	}
	t.Annotations[key] = value
}

// MarkCorrect resolves the trial's correctness from the captured response.
// Correct is defined only after the response stage has completed.
func (t *Trial) MarkCorrect() bool {
	correct := t.Response == t.Condition.Response
	t.Correct = &correct
	return correct
}

// Block binds a condition set, a queue strategy, a reinforcement policy, and
// a completion bound. Blocks are created by the block handler when its queue
// yields them and discarded once their trial source is exhausted.
type Block struct {
	// Index is assigned by the block handler on yield, starting at 1.
	Index int

	// Conditions is the ordered condition set; Weights, when non-nil, pairs
	// with it for weighted-random queues.
	Conditions []Condition
	Weights    []float64

	// Queue yields the conditions (or, for staircase blocks, the condition
	// selected for the current difficulty value) one trial at a time.
	Queue ConditionQueue

	// Reinforcement decides whether an eligible outcome actually triggers
	// delivery.
	Reinforcement ReinforcementPolicy

	// Bound, when non-nil, ends the block once it reports false, even if the
	// queue could yield more conditions.
	Bound Scheduler

	// Experiment is a non-owning back-reference by name, for records only.
	Experiment string
}

// Complete reports whether the block's bound has tripped. A nil bound never
// trips; queue exhaustion is detected by the trial source itself.
func (b *Block) Complete() bool {
	if b.Bound == nil {
		return false
	}
	return !b.Bound.Check()
}
