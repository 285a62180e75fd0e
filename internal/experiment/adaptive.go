package experiment

import (
	"operantcore/internal/queues"
	"operantcore/pkg/domain"
)

// AdaptiveQueue adapts a value-producing staircase to a condition queue: every
// yield runs the base condition at the staircase's current difficulty value.
// The value of the pending trial is exposed through Value so hooks can shape
// the stimulus, and it is annotated onto each trial record.
type AdaptiveQueue struct {
	base  domain.Condition
	stair *queues.Staircase
	value float64
}

// NewAdaptiveQueue wraps stair over the base condition.
func NewAdaptiveQueue(base domain.Condition, stair *queues.Staircase) *AdaptiveQueue {
	return &AdaptiveQueue{base: base, stair: stair}
}

// Next yields the base condition at the next staircase value.
func (q *AdaptiveQueue) Next() (domain.Condition, bool) {
	v, ok := q.stair.Next()
	if !ok {
		return domain.Condition{}, false
	}
	q.value = v
	return q.base, true
}

// Value returns the difficulty value of the most recently yielded condition.
func (q *AdaptiveQueue) Value() float64 { return q.value }

// Reversals returns the staircase's reversal count.
func (q *AdaptiveQueue) Reversals() int { return q.stair.Reversals() }

type valuer interface{ Value() float64 }

// annotateAdaptive records the current difficulty value on trials drawn from
// an adaptive queue.
func annotateAdaptive(t *domain.Trial, block *domain.Block) {
	if v, ok := block.Queue.(valuer); ok {
		t.Annotate("staircase_value", v.Value())
	}
}
