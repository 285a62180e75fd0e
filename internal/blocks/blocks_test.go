package blocks

import (
	"testing"

	"operantcore/internal/queues"
	"operantcore/internal/schedule"
	"operantcore/pkg/domain"
)

func twoConditionBlock(maxTrials int) *domain.Block {
	conds := []domain.Condition{
		{Name: "Rewarded", Response: false, Rewarded: true},
		{Name: "Unrewarded", Response: true},
	}
	return &domain.Block{
		Conditions: conds,
		Queue:      queues.NewFixedBlock(conds, maxTrials/2, false, nil),
	}
}

func TestHandlerStampsIncreasingIndices(t *testing.T) {
	h := NewHandler(twoConditionBlock(4), twoConditionBlock(4), twoConditionBlock(4))
	for want := 1; want <= 3; want++ {
		b, ok := h.Next()
		if !ok {
			t.Fatalf("handler exhausted at block %d", want)
		}
		if b.Index != want {
			t.Fatalf("block index = %d, want %d", b.Index, want)
		}
	}
	if _, ok := h.Next(); ok {
		t.Fatal("expected exhaustion after three blocks")
	}
}

func TestTrialIndicesIncreaseByOneFromOne(t *testing.T) {
	block := twoConditionBlock(6)
	block.Index = 1
	src := NewTrialSource(block, 2)
	var indices []int
	for {
		trial, ok := src.Next()
		if !ok {
			break
		}
		indices = append(indices, trial.Index)
		if trial.Session != 2 || trial.BlockIndex != 1 {
			t.Fatalf("trial carries wrong back-references: %+v", trial)
		}
	}
	if len(indices) != 6 {
		t.Fatalf("got %d trials, want 6", len(indices))
	}
	for i, idx := range indices {
		if idx != i+1 {
			t.Fatalf("trial indices %v must increase by exactly 1 from 1", indices)
		}
	}
}

func TestTrialSourceStopsWhenBoundTrips(t *testing.T) {
	block := twoConditionBlock(100)
	block.Bound = schedule.NewCount(3)
	src := NewTrialSource(block, 1)
	n := 0
	for {
		if _, ok := src.Next(); !ok {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("bound of 3 checks should cut iteration at 2 trials, got %d", n)
	}
}

func TestTrialSourceStopHaltsIteration(t *testing.T) {
	src := NewTrialSource(twoConditionBlock(10), 1)
	if _, ok := src.Next(); !ok {
		t.Fatal("first trial should yield")
	}
	src.Stop()
	if _, ok := src.Next(); ok {
		t.Fatal("stopped source must not yield further trials")
	}
}

func TestHandlerQueueStrategy(t *testing.T) {
	b1, b2 := twoConditionBlock(2), twoConditionBlock(2)
	h := NewHandlerQueue(queues.NewFixedBlock([]*domain.Block{b1, b2}, 1, false, nil))
	seen := 0
	for {
		if _, ok := h.Next(); !ok {
			break
		}
		seen++
	}
	if seen != 2 {
		t.Fatalf("saw %d blocks, want 2", seen)
	}
}
