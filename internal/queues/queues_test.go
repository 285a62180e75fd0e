package queues

import (
	"math/rand/v2"
	"testing"
)

func TestRandomQueueWeightedFrequency(t *testing.T) {
	q, err := NewRandom([]string{"A", "B"}, []float64{0.9, 0.1}, 10000, rand.NewPCG(7, 11))
	if err != nil {
		t.Fatalf("new random: %v", err)
	}
	counts := map[string]int{}
	n := 0
	for {
		item, ok := q.Next()
		if !ok {
			break
		}
		counts[item]++
		n++
	}
	if n != 10000 {
		t.Fatalf("drew %d items, want 10000", n)
	}
	freq := float64(counts["A"]) / float64(n)
	if freq < 0.85 || freq > 0.95 {
		t.Fatalf("observed frequency of A = %.3f, want within [0.85, 0.95]", freq)
	}
}

func TestRandomQueueStopsAtMax(t *testing.T) {
	q, err := NewRandom([]int{1, 2, 3}, nil, 5, rand.NewPCG(1, 2))
	if err != nil {
		t.Fatalf("new random: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, ok := q.Next(); !ok {
			t.Fatalf("queue exhausted early at draw %d", i+1)
		}
	}
	if _, ok := q.Next(); ok {
		t.Fatal("queue should be exhausted after max draws")
	}
}

func TestRandomQueueRejectsBadInput(t *testing.T) {
	if _, err := NewRandom([]int{}, nil, 10, nil); err == nil {
		t.Fatal("expected error for empty items")
	}
	if _, err := NewRandom([]int{1, 2}, []float64{1}, 10, nil); err == nil {
		t.Fatal("expected error for mismatched weights")
	}
	if _, err := NewRandom([]int{1, 2}, []float64{0, 0}, 10, nil); err == nil {
		t.Fatal("expected error for zero weights")
	}
}

func TestFixedBlockRepeatsWithoutReplacement(t *testing.T) {
	q := NewFixedBlock([]string{"x", "y"}, 3, false, nil)
	counts := map[string]int{}
	total := 0
	for {
		item, ok := q.Next()
		if !ok {
			break
		}
		counts[item]++
		total++
	}
	if total != 6 || counts["x"] != 3 || counts["y"] != 3 {
		t.Fatalf("unexpected draw counts: %v", counts)
	}
}

func TestFixedBlockShuffleKeepsMultiset(t *testing.T) {
	q := NewFixedBlock([]int{1, 2, 3}, 2, true, rand.NewPCG(3, 5))
	counts := map[int]int{}
	for {
		item, ok := q.Next()
		if !ok {
			break
		}
		counts[item]++
	}
	for _, v := range []int{1, 2, 3} {
		if counts[v] != 2 {
			t.Fatalf("item %d drawn %d times, want 2", v, counts[v])
		}
	}
}

func TestOfYieldsInOrder(t *testing.T) {
	q := Of("a", "b")
	if v, ok := q.Next(); !ok || v != "a" {
		t.Fatalf("first: %v %v", v, ok)
	}
	if v, ok := q.Next(); !ok || v != "b" {
		t.Fatalf("second: %v %v", v, ok)
	}
	if _, ok := q.Next(); ok {
		t.Fatal("expected exhaustion")
	}
}
