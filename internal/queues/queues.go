// Package queues provides the lazy sequence producers that drive block and
// trial selection. Weighted-random and fixed-block queues are stateless
// beyond their configuration and can be rebuilt to restart; the staircase
// queue carries mutable trend state and is explicitly not restartable.
package queues

import (
	"fmt"
	"math/rand/v2"
)

// Queue lazily yields items. The second return is false once the queue is
// exhausted.
type Queue[T any] interface {
	Next() (T, bool)
}

type randomQueue[T any] struct {
	items   []T
	cum     []float64 // cumulative normalized weights
	max     int
	drawn   int
	rand    *rand.Rand
	uniform bool
}

// NewRandom builds a sampling-with-replacement queue over items. weights may
// be nil for uniform draws; otherwise it must pair with items and is
// normalized internally. The queue stops after max draws; max <= 0 yields an
// empty queue. src may be nil for the default source.
func NewRandom[T any](items []T, weights []float64, max int, src rand.Source) (Queue[T], error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("random queue requires at least one item")
	}
	q := &randomQueue[T]{items: items, max: max}
	if src != nil {
		q.rand = rand.New(src)
	}
	if weights == nil {
		q.uniform = true
		return q, nil
	}
	if len(weights) != len(items) {
		return nil, fmt.Errorf("random queue: %d weights for %d items", len(weights), len(items))
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("random queue: negative weight %v", w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("random queue: weights sum to zero")
	}
	q.cum = make([]float64, len(weights))
	var acc float64
	for i, w := range weights {
		acc += w / total
		q.cum[i] = acc
	}
	q.cum[len(q.cum)-1] = 1 // guard against rounding
	return q, nil
}

func (q *randomQueue[T]) float() float64 {
	if q.rand != nil {
		return q.rand.Float64()
	}
	return rand.Float64()
}

func (q *randomQueue[T]) intn(n int) int {
	if q.rand != nil {
		return q.rand.IntN(n)
	}
	return rand.IntN(n)
}

func (q *randomQueue[T]) Next() (T, bool) {
	var zero T
	if q.drawn >= q.max {
		return zero, false
	}
	q.drawn++
	if q.uniform {
		return q.items[q.intn(len(q.items))], true
	}
	r := q.float()
	for i, c := range q.cum {
		if r < c {
			return q.items[i], true
		}
	}
	return q.items[len(q.items)-1], true
}

type fixedQueue[T any] struct {
	items []T
	pos   int
}

// NewFixedBlock repeats each item the given number of times, optionally
// shuffling the expanded sequence once, and consumes it without replacement.
func NewFixedBlock[T any](items []T, repetitions int, shuffle bool, src rand.Source) Queue[T] {
	if repetitions < 1 {
		repetitions = 1
	}
	expanded := make([]T, 0, len(items)*repetitions)
	for r := 0; r < repetitions; r++ {
		expanded = append(expanded, items...)
	}
	if shuffle {
		shuffler := rand.Shuffle
		if src != nil {
			shuffler = rand.New(src).Shuffle
		}
		shuffler(len(expanded), func(i, j int) {
			expanded[i], expanded[j] = expanded[j], expanded[i]
		})
	}
	return &fixedQueue[T]{items: expanded}
}

func (q *fixedQueue[T]) Next() (T, bool) {
	var zero T
	if q.pos >= len(q.items) {
		return zero, false
	}
	item := q.items[q.pos]
	q.pos++
	return item, true
}

// Of wraps a fixed slice as a queue, yielding each element once in order.
func Of[T any](items ...T) Queue[T] {
	return &fixedQueue[T]{items: items}
}
