// Package blocks iterates the nested block-and-trial structure of a session.
// A Handler walks a queue of blocks, stamping each with a strictly
// increasing index on yield; a TrialSource walks one block's condition
// queue, constructing one trial per yielded condition until the queue is
// exhausted or the block's bound trips, whichever comes first.
package blocks

import (
	"operantcore/internal/queues"
	"operantcore/pkg/domain"
)

// Handler yields blocks in queue order with experiment-lifetime indices.
// Indices are never reused within a process, even across sessions: the
// counter lives in the handler, not the queue.
type Handler struct {
	queue queues.Queue[*domain.Block]
	index int
}

// NewHandler walks the given blocks in order.
func NewHandler(blocks ...*domain.Block) *Handler {
	return &Handler{queue: queues.Of(blocks...)}
}

// NewHandlerQueue walks blocks from an arbitrary queue strategy, e.g. a
// shuffled fixed-block queue.
func NewHandlerQueue(q queues.Queue[*domain.Block]) *Handler {
	return &Handler{queue: q}
}

// Next yields the next block, stamping its index.
func (h *Handler) Next() (*domain.Block, bool) {
	b, ok := h.queue.Next()
	if !ok {
		return nil, false
	}
	h.index++
	b.Index = h.index
	return b, true
}

// TrialSource constructs trials for one block. Per-block trial indices
// start at 1 and increase by exactly 1 per trial.
type TrialSource struct {
	block   *domain.Block
	session int
	next    int
	done    bool
}

// NewTrialSource starts iterating the block, starting its bound scheduler
// if it has one. session is recorded on every constructed trial.
func NewTrialSource(block *domain.Block, session int) *TrialSource {
	if block.Bound != nil {
		block.Bound.Start()
	}
	return &TrialSource{block: block, session: session}
}

// Next constructs the next trial, or reports exhaustion once the condition
// queue ends or the block bound trips.
func (s *TrialSource) Next() (*domain.Trial, bool) {
	if s.done {
		return nil, false
	}
	if s.block.Complete() {
		s.finish()
		return nil, false
	}
	cond, ok := s.block.Queue.Next()
	if !ok {
		s.finish()
		return nil, false
	}
	s.next++
	return &domain.Trial{
		Index:      s.next,
		Session:    s.session,
		BlockIndex: s.block.Index,
		Condition:  cond,
	}, true
}

// Stop ends iteration early, e.g. when a session-level signal unwinds the
// block before its queue is exhausted.
func (s *TrialSource) Stop() {
	if !s.done {
		s.finish()
	}
}

func (s *TrialSource) finish() {
	s.done = true
	if s.block.Bound != nil {
		s.block.Bound.Stop()
	}
}
