// Package events implements the decoupled telemetry path. The control thread
// is the single producer; it pushes event records into one unbounded queue
// per consumer, and each consumer drains its own queue on an independent
// worker goroutine. The push never blocks, so a slow or stalled sink cannot
// stall the trial pipeline.
package events

import (
	"fmt"
	"os"
	"sync"
	"time"

	"operantcore/pkg/domain"
)

// Handler consumes drained events on its worker goroutine.
type Handler interface {
	Handle(domain.Event)
	// Close releases the handler's resources after its queue drains.
	Close() error
}

type consumer struct {
	handler Handler

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []domain.Event
	closed bool
	done   chan struct{}
}

func newConsumer(h Handler) *consumer {
	c := &consumer{handler: h, done: make(chan struct{})}
	c.cond = sync.NewCond(&c.mu)
	go c.run()
	return c
}

// push appends without blocking; the queue is unbounded.
func (c *consumer) push(ev domain.Event) {
	c.mu.Lock()
	if !c.closed {
		c.queue = append(c.queue, ev)
		c.cond.Signal()
	}
	c.mu.Unlock()
}

func (c *consumer) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed {
			c.cond.Wait()
		}
		batch := c.queue
		c.queue = nil
		closed := c.closed
		c.mu.Unlock()

		for _, ev := range batch {
			c.handler.Handle(ev)
		}
		if closed && len(batch) == 0 {
			return
		}
		if closed {
			// Drain whatever arrived before close, then loop once more to
			// observe the empty queue and exit.
			continue
		}
	}
}

func (c *consumer) close() error {
	c.mu.Lock()
	c.closed = true
	c.cond.Signal()
	c.mu.Unlock()
	<-c.done
	return c.handler.Close()
}

// Bus fans events out to its consumers. Write stamps the event time. The
// zero Bus is not usable; construct with NewBus.
type Bus struct {
	mu        sync.Mutex
	consumers []*consumer
	now       func() time.Time
}

// NewBus builds an event bus over the given handlers.
func NewBus(handlers ...Handler) *Bus {
	b := &Bus{now: time.Now}
	for _, h := range handlers {
		b.consumers = append(b.consumers, newConsumer(h))
	}
	return b
}

// AddHandler attaches another consumer. Intended for wiring time, before the
// control loop starts.
func (b *Bus) AddHandler(h Handler) {
	b.mu.Lock()
	b.consumers = append(b.consumers, newConsumer(h))
	b.mu.Unlock()
}

// Write stamps the event and pushes it to every consumer queue without
// blocking.
func (b *Bus) Write(ev domain.Event) {
	ev.Time = float64(b.now().UnixNano()) / float64(time.Second)
	b.mu.Lock()
	consumers := b.consumers
	b.mu.Unlock()
	for _, c := range consumers {
		c.push(ev)
	}
}

// Close drains every consumer queue and closes the handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()
	var firstErr error
	for _, c := range consumers {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FileHandler appends events to a tab-separated log file, one line per
// event: time, name, action, metadata.
type FileHandler struct {
	f *os.File
}

// NewFileHandler opens (or creates) the event log at path.
func NewFileHandler(path string) (*FileHandler, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileHandler{f: f}, nil
}

// Handle writes one event line. Errors are swallowed; telemetry is
// best-effort by contract.
func (h *FileHandler) Handle(ev domain.Event) {
	fmt.Fprintf(h.f, "%.6f\t%s\t%s\t%s\n", ev.Time, ev.Name, ev.Action, ev.Metadata)
}

// Close closes the underlying file.
func (h *FileHandler) Close() error { return h.f.Close() }
