package hwio

import (
	"fmt"
	"sync"
	"time"
)

// Sim is an in-process driver implementing every port capability. It backs
// the CLI's dry-run mode and the engine tests; wire-level drivers live
// outside this module.
type Sim struct {
	mu      sync.Mutex
	values  map[string]bool
	queued  string
	playing bool
	played  []string
	failOps map[string]error
}

// NewSim returns a simulated driver with all channels low.
func NewSim() *Sim {
	return &Sim{
		values:  make(map[string]bool),
		failOps: make(map[string]error),
	}
}

// Set drives a channel value, e.g. to simulate a peck.
func (s *Sim) Set(channel string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[channel] = value
}

// SetAfter drives a channel value after a delay, from a helper goroutine.
func (s *Sim) SetAfter(channel string, value bool, delay time.Duration) {
	time.AfterFunc(delay, func() { s.Set(channel, value) })
}

// FailOn makes the named op ("read", "write", "queue", "play", "stop")
// return err, to exercise hardware-fault recovery.
func (s *Sim) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOps, op)
	} else {
		s.failOps[op] = err
	}
}

// Played returns the content refs played so far.
func (s *Sim) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

// Playing reports whether playback is active.
func (s *Sim) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// ReadBool implements BoolReader.
func (s *Sim) ReadBool(channel string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["read"]; err != nil {
		return false, err
	}
	return s.values[channel], nil
}

// WriteBool implements BoolWriter.
func (s *Sim) WriteBool(channel string, value bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["write"]; err != nil {
		return false, err
	}
	s.values[channel] = value
	return value, nil
}

// QueueWav implements AudioDevice.
func (s *Sim) QueueWav(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["queue"]; err != nil {
		return err
	}
	s.queued = path
	return nil
}

// PlayWav implements AudioDevice.
func (s *Sim) PlayWav() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["play"]; err != nil {
		return err
	}
	if s.queued == "" {
		return fmt.Errorf("nothing queued")
	}
	s.playing = true
	s.played = append(s.played, s.queued)
	return nil
}

// StopWav implements AudioDevice.
func (s *Sim) StopWav() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOps["stop"]; err != nil {
		return err
	}
	s.playing = false
	s.queued = ""
	return nil
}
