// Package schedule implements the scheduler gates that decide whether a
// phase or block is currently permitted to run. A phase attaches one or more
// schedulers; it runs only while every one of them reports true.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"operantcore/pkg/domain"
)

// Window is a half-open [Start,End) time-of-day interval. Windows may wrap
// midnight (e.g. lights off 17:00 to 09:00 is expressed as the on-window
// 09:00-17:00).
type Window struct {
	Start Minute
	End   Minute
}

// Minute is a time of day in minutes since midnight.
type Minute int

// ParseMinute parses an "HH:MM" clock string.
func ParseMinute(s string) (Minute, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return Minute(h*60 + m), nil
}

// ParseWindows parses a list of ["HH:MM","HH:MM"] pairs.
func ParseWindows(pairs [][2]string) ([]Window, error) {
	windows := make([]Window, 0, len(pairs))
	for _, p := range pairs {
		start, err := ParseMinute(p[0])
		if err != nil {
			return nil, domain.NewConfigError("schedule", err)
		}
		end, err := ParseMinute(p[1])
		if err != nil {
			return nil, domain.NewConfigError("schedule", err)
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows, nil
}

func (w Window) contains(m Minute) bool {
	if w.Start <= w.End {
		return m >= w.Start && m < w.End
	}
	// wraps midnight
	return m >= w.Start || m < w.End
}

// TimeOfDay activates while the current time of day falls inside one of its
// windows. The window list may be supplied externally, e.g. computed
// sunrise/sunset intervals. Start and Stop are no-ops; the gate is purely a
// function of the clock.
type TimeOfDay struct {
	windows []Window
	now     func() time.Time
}

// NewTimeOfDay builds a time-of-day scheduler over the given windows.
func NewTimeOfDay(windows []Window) *TimeOfDay {
	return &TimeOfDay{windows: windows, now: time.Now}
}

// Start implements domain.Scheduler.
func (s *TimeOfDay) Start() {}

// Stop implements domain.Scheduler.
func (s *TimeOfDay) Stop() {}

// Check reports whether the current time falls in any configured window.
func (s *TimeOfDay) Check() bool {
	t := s.now()
	m := Minute(t.Hour()*60 + t.Minute())
	for _, w := range s.windows {
		if w.contains(m) {
			return true
		}
	}
	return false
}

// Duration activates a phase for a bounded time and, optionally, keeps it
// inactive for an interval between activations. While active it reports true
// until the duration has elapsed since Start; while inactive it reports true
// only once the interval has elapsed since Stop (immediately if it never ran
// or no interval is configured).
type Duration struct {
	duration time.Duration
	interval time.Duration

	startTime time.Time
	stopTime  time.Time
	now       func() time.Time
}

// NewDuration builds a duration/interval scheduler. A zero duration means
// the active phase is unbounded; a zero interval means reactivation is
// immediate.
func NewDuration(duration, interval time.Duration) *Duration {
	return &Duration{duration: duration, interval: interval, now: time.Now}
}

// Start records the activation time.
func (s *Duration) Start() {
	s.startTime = s.now()
	s.stopTime = time.Time{}
}

// Stop records the deactivation time.
func (s *Duration) Stop() {
	s.stopTime = s.now()
	s.startTime = time.Time{}
}

// Check reports whether the phase should be (or stay) active.
func (s *Duration) Check() bool {
	t := s.now()
	if s.startTime.IsZero() {
		// Inactive: eligible immediately unless an interval is configured
		// and the phase has run before.
		if s.interval <= 0 || s.stopTime.IsZero() {
			return true
		}
		return t.Sub(s.stopTime) >= s.interval
	}
	// Active: run until the duration elapses.
	if s.duration <= 0 {
		return true
	}
	return t.Sub(s.startTime) < s.duration
}

// Count activates until a configured number of checks have happened. Each
// Check while started increments the counter exactly once, so attaching a
// Count to a session gate bounds the session's trial count.
type Count struct {
	max     int
	count   int
	started bool
}

// NewCount builds a count scheduler tripping after max checks.
func NewCount(max int) *Count {
	return &Count{max: max}
}

// Start resets the counter and begins counting checks.
func (s *Count) Start() {
	s.started = true
	s.count = 0
}

// Stop resets the counter and stops counting, so the next activation starts
// fresh.
func (s *Count) Stop() {
	s.started = false
	s.count = 0
}

// Check reports true until the counter reaches the maximum.
func (s *Count) Check() bool {
	if s.started {
		s.count++
	}
	return s.count < s.max
}

// Gate combines schedulers; a phase runs only if all of them agree.
type Gate struct {
	schedulers []domain.Scheduler
}

// NewGate builds a gate over the given schedulers. An empty gate always
// permits.
func NewGate(schedulers ...domain.Scheduler) *Gate {
	return &Gate{schedulers: schedulers}
}

// Attach adds a scheduler to the gate.
func (g *Gate) Attach(s domain.Scheduler) {
	g.schedulers = append(g.schedulers, s)
}

// Start fans out to every attached scheduler.
func (g *Gate) Start() {
	for _, s := range g.schedulers {
		s.Start()
	}
}

// Stop fans out to every attached scheduler.
func (g *Gate) Stop() {
	for _, s := range g.schedulers {
		s.Stop()
	}
}

// Check is the logical AND over every attached scheduler.
func (g *Gate) Check() bool {
	for _, s := range g.schedulers {
		if !s.Check() {
			return false
		}
	}
	return true
}
