package queues

import "fmt"

// StaircaseConfig parameterizes an adaptive staircase. Larger values are
// assumed easier: after a correct trial the next value moves down by
// Down*Step, after an incorrect trial it moves up by Up*Step.
type StaircaseConfig struct {
	Start     float64
	Up        int     // steps up after an incorrect trial
	Down      int     // steps down after a correct trial
	Step      float64 // step size
	MinVal    *float64
	MaxVal    *float64
	TrMin     int // minimum trials before reversals can terminate
	TrMax     int // hard maximum trial count
	Reversals int // reversal count that terminates once past TrMin
}

// Staircase yields a scalar difficulty value per trial, driven by the
// correctness of the previous trial. It counts a reversal whenever the prior
// trial's outcome disagrees with the running trend direction, which then
// flips. The queue depends on trial history outside itself and cannot be
// restarted; build a fresh one per block.
type Staircase struct {
	cfg  StaircaseConfig
	last func() (correct bool, ok bool)

	val     float64
	trials  int
	nrev    int
	goingUp bool
	done    bool
}

// NewStaircase builds a staircase queue. last reports the correctness of the
// most recent completed trial; it is consulted before every yield after the
// first.
func NewStaircase(cfg StaircaseConfig, last func() (bool, bool)) (*Staircase, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("staircase: step must be positive")
	}
	if cfg.TrMax <= 0 {
		cfg.TrMax = 100
	}
	if last == nil {
		return nil, fmt.Errorf("staircase: last-outcome source required")
	}
	return &Staircase{cfg: cfg, last: last, val: cfg.Start}, nil
}

// Reversals returns the number of trend reversals counted so far.
func (s *Staircase) Reversals() int { return s.nrev }

// Next yields the difficulty value for the upcoming trial.
func (s *Staircase) Next() (float64, bool) {
	if s.done {
		return 0, false
	}
	if s.trials == 0 {
		// First trial runs at the start value, no history to consult.
		s.trials = 1
		return s.val, true
	}

	correct, ok := s.last()
	if !ok {
		// No completed trial to adapt from; the previous trial aborted.
		s.done = true
		return 0, false
	}

	if correct {
		s.val -= float64(s.cfg.Down) * s.cfg.Step
	} else {
		s.val += float64(s.cfg.Up) * s.cfg.Step
	}

	// A reversal happens when the outcome agrees with the current trend
	// flag: the trend was up and the subject got it right, or the trend was
	// down and the subject got it wrong.
	if correct == s.goingUp {
		s.nrev++
		s.goingUp = !s.goingUp
	}

	if s.cfg.MaxVal != nil && s.val > *s.cfg.MaxVal {
		s.val = *s.cfg.MaxVal
	} else if s.cfg.MinVal != nil && s.val < *s.cfg.MinVal {
		s.val = *s.cfg.MinVal
	}

	s.trials++
	val := s.val

	// Decide whether this is the final yield.
	switch {
	case s.trials < s.cfg.TrMin:
	case s.trials >= s.cfg.TrMax:
		s.done = true
	case s.cfg.Reversals > 0 && s.nrev >= s.cfg.Reversals:
		s.done = true
	}
	return val, true
}
