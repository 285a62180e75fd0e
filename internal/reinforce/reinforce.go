// Package reinforce implements the reinforcement schedules that decide
// whether a trial outcome actually triggers reward or punishment delivery.
// Policies are selected by name at construction; an unknown name is a fatal
// configuration fault.
package reinforce

import (
	"fmt"
	"math/rand/v2"

	"operantcore/pkg/domain"
)

// Continuous reinforces every eligible trial.
type Continuous struct{}

// Consequate always returns true.
func (Continuous) Consequate(*domain.Trial) bool { return true }

// FixedRatio reinforces every Nth eligible trial. The counter tracks
// eligible consequations, not raw trials, so FR3 pays out on consequations
// 3, 6, 9, ...
type FixedRatio struct {
	N     int
	count int
}

// Consequate counts the trial and reports whether the ratio is met.
func (p *FixedRatio) Consequate(*domain.Trial) bool {
	p.count++
	if p.count >= p.N {
		p.count = 0
		return true
	}
	return false
}

// VariableRatio reinforces each eligible trial with probability 1/N, giving
// an average of one delivery per N trials.
type VariableRatio struct {
	N    int
	rand *rand.Rand
}

// Consequate draws against the 1/N probability.
func (p *VariableRatio) Consequate(*domain.Trial) bool {
	if p.N <= 1 {
		return true
	}
	if p.rand != nil {
		return p.rand.Float64() < 1/float64(p.N)
	}
	return rand.Float64() < 1/float64(p.N)
}

// Percent reinforces each eligible trial with fixed probability P in [0,1].
type Percent struct {
	P    float64
	rand *rand.Rand
}

// Consequate draws against P.
func (p *Percent) Consequate(*domain.Trial) bool {
	if p.P >= 1 {
		return true
	}
	if p.P <= 0 {
		return false
	}
	if p.rand != nil {
		return p.rand.Float64() < p.P
	}
	return rand.Float64() < p.P
}

// Params carries the numeric parameters a named schedule may need.
type Params struct {
	Ratio   int
	Percent float64
}

// New builds a policy by name: "continuous", "fixed_ratio", "variable_ratio"
// or "percent". Unknown names fail fast with a ConfigError so the fault
// surfaces before the control loop starts.
func New(name string, params Params) (domain.ReinforcementPolicy, error) {
	switch name {
	case "", "continuous":
		return Continuous{}, nil
	case "fixed_ratio":
		if params.Ratio < 1 {
			return nil, domain.NewConfigError("reinforcement", fmt.Errorf("fixed_ratio requires ratio >= 1, got %d", params.Ratio))
		}
		return &FixedRatio{N: params.Ratio}, nil
	case "variable_ratio":
		if params.Ratio < 1 {
			return nil, domain.NewConfigError("reinforcement", fmt.Errorf("variable_ratio requires ratio >= 1, got %d", params.Ratio))
		}
		return &VariableRatio{N: params.Ratio}, nil
	case "percent":
		if params.Percent < 0 || params.Percent > 1 {
			return nil, domain.NewConfigError("reinforcement", fmt.Errorf("percent requires p in [0,1], got %v", params.Percent))
		}
		return &Percent{P: params.Percent}, nil
	default:
		return nil, domain.NewConfigError("reinforcement", fmt.Errorf("unknown policy %q", name))
	}
}
