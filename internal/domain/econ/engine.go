// Package econ implements the deterministic economic formulas that turn a
// snapshot of market observables into stability indices, incentives, fees and
// circuit-breaker flags.
//
// Every Engine method is pure: it reads only its arguments and the immutable
// Params the engine was built with, so one Engine can be shared freely.
package econ

import "fmt"

// Engine evaluates the formulas under a fixed parameter set.
type Engine struct {
	p Params
}

// New builds an engine after validating the parameter set.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("econ engine: %w", err)
	}
	return &Engine{p: p}, nil
}

// NewDefault builds an engine with DefaultParams.
func NewDefault() *Engine {
	return &Engine{p: DefaultParams()}
}

// Params returns a copy of the engine's parameters.
func (e *Engine) Params() Params { return e.p }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
