package aerobasic

import (
	"fmt"
	"math"
	"strings"
)

// CrossingDirection filters the crossings of a stopping function.
type CrossingDirection uint8

const (
	// Either accepts crossings in both directions.
	Either CrossingDirection = iota
	// Increasing only accepts crossings where the function goes from below to above the target.
	Increasing
	// Decreasing only accepts crossings where the function goes from above to below the target.
	Decreasing
)

func (d CrossingDirection) String() string {
	switch d {
	case Increasing:
		return "increasing"
	case Decreasing:
		return "decreasing"
	default:
		return "either"
	}
}

// CrossingDirectionFromString parses a direction name.
func CrossingDirectionFromString(s string) (CrossingDirection, error) {
	switch strings.ToLower(s) {
	case "", "either", "any":
		return Either, nil
	case "increasing", "up", "ascending":
		return Increasing, nil
	case "decreasing", "down", "descending":
		return Decreasing, nil
	default:
		return Either, fmt.Errorf("%w: unknown crossing direction %q", ErrConfiguration, s)
	}
}

// ScalarFunc is a scalar function of the propagated state.
type ScalarFunc func(t float64, x []float64) float64

const (
	// DefaultEventTolerance is the step size below which a crossing is accepted.
	DefaultEventTolerance = 1e-4
)

// StoppingCondition defines when an event propagation terminates.
type StoppingCondition struct {
	Func       ScalarFunc
	Target     float64
	Tolerance  float64 // Crossings are accepted once the step size is below this value.
	Direction  CrossingDirection
	Count      int     // Number of crossings to find, 0 is the same as 1.
	MaxElapsed float64 // Budget on |t - t0|, 0 uses the integrator maximum duration.
}

// NewStoppingCondition returns a condition stopping at the first crossing of
// target by g, in either direction.
func NewStoppingCondition(g ScalarFunc, target float64) StoppingCondition {
	return StoppingCondition{Func: g, Target: target, Tolerance: DefaultEventTolerance, Direction: Either, Count: 1}
}

func (c StoppingCondition) validate() error {
	if c.Func == nil {
		return fmt.Errorf("%w: stopping condition has no function", ErrConfiguration)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("%w: event tolerance must be positive, got %g", ErrConfiguration, c.Tolerance)
	}
	if c.Count < 0 {
		return fmt.Errorf("%w: crossing count must be non-negative, got %d", ErrConfiguration, c.Count)
	}
	if c.MaxElapsed < 0 || math.IsNaN(c.MaxElapsed) {
		return fmt.Errorf("%w: maximum elapsed time must be non-negative, got %g", ErrConfiguration, c.MaxElapsed)
	}
	if math.IsNaN(c.Target) || math.IsInf(c.Target, 0) {
		return fmt.Errorf("%w: event target must be finite", ErrConfiguration)
	}
	return nil
}

func (c StoppingCondition) required() int {
	if c.Count < 1 {
		return 1
	}
	return c.Count
}

// offset returns g(t, x) - target.
func (c StoppingCondition) offset(t float64, x []float64) float64 {
	return c.Func(t, x) - c.Target
}

// crossed returns whether the offset changed sign between prev and next in a
// direction accepted by this condition. An offset of exactly zero counts as
// reached, but only when coming from a non-zero value.
func (c StoppingCondition) crossed(prev, next float64) bool {
	up := prev < 0 && next >= 0
	down := prev > 0 && next <= 0
	switch c.Direction {
	case Increasing:
		return up
	case Decreasing:
		return down
	default:
		return up || down
	}
}

// Radius returns the norm of the position part of a Cartesian state.
func Radius(_ float64, x []float64) float64 {
	return math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
}

// ZCoordinate returns the z position of a Cartesian state, whose increasing
// zero crossings are ascending node passages.
func ZCoordinate(_ float64, x []float64) float64 {
	return x[2]
}

// RadialVelocity returns r·v/|r| of a Cartesian state, whose decreasing zero
// crossings are apoapsis passages and increasing ones periapsis passages.
func RadialVelocity(t float64, x []float64) float64 {
	return (x[0]*x[3] + x[1]*x[4] + x[2]*x[5]) / Radius(t, x)
}

// ScalarFuncFromString returns one of the predefined stopping functions.
func ScalarFuncFromString(name string) (ScalarFunc, error) {
	switch strings.ToLower(name) {
	case "radius", "r":
		return Radius, nil
	case "z":
		return ZCoordinate, nil
	case "radial-velocity", "rdot", "vr":
		return RadialVelocity, nil
	default:
		return nil, fmt.Errorf("%w: unknown stopping function %q", ErrConfiguration, name)
	}
}
