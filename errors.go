package aerobasic

import "errors"

var (
	// ErrConfiguration is returned for invalid inputs or settings (non-positive μ or radius,
	// non-positive time of flight, bad tolerances, a missing time or event target, ...).
	ErrConfiguration = errors.New("invalid configuration")
	// ErrRootNotFound is returned when the multi-revolution Halley iteration
	// for the minimum time of flight does not converge.
	ErrRootNotFound = errors.New("root not found")
	// ErrNoSolution is returned when a Lambert problem has no solution, e.g. a
	// multi-revolution time of flight shorter than the minimum one.
	ErrNoSolution = errors.New("no solution")
	// ErrIntegrationDiverged is returned when a step or elapsed time budget is
	// exhausted, or when the state stops being finite.
	ErrIntegrationDiverged = errors.New("integration diverged")
)
