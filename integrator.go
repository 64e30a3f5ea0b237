package aerobasic

import (
	"context"
	"fmt"
	"math"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"
)

const (
	// timeε is the slack on the remaining duration before the last step of a time propagation.
	timeε = 1e-5
	// rkStages is the number of function evaluations per RKF7(8) step.
	rkStages = 13
)

// RKF7(8) coefficients (Fehlberg, NASA TR R-287).
var (
	rkC = [rkStages]float64{0, 2. / 27, 1. / 9, 1. / 6, 5. / 12, 1. / 2, 5. / 6, 1. / 6, 2. / 3, 1. / 3, 1, 0, 1}
	rkA = [rkStages][]float64{
		{},
		{2. / 27},
		{1. / 36, 1. / 12},
		{1. / 24, 0, 1. / 8},
		{5. / 12, 0, -25. / 16, 25. / 16},
		{1. / 20, 0, 0, 1. / 4, 1. / 5},
		{-25. / 108, 0, 0, 125. / 108, -65. / 27, 125. / 54},
		{31. / 300, 0, 0, 0, 61. / 225, -2. / 9, 13. / 900},
		{2, 0, 0, -53. / 6, 704. / 45, -107. / 9, 67. / 90, 3},
		{-91. / 108, 0, 0, 23. / 108, -976. / 135, 311. / 54, -19. / 60, 17. / 6, -1. / 12},
		{2383. / 4100, 0, 0, -341. / 164, 4496. / 1025, -301. / 82, 2133. / 4100, 45. / 82, 45. / 164, 18. / 41},
		{3. / 205, 0, 0, 0, 0, -6. / 41, -3. / 205, -3. / 41, 3. / 41, 6. / 41, 0},
		{-1777. / 4100, 0, 0, -341. / 164, 4496. / 1025, -289. / 82, 2193. / 4100, 51. / 82, 33. / 164, 12. / 41, 0, 1},
	}
	// Eighth order weights.
	rkB = [rkStages]float64{0, 0, 0, 0, 0, 34. / 105, 9. / 35, 9. / 35, 9. / 280, 9. / 280, 0, 41. / 840, 41. / 840}
	// The seventh and eighth order solutions differ by rkE*h*(k0 + k10 - k11 - k12).
	rkE = 41. / 840
)

// RightHandSide returns the time derivative of the state x at time t.
type RightHandSide func(t float64, x []float64) []float64

// Sink receives the sampled states of a propagation. The slice is only valid
// for the duration of the call. Returning an error aborts the propagation.
type Sink func(t float64, x []float64) error

// IntegratorConfig holds the settings of an Integrator.
type IntegratorConfig struct {
	Tolerance      float64 // Relative local error tolerance.
	InitialStep    float64 // Initial step size, always positive.
	MaxSteps       int     // Step budget of a single propagation.
	MaxDuration    float64 // Budget on the propagated duration.
	SampleInterval float64 // Minimum time between two sink calls, 0 samples every step.
	ShrinkFactor   float64 // Step reduction applied while refining an event, in (0, 1).
	FixedStep      bool    // Disables the step size adaptation.
}

// DefaultIntegratorConfig returns the default settings.
func DefaultIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		Tolerance:    1e-13,
		InitialStep:  60,
		MaxSteps:     10000000,
		MaxDuration:  8.64e7,
		ShrinkFactor: 0.5,
	}
}

// Validate returns an ErrConfiguration error if any setting is out of range.
func (c IntegratorConfig) Validate() error {
	switch {
	case !(c.Tolerance > 0):
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrConfiguration, c.Tolerance)
	case !(c.InitialStep > 0) || math.IsInf(c.InitialStep, 0):
		return fmt.Errorf("%w: initial step must be positive, got %g", ErrConfiguration, c.InitialStep)
	case c.MaxSteps <= 0:
		return fmt.Errorf("%w: maximum step count must be positive, got %d", ErrConfiguration, c.MaxSteps)
	case !(c.MaxDuration > 0):
		return fmt.Errorf("%w: maximum duration must be positive, got %g", ErrConfiguration, c.MaxDuration)
	case c.SampleInterval < 0 || math.IsNaN(c.SampleInterval):
		return fmt.Errorf("%w: sample interval must be non-negative, got %g", ErrConfiguration, c.SampleInterval)
	case !(c.ShrinkFactor > 0 && c.ShrinkFactor < 1):
		return fmt.Errorf("%w: shrink factor must be in (0, 1), got %g", ErrConfiguration, c.ShrinkFactor)
	}
	return nil
}

// StepResult is the outcome of a single RKF7(8) step.
type StepResult struct {
	T     float64   // Time after the step.
	H     float64   // Suggested size of the next step.
	X     []float64 // State after the step (eighth order solution).
	Error float64   // Local error estimate, relative to |X|.
}

// Propagation is the outcome of a propagation.
type Propagation struct {
	T         float64
	X         []float64
	Steps     int
	Crossings int // Number of accepted crossings, only set by PropagateToEvent.
}

// Integrator propagates states with an embedded RKF7(8) scheme. It holds no
// per propagation state and is safe for concurrent use.
type Integrator struct {
	cfg    IntegratorConfig
	logger kitlog.Logger
}

// NewIntegrator returns a new Integrator after validating its configuration.
func NewIntegrator(cfg IntegratorConfig, logger kitlog.Logger) (*Integrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Integrator{cfg: cfg, logger: kitlog.With(orNop(logger), "subsys", "integrator")}, nil
}

// Config returns the integrator settings.
func (in *Integrator) Config() IntegratorConfig {
	return in.cfg
}

// Step performs a single RKF7(8) step of size h from (t, x).
func (in *Integrator) Step(f RightHandSide, t, h float64, x []float64) (StepResult, error) {
	if len(x) == 0 {
		return StepResult{}, fmt.Errorf("%w: empty state", ErrConfiguration)
	}
	rk := newRKF78(f, len(x))
	xNew := make([]float64, len(x))
	errEst, err := rk.step(t, h, x, xNew)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{T: t + h, H: in.adapt(h, errEst), X: xNew, Error: errEst}, nil
}

// adapt returns the size of the next step given the error of the last one.
func (in *Integrator) adapt(h, errEst float64) float64 {
	if in.cfg.FixedStep {
		return h
	}
	if errEst > in.cfg.Tolerance {
		return h / 2
	}
	if errEst < 0.01*in.cfg.Tolerance {
		return h * 2
	}
	return h
}

// PropagateToTime integrates f from (t0, x0) up to tEnd, which may be before t0.
// The sink, if any, receives the initial state, the sampled intermediate
// states and the final state.
func (in *Integrator) PropagateToTime(ctx context.Context, f RightHandSide, t0 float64, x0 []float64, tEnd float64, sink Sink) (Propagation, error) {
	if err := checkInitial(f, t0, x0); err != nil {
		return Propagation{}, err
	}
	if math.IsNaN(tEnd) || math.IsInf(tEnd, 0) {
		return Propagation{}, fmt.Errorf("%w: end time must be finite", ErrConfiguration)
	}
	if d := math.Abs(tEnd - t0); d > in.cfg.MaxDuration {
		return Propagation{}, fmt.Errorf("%w: duration %g exceeds the maximum of %g", ErrConfiguration, d, in.cfg.MaxDuration)
	}
	p := in.newRun(f, t0, x0, sink)
	if err := p.emit(true); err != nil {
		return Propagation{}, err
	}
	h := math.Copysign(in.cfg.InitialStep, tEnd-t0)
	level.Debug(in.logger).Log("msg", "propagating", "t0", t0, "tEnd", tEnd, "h", h)
	for math.Abs(tEnd-p.t) > math.Abs(h)+timeε {
		if err := p.budget(ctx); err != nil {
			return p.result(), err
		}
		next, err := p.advance(h)
		if err != nil {
			return p.result(), err
		}
		p.accept()
		h = next
		if err := p.emit(false); err != nil {
			return p.result(), err
		}
	}
	if rem := tEnd - p.t; rem != 0 || p.lastSample != p.t {
		if rem != 0 {
			if err := p.budget(ctx); err != nil {
				return p.result(), err
			}
			if _, err := p.advance(rem); err != nil {
				return p.result(), err
			}
			p.accept()
			p.t = tEnd
		}
		if err := p.emit(true); err != nil {
			return p.result(), err
		}
	}
	level.Debug(in.logger).Log("msg", "propagation done", "t", p.t, "steps", p.steps)
	return p.result(), nil
}

// PropagateToEvent integrates f forward from (t0, x0) until the stopping
// condition has been met the requested number of times. A sign change of the
// condition offset is refined by retrying the step with a shrunk step size
// until the step size is below the condition tolerance.
func (in *Integrator) PropagateToEvent(ctx context.Context, f RightHandSide, t0 float64, x0 []float64, cond StoppingCondition, sink Sink) (Propagation, error) {
	if err := checkInitial(f, t0, x0); err != nil {
		return Propagation{}, err
	}
	if err := cond.validate(); err != nil {
		return Propagation{}, err
	}
	maxElapsed := cond.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = in.cfg.MaxDuration
	}
	required := cond.required()
	p := in.newRun(f, t0, x0, sink)
	if err := p.emit(true); err != nil {
		return Propagation{}, err
	}
	prev := cond.offset(p.t, p.x)
	h := in.cfg.InitialStep
	ph := phaseStepping
	for {
		if err := p.budget(ctx); err != nil {
			return p.result(), err
		}
		if p.t-t0 > maxElapsed {
			level.Warn(in.logger).Log("msg", "event not found", "elapsed", p.t-t0, "max", maxElapsed, "crossings", p.crossings)
			return p.result(), fmt.Errorf("%w: no crossing %d of %s after %g", ErrIntegrationDiverged, p.crossings+1, cond.Direction, p.t-t0)
		}
		next, err := p.advance(h)
		if err != nil {
			return p.result(), err
		}
		cur := cond.offset(p.tNew, p.xNew)
		if cond.crossed(prev, cur) {
			if math.Abs(h) >= cond.Tolerance {
				// Discard the step and retry closer.
				if ph != phaseEventSearch {
					level.Debug(in.logger).Log("msg", "crossing detected", "t", p.t, "phase", phaseEventSearch)
				}
				ph = phaseEventSearch
				h *= in.cfg.ShrinkFactor
				continue
			}
			p.accept()
			p.crossings++
			level.Debug(in.logger).Log("msg", "crossing accepted", "t", p.t, "offset", cur, "count", p.crossings)
			if p.crossings >= required {
				if err := p.emit(true); err != nil {
					return p.result(), err
				}
				level.Debug(in.logger).Log("msg", "event propagation done", "t", p.t, "steps", p.steps, "phase", phaseTerminated)
				return p.result(), nil
			}
			if err := p.emit(false); err != nil {
				return p.result(), err
			}
			prev = cur
			h = in.cfg.InitialStep
			ph = phaseStepping
			continue
		}
		p.accept()
		prev = cur
		if ph == phaseEventSearch {
			// Keep approaching the crossing without growing the step back.
			next = math.Min(next, h)
		}
		h = next
		if err := p.emit(false); err != nil {
			return p.result(), err
		}
	}
}

func checkInitial(f RightHandSide, t0 float64, x0 []float64) error {
	if f == nil {
		return fmt.Errorf("%w: nil right hand side", ErrConfiguration)
	}
	if len(x0) == 0 {
		return fmt.Errorf("%w: empty state", ErrConfiguration)
	}
	if math.IsNaN(t0) || math.IsInf(t0, 0) {
		return fmt.Errorf("%w: initial time must be finite", ErrConfiguration)
	}
	return nil
}

type phase uint8

const (
	phaseStepping phase = iota
	phaseEventSearch
	phaseTerminated
)

func (p phase) String() string {
	switch p {
	case phaseEventSearch:
		return "event-search"
	case phaseTerminated:
		return "terminated"
	default:
		return "stepping"
	}
}

// run is the mutable state of a single propagation.
type run struct {
	in         *Integrator
	rk         *rkf78
	sink       Sink
	t, tNew    float64
	x, xNew    []float64
	lastSample float64
	steps      int
	crossings  int
}

func (in *Integrator) newRun(f RightHandSide, t0 float64, x0 []float64, sink Sink) *run {
	x := make([]float64, len(x0))
	copy(x, x0)
	return &run{
		in:         in,
		rk:         newRKF78(f, len(x0)),
		sink:       sink,
		t:          t0,
		x:          x,
		xNew:       make([]float64, len(x0)),
		lastSample: t0,
	}
}

// budget checks for cancellation and the step budget.
func (p *run) budget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.steps >= p.in.cfg.MaxSteps {
		level.Warn(p.in.logger).Log("msg", "step budget exhausted", "t", p.t, "steps", p.steps)
		return fmt.Errorf("%w: reached %d steps at t=%g", ErrIntegrationDiverged, p.steps, p.t)
	}
	return nil
}

// advance computes a step of size h into (tNew, xNew) and returns the size of
// the next step. The current state is left untouched until accept.
func (p *run) advance(h float64) (float64, error) {
	p.steps++
	errEst, err := p.rk.step(p.t, h, p.x, p.xNew)
	if err != nil {
		return 0, err
	}
	p.tNew = p.t + h
	return p.in.adapt(h, errEst), nil
}

func (p *run) accept() {
	p.t = p.tNew
	p.x, p.xNew = p.xNew, p.x
}

// emit sends the current state to the sink if it is due, or if force is set.
func (p *run) emit(force bool) error {
	if p.sink == nil {
		return nil
	}
	if !force && p.in.cfg.SampleInterval > 0 && math.Abs(p.t-p.lastSample) < p.in.cfg.SampleInterval {
		return nil
	}
	p.lastSample = p.t
	return p.sink(p.t, p.x)
}

func (p *run) result() Propagation {
	x := make([]float64, len(p.x))
	copy(x, p.x)
	return Propagation{T: p.t, X: x, Steps: p.steps, Crossings: p.crossings}
}

// rkf78 holds the stage buffers of the RKF7(8) scheme.
type rkf78 struct {
	f   RightHandSide
	k   [rkStages][]float64
	tmp []float64
	est []float64
}

func newRKF78(f RightHandSide, n int) *rkf78 {
	rk := &rkf78{f: f, tmp: make([]float64, n), est: make([]float64, n)}
	for i := range rk.k {
		rk.k[i] = make([]float64, n)
	}
	return rk
}

// step writes the eighth order solution of a step of size h from (t, x) into
// xNew and returns the local error estimate normalized by |xNew|.
func (rk *rkf78) step(t, h float64, x, xNew []float64) (float64, error) {
	for i := 0; i < rkStages; i++ {
		copy(rk.tmp, x)
		for j, a := range rkA[i] {
			if a != 0 {
				floats.AddScaled(rk.tmp, h*a, rk.k[j])
			}
		}
		k := rk.f(t+rkC[i]*h, rk.tmp)
		if len(k) != len(x) {
			return 0, fmt.Errorf("%w: right hand side returned %d items for a state of %d", ErrConfiguration, len(k), len(x))
		}
		// f may reuse its output slice between calls.
		copy(rk.k[i], k)
	}
	copy(xNew, x)
	for i, b := range rkB {
		if b != 0 {
			floats.AddScaled(xNew, h*b, rk.k[i])
		}
	}
	for _, v := range xNew {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non finite state at t=%g", ErrIntegrationDiverged, t+h)
		}
	}
	floats.AddScaledTo(rk.est, rk.k[0], 1, rk.k[10])
	floats.AddScaled(rk.est, -1, rk.k[11])
	floats.AddScaled(rk.est, -1, rk.k[12])
	errEst := math.Abs(rkE*h) * floats.Norm(rk.est, 2)
	if n := floats.Norm(xNew, 2); n > 0 {
		errEst /= n
	}
	return errEst, nil
}
