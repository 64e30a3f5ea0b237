package aerobasic

import (
	"context"
	"fmt"
	"math"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

/* Handles the astrodynamical propagations. */

// Mission propagates an orbit about its origin with a gravity field.
type Mission struct {
	Orbit              *Orbit // Updated at the end of each propagation.
	Field              GravityField
	StartDT, CurrentDT time.Time
	integrator         *Integrator
	logger             kitlog.Logger
}

// NewMission returns a new Mission starting at epoch, with zonal harmonics up to jn.
func NewMission(o *Orbit, jn uint8, epoch time.Time, cfg IntegratorConfig, logger kitlog.Logger) (*Mission, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil orbit", ErrConfiguration)
	}
	field, err := NewGravityField(o.Origin, jn)
	if err != nil {
		return nil, err
	}
	logger = kitlog.With(orNop(logger), "subsys", "astro")
	in, err := NewIntegrator(cfg, logger)
	if err != nil {
		return nil, err
	}
	// Must switch to UTC as all dates are exported in UTC.
	epoch = epoch.UTC()
	return &Mission{Orbit: o, Field: field, StartDT: epoch, CurrentDT: epoch, integrator: in, logger: logger}, nil
}

// LogStatus logs the current date and orbit.
func (a *Mission) LogStatus() {
	level.Info(a.logger).Log("date", a.CurrentDT, "orbit", a.Orbit)
}

// elapsed returns the seconds since the start of the mission.
func (a *Mission) elapsed() float64 {
	return a.CurrentDT.Sub(a.StartDT).Seconds()
}

// PropagateFor propagates the orbit for d seconds, which may be negative.
func (a *Mission) PropagateFor(ctx context.Context, d float64, sink Sink) (Propagation, error) {
	t0 := a.elapsed()
	p, err := a.integrator.PropagateToTime(ctx, a.Field.Func, t0, a.Orbit.State(), t0+d, sink)
	if err != nil {
		return p, err
	}
	return p, a.update(p)
}

// PropagateUntil propagates until the given date is reached.
func (a *Mission) PropagateUntil(ctx context.Context, dt time.Time, sink Sink) (Propagation, error) {
	return a.PropagateFor(ctx, dt.Sub(a.CurrentDT).Seconds(), sink)
}

// PropagateToEvent propagates until the stopping condition is met.
func (a *Mission) PropagateToEvent(ctx context.Context, cond StoppingCondition, sink Sink) (Propagation, error) {
	p, err := a.integrator.PropagateToEvent(ctx, a.Field.Func, a.elapsed(), a.Orbit.State(), cond, sink)
	if err != nil {
		return p, err
	}
	return p, a.update(p)
}

func (a *Mission) update(p Propagation) error {
	vInit := a.Orbit.VNorm()
	duration := time.Duration((p.T - a.elapsed()) * float64(time.Second))
	o, err := NewOrbitFromRV(Vector3{p.X[0], p.X[1], p.X[2]}, Vector3{p.X[3], p.X[4], p.X[5]}, a.Orbit.Origin)
	if err != nil {
		return err
	}
	a.Orbit = o
	a.CurrentDT = a.CurrentDT.Add(duration)
	durStr := duration.String()
	if math.Abs(duration.Hours()) > 24 {
		durStr += fmt.Sprintf(" (~%.3fd)", duration.Hours()/24)
	}
	level.Info(a.logger).Log("status", "finished", "duration", durStr, "steps", p.Steps, "Δv(km/s)", math.Abs(a.Orbit.VNorm()-vInit))
	a.LogStatus()
	if r := a.Orbit.RNorm(); r < a.Orbit.Origin.Radius {
		level.Warn(a.logger).Log("collided", a.Orbit.Origin.Name, "dt", a.CurrentDT, "r", r, "radius", a.Orbit.Origin.Radius)
	}
	return nil
}
