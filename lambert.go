package aerobasic

import (
	"fmt"
	"math"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	// collinearε is the bound on |r1 × r2| / (|r1| |r2|) below which the
	// transfer plane is taken from the reference angular momentum.
	collinearε = 1e-10
)

// PlanarSolution is one solution of a Lambert problem expressed in the transfer
// plane: radial and transverse velocity components at both ends.
type PlanarSolution struct {
	Vr1, Vt1 float64 // Departure radial and transverse velocities.
	Vr2, Vt2 float64 // Arrival radial and transverse velocities.
	X        float64 // Universal variable of this solution.
	Branch   Branch
}

// LambertSolution is one solution of a Lambert problem in the inertial frame.
type LambertSolution struct {
	Departure, Arrival Vector3 // Transfer orbit velocities at r1 and r2.
	DeltaV1            Vector3 // Departure - v1.
	DeltaV2            Vector3 // v2 - Arrival.
	PlanarSolution
}

// Δv returns the total impulse of this solution.
func (s LambertSolution) Δv() float64 {
	return s.DeltaV1.Norm() + s.DeltaV2.Norm()
}

// LambertResult groups all the solutions of a Lambert problem.
type LambertResult struct {
	Solutions []LambertSolution
	Normal    Vector3 // Unit normal of the transfer plane.
	Angle     float64 // Transfer angle in [0, 2π), excluding complete revolutions.
}

// Count returns the number of solutions.
func (r LambertResult) Count() int {
	return len(r.Solutions)
}

// Best returns the solution of least total Δv.
func (r LambertResult) Best() (LambertSolution, bool) {
	if len(r.Solutions) == 0 {
		return LambertSolution{}, false
	}
	best := r.Solutions[0]
	for _, s := range r.Solutions[1:] {
		if s.Δv() < best.Δv() {
			best = s
		}
	}
	return best, true
}

// LambertSolver solves Lambert's boundary value problem with Gooding's method.
// It holds no state besides its logger and is safe for concurrent use.
type LambertSolver struct {
	logger kitlog.Logger
}

// NewLambertSolver returns a new solver. A nil logger discards all messages.
func NewLambertSolver(logger kitlog.Logger) *LambertSolver {
	return &LambertSolver{logger: kitlog.With(orNop(logger), "subsys", "lambert")}
}

// Solve finds the velocities of the orbits going from r1 to r2 in tof with the
// provided number of complete revolutions. The reference velocities v1 and v2
// set the direction of motion (through r1 × v1) and are used to compute the Δv.
func (s *LambertSolver) Solve(gm float64, r1, v1, r2, v2 Vector3, tof float64, revs int) (LambertResult, error) {
	r1n, r2n := r1.Norm(), r2.Norm()
	if r1n == 0 || r2n == 0 {
		return LambertResult{}, fmt.Errorf("%w: position vectors must be non-zero (|r1|=%g, |r2|=%g)", ErrConfiguration, r1n, r2n)
	}
	r1u := r1.Scale(1 / r1n)
	r2u := r2.Scale(1 / r2n)
	h1, errH := r1.Cross(v1).Unit()
	normal := r1.Cross(r2)
	if normal.Norm()/(r1n*r2n) < collinearε {
		if errH != nil {
			return LambertResult{}, fmt.Errorf("%w: r1 and r2 are collinear and r1 × v1 is null", ErrConfiguration)
		}
		level.Debug(s.logger).Log("msg", "collinear positions, using r1 × v1 as plane normal", "r1", r1, "r2", r2)
		normal = h1
	} else {
		normal, _ = normal.Unit()
	}
	θ := math.Acos(math.Max(-1, math.Min(1, r1u.Dot(r2u))))
	if errH == nil && normal.Dot(h1) < 0 {
		θ = 2*math.Pi - θ
		normal = normal.Neg()
	}

	planar, err := s.SolveRaw(gm, r1n, r2n, θ, tof, revs)
	res := LambertResult{Normal: normal, Angle: θ}
	if err != nil {
		return res, err
	}
	t1 := normal.Cross(r1u)
	t2 := normal.Cross(r2u)
	res.Solutions = make([]LambertSolution, len(planar))
	for i, p := range planar {
		dep := r1u.Scale(p.Vr1).Add(t1.Scale(p.Vt1))
		arr := r2u.Scale(p.Vr2).Add(t2.Scale(p.Vt2))
		res.Solutions[i] = LambertSolution{
			Departure:      dep,
			Arrival:        arr,
			DeltaV1:        dep.Sub(v1),
			DeltaV2:        v2.Sub(arr),
			PlanarSolution: p,
		}
	}
	return res, nil
}

// SolveRaw solves the planar Lambert problem for the radii r1 and r2 separated
// by the transfer angle θ, in any consistent set of units. Complete turns in θ
// are added to revs. It returns up to two solutions, sorted by increasing x.
func (s *LambertSolver) SolveRaw(gm, r1, r2, θ, tof float64, revs int) ([]PlanarSolution, error) {
	switch {
	case gm <= 0 || math.IsNaN(gm):
		return nil, fmt.Errorf("%w: gravitational parameter must be positive, got %g", ErrConfiguration, gm)
	case r1 <= 0 || r2 <= 0:
		return nil, fmt.Errorf("%w: radii must be positive, got %g and %g", ErrConfiguration, r1, r2)
	case tof <= 0 || math.IsNaN(tof):
		return nil, fmt.Errorf("%w: time of flight must be positive, got %g", ErrConfiguration, tof)
	case revs < 0:
		return nil, fmt.Errorf("%w: revolution count must be non-negative, got %d", ErrConfiguration, revs)
	case θ < 0 || math.IsNaN(θ) || math.IsInf(θ, 0):
		return nil, fmt.Errorf("%w: transfer angle must be non-negative, got %g", ErrConfiguration, θ)
	}
	m := revs + int(θ/(2*math.Pi))
	θ = math.Mod(θ, 2*math.Pi)

	thr2 := θ / 2
	sthr2 := math.Sin(thr2)
	dr := r1 - r2
	r1r2 := r1 * r2
	r1r2th := 4 * r1r2 * sthr2 * sthr2
	csq := dr*dr + r1r2th
	c := math.Sqrt(csq)
	semi := (r1 + r2 + c) / 2
	gms := math.Sqrt(gm * semi / 2)
	qsqfm1 := c / semi
	q := math.Sqrt(r1r2) * math.Cos(thr2) / semi
	var ρ, σ float64 = 0, 1
	if c != 0 {
		ρ = dr / c
		σ = r1r2th / csq
	}
	t := 4 * gms * tof / (semi * semi)

	roots, err := universalRoots(m, q, qsqfm1, t, s.logger)
	if err != nil {
		return nil, err
	}
	if m == 0 && len(roots) != 1 {
		return nil, fmt.Errorf("%w: single revolution transfer returned %d roots", ErrNoSolution, len(roots))
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: time of flight %g is shorter than the minimum for %d revolution(s)", ErrNoSolution, tof, m)
	}
	sols := make([]PlanarSolution, len(roots))
	for i, root := range roots {
		qzminx, qzplx, zplqx := tofAux(q, qsqfm1, root.x)
		vt := gms * zplqx * math.Sqrt(σ)
		sols[i] = PlanarSolution{
			Vr1:    gms * (qzminx - qzplx*ρ) / r1,
			Vt1:    vt / r1,
			Vr2:    -gms * (qzminx + qzplx*ρ) / r2,
			Vt2:    vt / r2,
			X:      root.x,
			Branch: root.branch,
		}
	}
	level.Debug(s.logger).Log("msg", "solved", "revs", m, "θ", θ, "solutions", len(sols))
	return sols, nil
}

// MinimumTimeOfFlight returns the shortest time of flight of an m-revolution
// transfer (m > 0) between the radii r1 and r2 separated by θ.
func MinimumTimeOfFlight(gm, r1, r2, θ float64, m int) (float64, error) {
	if gm <= 0 || r1 <= 0 || r2 <= 0 || m <= 0 {
		return 0, fmt.Errorf("%w: need positive μ, radii and revolution count", ErrConfiguration)
	}
	θ = math.Mod(θ, 2*math.Pi)
	thr2 := θ / 2
	sthr2 := math.Sin(thr2)
	dr := r1 - r2
	c := math.Sqrt(dr*dr + 4*r1*r2*sthr2*sthr2)
	semi := (r1 + r2 + c) / 2
	qsqfm1 := c / semi
	q := math.Sqrt(r1*r2) * math.Cos(thr2) / semi
	_, tmin, err := minimumTimePoint(m, q, qsqfm1)
	if err != nil {
		return 0, err
	}
	return tmin.t * semi * semi / (4 * math.Sqrt(gm*semi/2)), nil
}
