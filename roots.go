package aerobasic

import (
	"fmt"
	"math"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Constants of the starter formulas for the universal variable x.
const (
	xlambTol = 3e-7
	xlambC0  = 1.7
	xlambC1  = 0.5
	xlambC2  = 0.03
	xlambC3  = 0.15
	xlambC41 = 1.0
	xlambC42 = 0.24
	// Number of Halley corrections applied to every starter.
	halleyIterations = 3
	// Maximum number of iterations for the minimum time of flight search.
	xmIterations = 12
)

// d8rt returns the eighth root of x.
func d8rt(x float64) float64 {
	return math.Sqrt(math.Sqrt(math.Sqrt(x)))
}

// Branch tags the solution branch of a universal variable root.
type Branch uint8

const (
	// BranchSingle is the unique solution of a transfer with less than one revolution,
	// or the minimum time of flight solution of a multi-revolution one.
	BranchSingle Branch = iota + 1
	// BranchLow is the multi-revolution solution with x below the minimum time of flight point.
	BranchLow
	// BranchHigh is the multi-revolution solution with x above the minimum time of flight point.
	BranchHigh
)

func (b Branch) String() string {
	switch b {
	case BranchSingle:
		return "single"
	case BranchLow:
		return "low-x"
	case BranchHigh:
		return "high-x"
	default:
		return "unknown"
	}
}

type universalRoot struct {
	x      float64
	branch Branch
}

// universalRoots returns the values of x in (-1, 1) such that T(x) = tin for m
// complete revolutions. The result has one element for m = 0, and zero to two
// elements for m > 0, sorted by increasing x.
func universalRoots(m int, q, qsqfm1, tin float64, logger kitlog.Logger) ([]universalRoot, error) {
	logger = orNop(logger)
	thr2 := thrFraction(q, qsqfm1)
	if m == 0 {
		t0 := timeOfFlight(0, q, qsqfm1, 0, 0).t
		return []universalRoot{{halley(0, q, qsqfm1, tin, lowStarter(0, thr2, t0, tin, 0)), BranchSingle}}, nil
	}

	xm, tmin, err := minimumTimePoint(m, q, qsqfm1)
	if err != nil {
		return nil, err
	}
	tdiffm := tin - tmin.t
	if tdiffm < 0 {
		level.Debug(logger).Log("msg", "time of flight below minimum", "revs", m, "t", tin, "tmin", tmin.t)
		return nil, nil
	}
	if tdiffm == 0 {
		return []universalRoot{{xm, BranchSingle}}, nil
	}
	d2t := tmin.d2t
	if d2t == 0 {
		d2t = 6 * float64(m) * math.Pi
	}

	roots := make([]universalRoot, 0, 2)
	// Lower branch, x < xm.
	t0 := timeOfFlight(m, q, qsqfm1, 0, 0).t
	tdiff := tin - t0
	var xlo float64
	if tdiff <= 0 {
		d2t2 := d2t / 2
		tdiff0 := t0 - tmin.t
		xlo = xm - math.Sqrt(tdiffm/(d2t2-tdiffm*(d2t2/tdiff0-1/xm/xm)))
	} else {
		xlo = lowStarter(m, thr2, t0, tin, xlambC42)
	}
	if xlo > -1 {
		roots = append(roots, universalRoot{halley(m, q, qsqfm1, tin, xlo), BranchLow})
	} else {
		level.Debug(logger).Log("msg", "lower branch starter out of range", "revs", m, "x", xlo)
	}

	// Upper branch, x > xm.
	// TODO: this pruning has no independent reference values yet; add a
	// regression case once a trusted solution near x = 1 is available.
	xhi := math.Sqrt(tdiffm / (d2t/2 + tdiffm/(1-xm)/(1-xm)))
	w := xm + xhi
	w = w*4/(4+tdiffm) + (1-w)*(1-w)
	xhi = xhi*(1-(1+float64(m)+xlambC41*(thr2-0.5))/(1+xlambC3*float64(m))*xhi*(xlambC1*w+xlambC2*xhi*math.Sqrt(w))) + xm
	if xhi < 1 {
		roots = append(roots, universalRoot{halley(m, q, qsqfm1, tin, xhi), BranchHigh})
	} else {
		level.Debug(logger).Log("msg", "upper branch starter out of range", "revs", m, "x", xhi)
	}
	return roots, nil
}

// lowStarter returns the bilinear starter for the branch which contains x = 0,
// used for single revolution transfers and for the lower multi-revolution branch
// when tin exceeds T(0). c4 is the branch specific correction coefficient.
func lowStarter(m int, thr2, t0, tin, c4 float64) float64 {
	tdiff := tin - t0
	if tdiff <= 0 {
		// Only reachable for m = 0: the multi-revolution lower branch has its own starter.
		return t0 * tdiff / (-4 * tin)
	}
	x := -tdiff / (tdiff + 4)
	w := x + xlambC0*math.Sqrt(2*(1-thr2))
	if w < 0 {
		x -= math.Sqrt(d8rt(-w)) * (x + math.Sqrt(tdiff/(tdiff+1.5*t0)))
	}
	w = 4 / (4 + tdiff)
	if m == 0 {
		return x * (1 + x*(xlambC1*w-xlambC2*x*math.Sqrt(w)))
	}
	return x * (1 + (1+float64(m)+c4*(thr2-0.5))/(1+xlambC3*float64(m))*x*(xlambC1*w-xlambC2*x*math.Sqrt(w)))
}

// halley applies a fixed number of Halley corrections to x so that T(x) = tin.
func halley(m int, q, qsqfm1, tin, x float64) float64 {
	for i := 0; i < halleyIterations; i++ {
		r := timeOfFlight(m, q, qsqfm1, x, 2)
		t := tin - r.t
		if r.dt != 0 {
			x += t * r.dt / (r.dt*r.dt + t*r.d2t/2)
		}
	}
	return x
}

// thrFraction returns the normalized transfer angle used by the starter formulas.
func thrFraction(q, qsqfm1 float64) float64 {
	return math.Atan2(qsqfm1, 2*q) / math.Pi
}

// minimumTimePoint locates xm, the root of dT/dx for m > 0 revolutions, with
// Halley iterations seeded by a closed form approximation.
func minimumTimePoint(m int, q, qsqfm1 float64) (float64, tofDerivs, error) {
	thr2 := thrFraction(q, qsqfm1)
	xm := 1 / (1.5 * (float64(m) + 0.5) * math.Pi)
	if thr2 < 0.5 {
		xm *= d8rt(2 * thr2)
	} else if thr2 > 0.5 {
		xm *= 2 - d8rt(2-2*thr2)
	}
	for i := 0; i < xmIterations; i++ {
		tmin := timeOfFlight(m, q, qsqfm1, xm, 3)
		if tmin.d2t == 0 {
			return xm, tmin, nil
		}
		xmold := xm
		xm -= tmin.dt * tmin.d2t / (tmin.d2t*tmin.d2t - tmin.dt*tmin.d3t/2)
		if math.Abs(xmold/xm-1) <= xlambTol {
			return xm, tmin, nil
		}
	}
	return 0, tofDerivs{}, fmt.Errorf("%w: minimum time of flight search for %d revolution(s) did not converge (x=%g)", ErrRootNotFound, m, xm)
}
