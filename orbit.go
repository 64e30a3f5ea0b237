package aerobasic

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	eccentricityε = 5e-5                         // 0.00005
	angleε        = (5e-3 / 360) * (2 * math.Pi) // 0.005 degrees
	distanceε     = 2e1                          // 20 km
	keplerε       = 1e-14
	keplerMaxIter = 50
)

// Orbit defines an orbit via its orbital elements.
type Orbit struct {
	a, e, i, Ω, ω, ν float64
	Origin           CelestialObject // Orbit origin
}

// Energyξ returns the specific mechanical energy ξ.
func (o Orbit) Energyξ() float64 {
	return -o.Origin.μ / (2 * o.a)
}

// Tildeω returns the longitude of periapsis.
func (o Orbit) Tildeω() float64 {
	return math.Mod(o.ω+o.Ω, 2*math.Pi)
}

// TrueLongλ returns the *approximate* true longitude (cf. Vallado page 103).
// NOTE: One should only need this for equatorial orbits.
func (o Orbit) TrueLongλ() float64 {
	return math.Mod(o.ω+o.Ω+o.ν, 2*math.Pi)
}

// ArgLatitudeU returns the argument of latitude.
func (o Orbit) ArgLatitudeU() float64 {
	return math.Mod(o.ν+o.ω, 2*math.Pi)
}

// H returns the orbital angular momentum vector.
func (o Orbit) H() Vector3 {
	R, V := o.RV()
	return R.Cross(V)
}

// SemiParameter returns the semi parameter p.
func (o Orbit) SemiParameter() float64 {
	return o.a * (1 - o.e*o.e)
}

// Apoapsis returns the apoapsis radius.
func (o Orbit) Apoapsis() float64 {
	return o.a * (1 + o.e)
}

// Periapsis returns the periapsis radius.
func (o Orbit) Periapsis() float64 {
	return o.a * (1 - o.e)
}

// MeanMotion returns the mean motion n in radians per second.
func (o Orbit) MeanMotion() float64 {
	return math.Sqrt(o.Origin.μ / math.Pow(math.Abs(o.a), 3))
}

// PeriodSeconds returns the period of this orbit in seconds.
func (o Orbit) PeriodSeconds() float64 {
	return 2 * math.Pi / o.MeanMotion()
}

// Period returns the period of this orbit.
func (o Orbit) Period() time.Duration {
	return time.Duration(o.PeriodSeconds() * float64(time.Second))
}

// RV returns the radius and velocity vectors.
func (o Orbit) RV() (R, V Vector3) {
	p := o.SemiParameter()
	sinν, cosν := math.Sincos(o.ν)
	R = Vector3{p * cosν / (1 + o.e*cosν), p * sinν / (1 + o.e*cosν), 0}
	vp := math.Sqrt(o.Origin.μ / p)
	V = Vector3{-vp * sinν, vp * (o.e + cosν), 0}
	return PQW2ECI(o.i, o.ω, o.Ω, R), PQW2ECI(o.i, o.ω, o.Ω, V)
}

// R returns the radius vector.
func (o Orbit) R() Vector3 {
	R, _ := o.RV()
	return R
}

// V returns the velocity vector.
func (o Orbit) V() Vector3 {
	_, V := o.RV()
	return V
}

// State returns the Cartesian state as [x, y, z, vx, vy, vz].
func (o Orbit) State() []float64 {
	R, V := o.RV()
	return []float64{R.X, R.Y, R.Z, V.X, V.Y, V.Z}
}

// RNorm returns the norm of the radius vector, but without computing the radius vector.
func (o Orbit) RNorm() float64 {
	return o.SemiParameter() / (1 + o.e*math.Cos(o.ν))
}

// VNorm returns the norm of the velocity vector from the vis-viva equation.
func (o Orbit) VNorm() float64 {
	return math.Sqrt(2 * (o.Origin.μ/o.RNorm() + o.Energyξ()))
}

// Elements returns the classical orbital elements, angles in radians.
func (o Orbit) Elements() (a, e, i, Ω, ω, ν float64) {
	return o.a, o.e, o.i, o.Ω, o.ω, o.ν
}

// String implements the stringer interface (hence the value receiver)
func (o Orbit) String() string {
	if o.e < eccentricityε {
		// Circular orbit
		if o.i > angleε {
			return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f u=%.3f", o.a, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(o.ArgLatitudeU()))
		}
		// Equatorial
		return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f λ=%.3f", o.a, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(o.TrueLongλ()))
	}
	return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f ω=%.3f ν=%.3f", o.a, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(o.ω), Rad2deg(o.ν))
}

// Equals returns whether two orbits are identical with free true anomaly.
// Use StrictlyEquals to also check true anomaly.
func (o Orbit) Equals(o1 Orbit) (bool, error) {
	if !o.Origin.Equals(o1.Origin) {
		return false, errors.New("different origin")
	}
	if !scalar.EqualWithinAbs(o.a, o1.a, distanceε) {
		return false, errors.New("semi major axis invalid")
	}
	if !scalar.EqualWithinAbs(o.e, o1.e, eccentricityε) {
		return false, errors.New("eccentricity invalid")
	}
	if !anglesEqual(o.i, o1.i) {
		return false, errors.New("inclination invalid")
	}
	if o.i > angleε && !anglesEqual(o.Ω, o1.Ω) {
		return false, errors.New("RAAN invalid")
	}
	if o.e < eccentricityε {
		if o.i > angleε {
			if !anglesEqual(o.ArgLatitudeU(), o1.ArgLatitudeU()) {
				return false, errors.New("argument of latitude invalid")
			}
		} else if !anglesEqual(o.TrueLongλ(), o1.TrueLongλ()) {
			return false, errors.New("true longitude invalid")
		}
	} else if o.i > angleε && !anglesEqual(o.ω, o1.ω) {
		return false, errors.New("argument of perigee invalid")
	} else if o.i <= angleε && !anglesEqual(o.Tildeω(), o1.Tildeω()) {
		return false, errors.New("longitude of periapsis invalid")
	}
	return true, nil
}

// StrictlyEquals returns whether two orbits are identical.
func (o Orbit) StrictlyEquals(o1 Orbit) (bool, error) {
	// Only check for non circular orbits
	if o.e > eccentricityε && !anglesEqual(o.ν, o1.ν) {
		return false, errors.New("true anomaly invalid")
	}
	return o.Equals(o1)
}

// anglesEqual compares two angles modulo 2π.
func anglesEqual(a, b float64) bool {
	return math.Abs(RoundNPiPi(a-b)) < angleε
}

// NewOrbitFromOE creates an orbit from the orbital elements.
// WARNING: Angles must be in degrees not radian.
func NewOrbitFromOE(a, e, i, Ω, ω, ν float64, c CelestialObject) (*Orbit, error) {
	if !(c.μ > 0) {
		return nil, fmt.Errorf("%w: origin %s has no gravitational parameter", ErrConfiguration, c.Name)
	}
	if e < 0 || (e < 1 && a <= 0) || (e > 1 && a >= 0) || e == 1 {
		return nil, fmt.Errorf("%w: inconsistent a=%g and e=%g", ErrConfiguration, a, e)
	}
	return &Orbit{a, e, Deg2rad(i), Deg2rad(Ω), Deg2rad(ω), Deg2rad(ν), c}, nil
}

// NewOrbitFromRV returns orbital elements from the R and V vectors.
// For circular orbits ω is zero and ν is measured from the ascending node (or
// from the X axis if also equatorial); for equatorial ones Ω is zero.
func NewOrbitFromRV(R, V Vector3, c CelestialObject) (*Orbit, error) {
	// From Vallado's RV2COE, page 113
	r := R.Norm()
	v := V.Norm()
	hVec := R.Cross(V)
	if r == 0 || hVec.Norm() == 0 || !(c.μ > 0) {
		return nil, fmt.Errorf("%w: cannot compute elements of r=%s v=%s", ErrConfiguration, R, V)
	}
	n := Vector3{0, 0, 1}.Cross(hVec)
	ξ := (v*v)/2 - c.μ/r
	a := -c.μ / (2 * ξ)
	eVec := R.Scale(v*v - c.μ/r).Sub(V.Scale(R.Dot(V))).Scale(1 / c.μ)
	e := eVec.Norm()
	i := math.Acos(hVec.Z / hVec.Norm())
	equatorial := n.Norm() < 1e-12*hVec.Norm()
	circular := e < 1e-12

	var Ω, ω, ν float64
	if !equatorial {
		Ω = Round02Pi(math.Atan2(n.Y, n.X))
	}
	// Reference direction of the in-plane angles: the node, or the X axis.
	ref := Vector3{1, 0, 0}
	if !equatorial {
		ref, _ = n.Unit()
	}
	hu, _ := hVec.Unit()
	inPlaneAngle := func(w Vector3) float64 {
		return Round02Pi(math.Atan2(hu.Dot(ref.Cross(w)), ref.Dot(w)))
	}
	if !circular {
		ω = inPlaneAngle(eVec)
		eu, _ := eVec.Unit()
		ν = Round02Pi(math.Atan2(hu.Dot(eu.Cross(R)), eu.Dot(R)))
	} else {
		ν = inPlaneAngle(R)
	}
	return &Orbit{a, e, i, Ω, ω, ν, c}, nil
}

// PropagateKepler returns the orbit after Δt seconds of unperturbed motion.
// Only elliptical orbits are supported.
func (o Orbit) PropagateKepler(Δt float64) (*Orbit, error) {
	if o.e >= 1 {
		return nil, fmt.Errorf("%w: Kepler propagation requires an elliptical orbit, e=%g", ErrConfiguration, o.e)
	}
	M := meanAnomaly(o.e, o.ν) + o.MeanMotion()*Δt
	E, err := solveKepler(o.e, M)
	if err != nil {
		return nil, err
	}
	o1 := o
	o1.ν = trueAnomalyFromE(o.e, E)
	return &o1, nil
}

// TimeOfFlight returns the time to go from true anomaly ν0 to ν1 (in radians)
// on this orbit, always positive and less than one period.
func (o Orbit) TimeOfFlight(ν0, ν1 float64) (float64, error) {
	if o.e >= 1 {
		return 0, fmt.Errorf("%w: time of flight requires an elliptical orbit, e=%g", ErrConfiguration, o.e)
	}
	ΔM := Round02Pi(meanAnomaly(o.e, ν1) - meanAnomaly(o.e, ν0))
	return ΔM / o.MeanMotion(), nil
}

// meanAnomaly converts a true anomaly to a mean anomaly (elliptical orbits).
func meanAnomaly(e, ν float64) float64 {
	sinν, cosν := math.Sincos(ν)
	E := math.Atan2(math.Sqrt(1-e*e)*sinν, e+cosν)
	return E - e*math.Sin(E)
}

func trueAnomalyFromE(e, E float64) float64 {
	sinE, cosE := math.Sincos(E)
	return Round02Pi(math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e))
}

// solveKepler solves E - e sin E = M with Newton iterations.
func solveKepler(e, M float64) (float64, error) {
	M = RoundNPiPi(M)
	E := M
	if e > 0.8 {
		E = math.Pi * sign(M)
	}
	for iter := 0; iter < keplerMaxIter; iter++ {
		δ := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= δ
		if math.Abs(δ) < keplerε {
			return E, nil
		}
	}
	return 0, fmt.Errorf("%w: Kepler's equation for e=%g M=%g", ErrRootNotFound, e, M)
}

// Helper functions go here.

// Radii2ae returns the semi major axis and the eccentricty from the radii.
func Radii2ae(rA, rP float64) (a, e float64, err error) {
	if rA < rP {
		return 0, 0, fmt.Errorf("%w: periapsis cannot be greater than apoapsis", ErrConfiguration)
	}
	a = (rP + rA) / 2
	e = (rA - rP) / (rA + rP)
	return
}

// PeriodToSemiMajorAxis returns the semi major axis of an orbit of period T seconds.
func PeriodToSemiMajorAxis(μ, T float64) float64 {
	return math.Cbrt(μ * math.Pow(T/(2*math.Pi), 2))
}

// SemiMajorAxisToPeriod returns the period in seconds of an orbit of semi major axis a.
func SemiMajorAxisToPeriod(μ, a float64) float64 {
	return 2 * math.Pi * math.Sqrt(a*a*a/μ)
}

// VisViva returns the speed at radius r on an orbit of semi major axis a.
func VisViva(μ, r, a float64) float64 {
	return math.Sqrt(μ * (2/r - 1/a))
}

// Hohmann computes an Hohmann transfer. It returns the departure and arrival velocities, and the time of flight.
// To get final computations:
// ΔvInit = vDepature - vI
// ΔvFinal = vArrival - vF
func Hohmann(rI, rF float64, body CelestialObject) (vDeparture, vArrival float64, tof time.Duration) {
	aTransfer := 0.5 * (rI + rF)
	vDeparture = VisViva(body.GM(), rI, aTransfer)
	vArrival = VisViva(body.GM(), rF, aTransfer)
	tof = time.Duration(math.Pi * math.Sqrt(math.Pow(aTransfer, 3)/body.GM()) * float64(time.Second))
	return
}
