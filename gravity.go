package aerobasic

import (
	"fmt"
	"math"
)

// GravityField is a two-body force model with optional zonal harmonics (J2,
// J3) acting on Cartesian states laid out as [x, y, z, vx, vy, vz].
type GravityField struct {
	Body CelestialObject
	Jn   uint8 // Highest zonal harmonic, 0 or 1 for a point mass.
}

// NewGravityField returns a new force model around the provided body.
func NewGravityField(body CelestialObject, jn uint8) (GravityField, error) {
	if !(body.μ > 0) {
		return GravityField{}, fmt.Errorf("%w: gravitational parameter must be positive, got %g", ErrConfiguration, body.μ)
	}
	if jn > 3 {
		return GravityField{}, fmt.Errorf("%w: zonal harmonics are supported up to J3, got J%d", ErrConfiguration, jn)
	}
	if jn >= 2 && !(body.Radius > 0) {
		return GravityField{}, fmt.Errorf("%w: zonal harmonics need a positive reference radius", ErrConfiguration)
	}
	return GravityField{Body: body, Jn: jn}, nil
}

// Acceleration returns the gravitational acceleration at r.
func (g GravityField) Acceleration(r Vector3) Vector3 {
	μ := g.Body.μ
	x, y, z := r.X, r.Y, r.Z
	r2 := x*x + y*y + z*z
	rn := math.Sqrt(r2)
	r3 := r2 * rn
	acc := r.Scale(-μ / r3)
	if g.Jn < 2 {
		return acc
	}
	z2 := z * z
	r52 := r3 * r2
	r72 := r52 * r2
	// J2 (and J3) partials of the zonal potential.
	accJ2 := (3 / 2.) * g.Body.J2 * g.Body.Radius * g.Body.Radius * μ
	acc.X += accJ2 * (5*x*z2/r72 - x/r52)
	acc.Y += accJ2 * (5*y*z2/r72 - y/r52)
	acc.Z += accJ2 * (5*z2*z/r72 - 3*z/r52)
	if g.Jn >= 3 {
		z3 := z2 * z
		r92 := r72 * r2
		accJ3 := g.Body.J3 * math.Pow(g.Body.Radius, 3) * μ
		acc.X += (5 / 2.) * accJ3 * (7*x*z3/r92 - 3*x*z/r72)
		acc.Y += (5 / 2.) * accJ3 * (7*y*z3/r92 - 3*y*z/r72)
		acc.Z += 0.5 * accJ3 * (35*z2*z2/r92 - 30*z2/r72 + 3/r52)
	}
	return acc
}

// Func implements the RightHandSide signature.
func (g GravityField) Func(_ float64, s []float64) []float64 {
	acc := g.Acceleration(Vector3{s[0], s[1], s[2]})
	return []float64{s[3], s[4], s[5], acc.X, acc.Y, acc.Z}
}

// Energy returns the specific energy of the state, including the J2 potential when enabled.
func (g GravityField) Energy(s []float64) float64 {
	r := Vector3{s[0], s[1], s[2]}.Norm()
	v2 := s[3]*s[3] + s[4]*s[4] + s[5]*s[5]
	u := -g.Body.μ / r
	if g.Jn >= 2 {
		sinφ := s[2] / r
		u += g.Body.μ / r * g.Body.J2 * math.Pow(g.Body.Radius/r, 2) * (3*sinφ*sinφ - 1) / 2
	}
	return v2/2 + u
}

// CanonicalUnits are the length and time units in which μ and the reference radius are both one.
type CanonicalUnits struct {
	Length, Time float64
}

// Canonical returns the force model expressed in canonical units of its body,
// along with those units.
func (g GravityField) Canonical() (GravityField, CanonicalUnits) {
	du := g.Body.Radius
	tu := math.Sqrt(du * du * du / g.Body.μ)
	body := g.Body
	body.Name += " (canonical)"
	body.μ = 1
	body.Radius = 1
	return GravityField{Body: body, Jn: g.Jn}, CanonicalUnits{Length: du, Time: tu}
}

// ToCanonical converts a Cartesian state to canonical units.
func (u CanonicalUnits) ToCanonical(s []float64) []float64 {
	v := u.Length / u.Time
	return []float64{s[0] / u.Length, s[1] / u.Length, s[2] / u.Length, s[3] / v, s[4] / v, s[5] / v}
}

// FromCanonical converts a Cartesian state from canonical units.
func (u CanonicalUnits) FromCanonical(s []float64) []float64 {
	v := u.Length / u.Time
	return []float64{s[0] * u.Length, s[1] * u.Length, s[2] * u.Length, s[3] * v, s[4] * v, s[5] * v}
}
