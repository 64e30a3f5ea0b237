package aerobasic

import (
	"fmt"
	"strings"
)

// CelestialObject defines a central body: its gravitational parameter, its
// reference radius and its zonal harmonics.
type CelestialObject struct {
	Name   string
	Radius float64
	μ      float64
	J2     float64
	J3     float64
	J4     float64
}

// NewCelestialObject returns a custom body.
func NewCelestialObject(name string, radius, μ, j2, j3 float64) (CelestialObject, error) {
	if !(μ > 0) {
		return CelestialObject{}, fmt.Errorf("%w: gravitational parameter of %s must be positive, got %g", ErrConfiguration, name, μ)
	}
	if radius < 0 {
		return CelestialObject{}, fmt.Errorf("%w: radius of %s must be non-negative, got %g", ErrConfiguration, name, radius)
	}
	return CelestialObject{Name: name, Radius: radius, μ: μ, J2: j2, J3: j3}, nil
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// J returns the perturbing J_n factor for the provided n.
func (c CelestialObject) J(n uint8) float64 {
	switch n {
	case 2:
		return c.J2
	case 3:
		return c.J3
	case 4:
		return c.J4
	default:
		return 0.0
	}
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.μ == b.μ && c.J2 == b.J2 && c.J3 == b.J3
}

// CelestialObjectFromString returns the object from its name
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "sun":
		return Sun, nil
	case "earth":
		return Earth, nil
	case "moon":
		return Moon, nil
	case "venus":
		return Venus, nil
	case "mars":
		return Mars, nil
	case "jupiter":
		return Jupiter, nil
	case "saturn":
		return Saturn, nil
	case "uranus":
		return Uranus, nil
	case "pluto":
		return Pluto, nil
	default:
		return CelestialObject{}, fmt.Errorf("%w: undefined body '%s'", ErrConfiguration, name)
	}
}

/* Definitions */

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700, 1.32712440017987e11, 0, 0, 0}

// Venus is poisonous.
var Venus = CelestialObject{"Venus", 6051.8, 3.24858599e5, 0.000027, 0, 0}

// Earth is home.
var Earth = CelestialObject{"Earth", 6378.1363, 3.98600433e5, 1082.6269e-6, -2.5324e-6, -1.6204e-6}

// Moon orbits Earth.
var Moon = CelestialObject{"Moon", 1738.0, 4.902800066e3, 202.7e-6, 0, 0}

// Mars is the vacation place.
var Mars = CelestialObject{"Mars", 3396.19, 4.28283100e4, 1964e-6, 36e-6, -18e-6}

// Jupiter is big.
var Jupiter = CelestialObject{"Jupiter", 71492.0, 1.266865361e8, 0.01475, 0, -0.00058}

// Saturn floats and that's really cool.
var Saturn = CelestialObject{"Saturn", 60268.0, 3.7931208e7, 0.01645, 0, -0.001}

// Uranus is no joke.
var Uranus = CelestialObject{"Uranus", 25559.0, 5.7939513e6, 0.012, 0, 0}

// Pluto is not a planet.
var Pluto = CelestialObject{"Pluto", 1151.0, 9. * 1e2, 0, 0, 0}
