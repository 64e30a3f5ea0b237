package aerobasic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	deg2rad = math.Pi / 180
)

// Vector3 is a Cartesian 3-vector.
type Vector3 struct {
	X, Y, Z float64
}

// NewVector3 returns a Vector3 from a slice of exactly three items.
func NewVector3(s []float64) (Vector3, error) {
	if len(s) != 3 {
		return Vector3{}, fmt.Errorf("%w: expected 3 components, got %d", ErrConfiguration, len(s))
	}
	return Vector3{s[0], s[1], s[2]}, nil
}

// Add returns v + w.
func (v Vector3) Add(w Vector3) Vector3 {
	return Vector3{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Sub returns v - w.
func (v Vector3) Sub(w Vector3) Vector3 {
	return Vector3{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

// Scale returns k*v.
func (v Vector3) Scale(k float64) Vector3 {
	return Vector3{k * v.X, k * v.Y, k * v.Z}
}

// Neg returns -v.
func (v Vector3) Neg() Vector3 {
	return Vector3{-v.X, -v.Y, -v.Z}
}

// Dot performs the inner product.
func (v Vector3) Dot(w Vector3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross performs the cross product.
func (v Vector3) Cross(w Vector3) Vector3 {
	return Vector3{v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X}
}

// Norm returns the Euclidean norm.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// errZeroVector is returned when normalizing a null vector.
var errZeroVector = fmt.Errorf("%w: cannot normalize a zero vector", ErrConfiguration)

// Unit returns the unit vector of v, or an error if v is null.
func (v Vector3) Unit() (Vector3, error) {
	n := v.Norm()
	if n == 0 {
		return Vector3{}, errZeroVector
	}
	return v.Scale(1 / n), nil
}

// Angle returns the angle in [0, π] between v and w.
func (v Vector3) Angle(w Vector3) float64 {
	return math.Atan2(v.Cross(w).Norm(), v.Dot(w))
}

// IsZero returns whether all components are exactly zero.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// EqualWithinAbs returns whether each component of v and w is within tol.
func (v Vector3) EqualWithinAbs(w Vector3, tol float64) bool {
	return floats.EqualApprox(v.Slice(), w.Slice(), tol)
}

// Slice returns the components as a new slice.
func (v Vector3) Slice() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// VecDense returns the vector as a gonum column vector.
func (v Vector3) VecDense() *mat.VecDense {
	return mat.NewVecDense(3, v.Slice())
}

func (v Vector3) String() string {
	return fmt.Sprintf("[%g %g %g]", v.X, v.Y, v.Z)
}

// vector3FromVec converts the first three items of a gonum vector.
func vector3FromVec(v mat.Vector) Vector3 {
	return Vector3{v.AtVec(0), v.AtVec(1), v.AtVec(2)}
}

// sign returns the sign of a given number, and 1 for zero.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// Round02Pi wraps an angle to [0, 2π).
func Round02Pi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// RoundNPiPi wraps an angle to (-π, π].
func RoundNPiPi(a float64) float64 {
	a = Round02Pi(a)
	if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
