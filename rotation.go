package aerobasic

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PQW2ECI converts a given vector from the perifocal frame to the inertial frame.
func PQW2ECI(i, ω, Ω float64, v Vector3) Vector3 {
	return MxV33(R3R1R3(i, ω, Ω), v)
}

// ECI2PQW converts a given vector from the inertial frame to the perifocal frame.
func ECI2PQW(i, ω, Ω float64, v Vector3) Vector3 {
	return MxV33(R3R1R3(i, ω, Ω).T(), v)
}

// R3R1R3 returns the perifocal to inertial matrix, i.e. R3(-Ω) R1(-i) R3(-ω).
func R3R1R3(i, ω, Ω float64) *mat.Dense {
	si, ci := math.Sincos(i)
	sω, cω := math.Sincos(ω)
	sΩ, cΩ := math.Sincos(Ω)
	return mat.NewDense(3, 3, []float64{cΩ*cω - sΩ*sω*ci, -1*cΩ*sω - sΩ*cω*ci, sΩ * si,
		sΩ*cω + cΩ*sω*ci, cΩ*cω*ci - sΩ*sω, -1 * cΩ * si,
		sω * si, cω * si, ci})
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a 3x3 matrix with a vector.
func MxV33(m mat.Matrix, v Vector3) Vector3 {
	var rVec mat.VecDense
	rVec.MulVec(m, v.VecDense())
	return vector3FromVec(&rVec)
}
