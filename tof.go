package aerobasic

import "math"

const (
	// seriesSwitch is the bound on |1-x²| under which the series form is used.
	seriesSwitch = 0.4
)

// tofDerivs holds a normalized time of flight and its derivatives with respect to x.
type tofDerivs struct {
	t, dt, d2t, d3t float64
}

// timeOfFlight returns the normalized time of flight T(x) for m complete
// revolutions, and its first n derivatives (n in [0, 3]).
// q and qsqfm1 = 1-q² describe the geometry and must be precomputed by the caller.
func timeOfFlight(m int, q, qsqfm1, x float64, n int) tofDerivs {
	return timeOfFlightSwitch(m, q, qsqfm1, x, n, seriesSwitch)
}

// timeOfFlightSwitch is timeOfFlight with an explicit series switch. A negative
// switch forces the direct form everywhere.
func timeOfFlightSwitch(m int, q, qsqfm1, x float64, n int, sw float64) tofDerivs {
	u := (1 - x) * (1 + x)
	if m > 0 || x < 0 || math.Abs(u) > sw {
		return tofDirect(m, q, qsqfm1, x, n)
	}
	return tofSeries(q, qsqfm1, x, n)
}

// tofParts returns the intermediate quantities shared by the direct form and
// the velocity auxiliaries. The pair (a, b) is computed for qx <= 0 and the pair
// (aa, bb) for qx >= 0, the other one being derived through the identity
// a*aa = qsqfm1 so that no subtraction of nearly equal numbers occurs.
func tofParts(q, qsqfm1, x float64, aux bool) (y, z, a, b, aa, bb float64) {
	qsq := q * q
	xsq := x * x
	u := (1 - x) * (1 + x)
	y = math.Sqrt(math.Abs(u))
	z = math.Sqrt(qsqfm1 + qsq*xsq)
	qx := q * x
	if qx <= 0 {
		a = z - qx
		b = q*z - x
	}
	if qx < 0 && aux {
		aa = qsqfm1 / a
		bb = qsqfm1 * (qsq*u - xsq) / b
	}
	if (qx == 0 && aux) || qx > 0 {
		aa = z + qx
		bb = q*z + x
	}
	if qx > 0 {
		a = qsqfm1 / aa
		b = qsqfm1 * (qsq*u - xsq) / bb
	}
	return
}

// tofAux returns the velocity auxiliaries q·z−x, q·z+x and z+q·x, each computed
// without cancellation.
func tofAux(q, qsqfm1, x float64) (qzminx, qzplx, zplqx float64) {
	_, _, _, b, aa, bb := tofParts(q, qsqfm1, x, true)
	return b, bb, aa
}

func tofDirect(m int, q, qsqfm1, x float64, n int) (r tofDerivs) {
	qsq := q * q
	u := (1 - x) * (1 + x)
	y, z, a, b, _, _ := tofParts(q, qsqfm1, x, false)
	qx := q * x
	var g float64
	if qx*u >= 0 {
		g = x*z + q*u
	} else {
		g = (x*x - qsq*u) / (x*z - q*u)
	}
	f := a * y
	if x <= 1 {
		r.t = float64(m)*math.Pi + math.Atan2(f, g)
	} else if f > seriesSwitch {
		r.t = math.Log(f + g)
	} else {
		// ln(f+g) = 2 atanh(f/(g+1)) for small f.
		fg1 := f / (g + 1)
		term := 2 * fg1
		fg1sq := fg1 * fg1
		r.t = term
		twoi1 := 1.0
		for {
			twoi1 += 2
			term *= fg1sq
			told := r.t
			r.t += term / twoi1
			if r.t == told {
				break
			}
		}
	}
	r.t = 2 * (r.t/y + b) / u
	if n >= 1 && z != 0 {
		qz := q / z
		qz2 := qz * qz
		qz *= qz2
		r.dt = (3*x*r.t - 4*(a+qx*qsqfm1)/z) / u
		if n >= 2 {
			r.d2t = (3*r.t + 5*x*r.dt + 4*qz*qsqfm1) / u
		}
		if n >= 3 {
			r.d3t = (8*r.dt + 7*x*r.d2t - 12*qz*qz2*x*qsqfm1) / u
		}
	}
	return
}

// tofSeries evaluates the hypergeometric series form, valid for m = 0 and x
// close to 1, until the sum stops changing.
func tofSeries(q, qsqfm1, x float64, n int) (r tofDerivs) {
	qsq := q * q
	xsq := x * x
	u := (1 - x) * (1 + x)
	l1, l2, l3 := n >= 1, n >= 2, n >= 3
	u0i := 1.0
	var u1i, u2i, u3i float64
	if l1 {
		u1i = 1
	}
	if l2 {
		u2i = 1
	}
	if l3 {
		u3i = 1
	}
	term := 4.0
	tq := q * qsqfm1
	var tqsum float64
	if q < 0.5 {
		tqsum = 1 - q*qsq
	} else {
		tqsum = (1/(1+q) + q) * qsqfm1
	}
	ttmold := term / 3
	r.t = ttmold * tqsum
	told := r.t - 1
	for i := 1; i <= n || r.t != told; i++ {
		p := float64(i)
		u0i *= u
		if l1 && i > 1 {
			u1i *= u
		}
		if l2 && i > 2 {
			u2i *= u
		}
		if l3 && i > 3 {
			u3i *= u
		}
		term = term * (p - 0.5) / p
		tq *= qsq
		tqsum += tq
		told = r.t
		tterm := term / (2*p + 3)
		tqterm := tterm * tqsum
		r.t -= u0i * ((1.5*p+0.25)*tqterm/(p*p-0.25) - ttmold*tq)
		ttmold = tterm
		tqterm *= p
		if l1 {
			r.dt += tqterm * u1i
		}
		if l2 {
			r.d2t += tqterm * u2i * (p - 1)
		}
		if l3 {
			r.d3t += tqterm * u3i * (p - 1) * (p - 2)
		}
	}
	if l3 {
		r.d3t = 8 * x * (1.5*r.d2t - xsq*r.d3t)
	}
	if l2 {
		r.d2t = 2 * (2*xsq*r.d2t - r.dt)
	}
	if l1 {
		r.dt = -2 * x * r.dt
	}
	r.t /= xsq
	return
}
