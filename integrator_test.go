package aerobasic

import (
	"context"
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"
)

const circularRadius = 7000.0

func circularState(inc float64) []float64 {
	v := math.Sqrt(Earth.GM() / circularRadius)
	return []float64{circularRadius, 0, 0, 0, v * math.Cos(inc), v * math.Sin(inc)}
}

func circularPeriod() float64 {
	return 2 * math.Pi * math.Sqrt(math.Pow(circularRadius, 3)/Earth.GM())
}

func newTestIntegrator(t testing.TB, mod func(*IntegratorConfig)) *Integrator {
	cfg := DefaultIntegratorConfig()
	if mod != nil {
		mod(&cfg)
	}
	in, err := NewIntegrator(cfg, nil)
	if err != nil {
		t.Fatalf("invalid integrator configuration: %s", err)
	}
	return in
}

func TestIntegratorConfigValidate(t *testing.T) {
	if err := DefaultIntegratorConfig().Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %s", err)
	}
	for name, mod := range map[string]func(*IntegratorConfig){
		"zero tolerance":  func(c *IntegratorConfig) { c.Tolerance = 0 },
		"nan tolerance":   func(c *IntegratorConfig) { c.Tolerance = math.NaN() },
		"negative step":   func(c *IntegratorConfig) { c.InitialStep = -60 },
		"infinite step":   func(c *IntegratorConfig) { c.InitialStep = math.Inf(1) },
		"no steps":        func(c *IntegratorConfig) { c.MaxSteps = 0 },
		"no duration":     func(c *IntegratorConfig) { c.MaxDuration = 0 },
		"negative sample": func(c *IntegratorConfig) { c.SampleInterval = -1 },
		"shrink of one":   func(c *IntegratorConfig) { c.ShrinkFactor = 1 },
		"shrink of zero":  func(c *IntegratorConfig) { c.ShrinkFactor = 0 },
	} {
		cfg := DefaultIntegratorConfig()
		mod(&cfg)
		if _, err := NewIntegrator(cfg, nil); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("[%s] expected a configuration error, got %v", name, err)
		}
	}
}

func TestStepPolynomial(t *testing.T) {
	in := newTestIntegrator(t, nil)
	for _, c := range []struct {
		name string
		f    RightHandSide
	}{
		{"quartic", func(t float64, _ []float64) []float64 { return []float64{5 * math.Pow(t, 4)} }},
		{"septic", func(t float64, _ []float64) []float64 { return []float64{8 * math.Pow(t, 7)} }},
	} {
		res, err := in.Step(c.f, 0, 1, []float64{0})
		if err != nil {
			t.Fatalf("[%s] %s", c.name, err)
		}
		if math.Abs(res.X[0]-1) > 1e-14 {
			t.Fatalf("[%s] quadrature of t^n is not exact: %.17f", c.name, res.X[0])
		}
		if res.T != 1 {
			t.Fatalf("[%s] wrong time %f", c.name, res.T)
		}
	}
}

func TestStepAdaptation(t *testing.T) {
	in := newTestIntegrator(t, nil)
	constant := func(float64, []float64) []float64 { return []float64{1, 2} }
	res, err := in.Step(constant, 0, 10, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Error != 0 {
		t.Fatalf("expected no error estimate for a constant derivative, got %g", res.Error)
	}
	if res.H != 20 || math.Abs(res.X[0]-11) > 1e-12 || math.Abs(res.X[1]-21) > 1e-12 {
		t.Fatalf("unexpected step result %+v", res)
	}
	if h := in.adapt(10, 1e-10); h != 5 {
		t.Fatalf("step not halved: %f", h)
	}
	if h := in.adapt(10, 1e-14); h != 10 {
		t.Fatalf("step should be kept: %f", h)
	}
	fixed := newTestIntegrator(t, func(c *IntegratorConfig) { c.FixedStep = true })
	if h := fixed.adapt(10, 1); h != 10 {
		t.Fatalf("fixed step changed: %f", h)
	}
}

func TestStepInvalidRightHandSide(t *testing.T) {
	in := newTestIntegrator(t, nil)
	short := func(float64, []float64) []float64 { return []float64{1} }
	if _, err := in.Step(short, 0, 1, []float64{0, 0}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	nan := func(float64, []float64) []float64 { return []float64{math.NaN()} }
	if _, err := in.Step(nan, 0, 1, []float64{0}); !errors.Is(err, ErrIntegrationDiverged) {
		t.Fatalf("expected a divergence error, got %v", err)
	}
	if _, err := in.PropagateToTime(context.Background(), nil, 0, []float64{0}, 1, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if _, err := in.PropagateToTime(context.Background(), short, 0, nil, 1, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestPropagateReusedDerivativeBuffer(t *testing.T) {
	in := newTestIntegrator(t, func(c *IntegratorConfig) { c.InitialStep = 0.5 })
	buf := make([]float64, 1)
	f := func(t float64, _ []float64) []float64 {
		buf[0] = math.Cos(t)
		return buf
	}
	p, err := in.PropagateToTime(context.Background(), f, 0, []float64{0}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.X[0]-math.Sin(10)) > 1e-10 {
		t.Fatalf("got %f, expected sin(10)=%f", p.X[0], math.Sin(10))
	}
	res, err := in.Step(f, 0, 0.1, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.X[0]-math.Sin(0.1)) > 1e-12 {
		t.Fatalf("single step got %.15f, expected %.15f", res.X[0], math.Sin(0.1))
	}
}

func TestPropagateCircular(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	period := circularPeriod()
	var worst float64
	var last float64
	samples := 0
	sink := func(t float64, x []float64) error {
		if samples > 0 && t <= last {
			return errors.New("time is not increasing")
		}
		last = t
		samples++
		worst = math.Max(worst, math.Abs(Radius(t, x)/circularRadius-1))
		return nil
	}
	res, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0), period, sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.T != period || last != period {
		t.Fatalf("propagation stopped at %f (last sample %f) instead of %f", res.T, last, period)
	}
	if samples != res.Steps+1 {
		t.Fatalf("expected %d samples, got %d", res.Steps+1, samples)
	}
	if worst > 1e-12 {
		t.Fatalf("radius drifted by %g", worst)
	}
	if math.Abs(res.X[0]-circularRadius) > 1e-6 || math.Abs(res.X[1]) > 1e-6 {
		t.Fatalf("orbit did not close: %v", res.X)
	}
}

func TestPropagateTimeReversal(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav, err := NewGravityField(Earth, 2)
	if err != nil {
		t.Fatal(err)
	}
	x0 := circularState(0.7)
	fwd, err := in.PropagateToTime(context.Background(), grav.Func, 0, x0, 6000, nil)
	if err != nil {
		t.Fatal(err)
	}
	back, err := in.PropagateToTime(context.Background(), grav.Func, 6000, fwd.X, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if back.T != 0 {
		t.Fatalf("backward propagation stopped at %f", back.T)
	}
	for i := range x0 {
		tol := 1e-7
		if i >= 3 {
			tol = 1e-9
		}
		if math.Abs(back.X[i]-x0[i]) > tol {
			t.Fatalf("component %d differs by %g after a round trip", i, back.X[i]-x0[i])
		}
	}
	// Energy is conserved by the J2 field.
	if dE := math.Abs(grav.Energy(fwd.X)/grav.Energy(x0) - 1); dE > 1e-11 {
		t.Fatalf("energy drifted by %g", dE)
	}
}

func TestPropagateBackward(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	period := circularPeriod()
	var times []float64
	res, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0.3), -period, func(t float64, _ []float64) error {
		times = append(times, t)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(times); i++ {
		if times[i] >= times[i-1] {
			t.Fatalf("time is not decreasing at sample %d: %f then %f", i, times[i-1], times[i])
		}
	}
	x0 := circularState(0.3)
	for i := 0; i < 3; i++ {
		if math.Abs(res.X[i]-x0[i]) > 1e-6 {
			t.Fatalf("orbit did not close backward: %v", res.X)
		}
	}
}

func TestPropagateFixedStep(t *testing.T) {
	in := newTestIntegrator(t, func(c *IntegratorConfig) {
		c.FixedStep = true
		c.InitialStep = 10
	})
	constant := func(float64, []float64) []float64 { return []float64{1} }
	res, err := in.PropagateToTime(context.Background(), constant, 0, []float64{0}, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Steps != 10 {
		t.Fatalf("expected 10 steps, got %d", res.Steps)
	}
	if math.Abs(res.X[0]-100) > 1e-12 {
		t.Fatalf("wrong final state %f", res.X[0])
	}
	// A non multiple end time ends with a shorter step.
	res, err = in.PropagateToTime(context.Background(), constant, 0, []float64{0}, 95, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.T != 95 || res.Steps != 10 || math.Abs(res.X[0]-95) > 1e-12 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestPropagateSampling(t *testing.T) {
	in := newTestIntegrator(t, func(c *IntegratorConfig) { c.SampleInterval = 600 })
	grav := GravityField{Body: Earth}
	var times []float64
	_, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0), 6000, func(t float64, _ []float64) error {
		times = append(times, t)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if times[0] != 0 || times[len(times)-1] != 6000 {
		t.Fatalf("initial and final states must be sampled: %v", times)
	}
	if len(times) > 12 {
		t.Fatalf("too many samples: %v", times)
	}
	for i := 1; i < len(times)-1; i++ {
		if times[i]-times[i-1] < 600 {
			t.Fatalf("samples %d and %d are too close: %v", i-1, i, times)
		}
	}
}

func TestPropagateBudgets(t *testing.T) {
	grav := GravityField{Body: Earth}
	in := newTestIntegrator(t, func(c *IntegratorConfig) { c.MaxSteps = 5 })
	res, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0), 1e4, nil)
	if !errors.Is(err, ErrIntegrationDiverged) {
		t.Fatalf("expected a divergence error, got %v", err)
	}
	if res.Steps != 5 || res.T <= 0 {
		t.Fatalf("partial result not returned: %+v", res)
	}

	in = newTestIntegrator(t, func(c *IntegratorConfig) { c.MaxDuration = 1000 })
	if _, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0), 1e4, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}

	// Circular orbits never reach a larger radius.
	cond := NewStoppingCondition(Radius, 2*circularRadius)
	cond.MaxElapsed = 1e4
	in = newTestIntegrator(t, nil)
	res, err = in.PropagateToEvent(context.Background(), grav.Func, 0, circularState(0), cond, nil)
	if !errors.Is(err, ErrIntegrationDiverged) {
		t.Fatalf("expected a divergence error, got %v", err)
	}
	if res.T < 1e4 || res.Crossings != 0 {
		t.Fatalf("unexpected partial result %+v", res)
	}
}

func TestPropagateCancel(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := in.PropagateToTime(ctx, grav.Func, 0, circularState(0), 1e4, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancellation, got %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	steps := 0
	_, err := in.PropagateToEvent(ctx, grav.Func, 0, circularState(0), NewStoppingCondition(Radius, 1e6), func(float64, []float64) error {
		steps++
		if steps == 10 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancellation, got %v", err)
	}
}

func TestPropagateSinkError(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	stop := errors.New("stop")
	calls := 0
	_, err := in.PropagateToTime(context.Background(), grav.Func, 0, circularState(0), 1e4, func(float64, []float64) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || calls != 3 {
		t.Fatalf("sink error not returned: %v after %d calls", err, calls)
	}
}

func TestPropagateToNode(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	period := circularPeriod()
	for _, c := range []struct {
		dir   CrossingDirection
		count int
		frac  float64
	}{
		{Decreasing, 1, 0.5},
		{Increasing, 1, 1},
		{Either, 1, 0.5},
		{Either, 3, 1.5},
		{Increasing, 2, 2},
	} {
		cond := NewStoppingCondition(ZCoordinate, 0)
		cond.Direction = c.dir
		cond.Count = c.count
		var lastT float64
		res, err := in.PropagateToEvent(context.Background(), grav.Func, 0, circularState(0.7), cond, func(t float64, _ []float64) error {
			lastT = t
			return nil
		})
		if err != nil {
			t.Fatalf("[%s x%d] %s", c.dir, c.count, err)
		}
		if res.Crossings != c.count {
			t.Fatalf("[%s x%d] got %d crossings", c.dir, c.count, res.Crossings)
		}
		if math.Abs(res.T/period-c.frac) > 1e-6 {
			t.Fatalf("[%s x%d] stopped at %f periods instead of %f", c.dir, c.count, res.T/period, c.frac)
		}
		if lastT != res.T {
			t.Fatalf("[%s x%d] final state not sampled", c.dir, c.count)
		}
		if math.Abs(res.X[2]) > 1e-3 {
			t.Fatalf("[%s x%d] not at a node: z=%g", c.dir, c.count, res.X[2])
		}
	}
}

func TestPropagateToRadius(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	x0 := []float64{7000, 0, 0, 0, 8.5, 0}
	up := NewStoppingCondition(Radius, 9000)
	up.Direction = Increasing
	res, err := in.PropagateToEvent(context.Background(), grav.Func, 0, x0, up, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(Radius(res.T, res.X)-9000) > 1e-3 || RadialVelocity(res.T, res.X) <= 0 {
		t.Fatalf("wrong outbound crossing at t=%f: %v", res.T, res.X)
	}
	down := up
	down.Direction = Decreasing
	resDown, err := in.PropagateToEvent(context.Background(), grav.Func, 0, x0, down, nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(Radius(resDown.T, resDown.X)-9000) > 1e-3 || RadialVelocity(resDown.T, resDown.X) >= 0 {
		t.Fatalf("wrong inbound crossing at t=%f: %v", resDown.T, resDown.X)
	}
	if resDown.T <= res.T {
		t.Fatalf("inbound crossing (%f) before outbound crossing (%f)", resDown.T, res.T)
	}
}

func TestPropagateToEventInvalid(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	for name, cond := range map[string]StoppingCondition{
		"no function":      {Tolerance: 1e-4},
		"no tolerance":     {Func: Radius},
		"negative count":   {Func: Radius, Tolerance: 1e-4, Count: -1},
		"negative elapsed": {Func: Radius, Tolerance: 1e-4, MaxElapsed: -1},
		"nan target":       {Func: Radius, Tolerance: 1e-4, Target: math.NaN()},
	} {
		if _, err := in.PropagateToEvent(context.Background(), grav.Func, 0, circularState(0), cond, nil); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("[%s] expected a configuration error, got %v", name, err)
		}
	}
}

func TestPropagateToNodeProperty(t *testing.T) {
	in := newTestIntegrator(t, nil)
	grav := GravityField{Body: Earth}
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(7000, 20000).Draw(t, "a")
		e := rapid.Float64Range(0, 0.3).Draw(t, "e")
		i := rapid.Float64Range(5, 175).Draw(t, "i")
		ν := rapid.Float64Range(10, 350).Draw(t, "ν")
		inc := rapid.Bool().Draw(t, "increasing")
		o, err := NewOrbitFromOE(a, e, i, 0, 0, ν, Earth)
		if err != nil {
			t.Fatal(err)
		}
		cond := NewStoppingCondition(ZCoordinate, 0)
		cond.Direction = Decreasing
		if inc {
			cond.Direction = Increasing
		}
		res, err := in.PropagateToEvent(context.Background(), grav.Func, 0, o.State(), cond, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.T <= 0 || res.T > o.PeriodSeconds() {
			t.Fatalf("node reached after %f s for a period of %f s", res.T, o.PeriodSeconds())
		}
		if math.Abs(res.X[2]) > 1e-2 {
			t.Fatalf("not at a node: z=%g", res.X[2])
		}
		if inc != (res.X[5] > 0) {
			t.Fatalf("crossing in the wrong direction: vz=%f", res.X[5])
		}
	})
}
