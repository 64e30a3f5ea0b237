package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log/level"
	"github.com/guptarohit/asciigraph"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	aerobasic "github.com/blitheli/AeroBasic"
)

const (
	dateFormat = "2006-01-02 15:04:05"
	jdJ2000    = 2451545.0
)

// scenario is a propagation read from a TOML file.
type scenario struct {
	Orbit      *aerobasic.Orbit
	Epoch      time.Time
	Duration   float64
	Jn         uint8
	Integrator aerobasic.IntegratorConfig
	Event      *aerobasic.StoppingCondition
}

type outputOptions struct {
	xyzv, csv string
	plot      bool
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.xyzv, "out", "", "write the trajectory as Julian date stamped states to this file")
	cmd.Flags().StringVar(&o.csv, "csv", "", "write the orbital elements as CSV to this file")
	cmd.Flags().BoolVar(&o.plot, "plot", false, "plot the radius against time")
}

func newPropagateCmd() *cobra.Command {
	var (
		scenarioPath string
		out          outputOptions
	)
	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "propagate an orbit for the scenario duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd.OutOrStdout(), scenarioPath, out, false)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario TOML file")
	cmd.MarkFlagRequired("scenario")
	out.register(cmd)
	return cmd
}

func newEventCmd() *cobra.Command {
	var (
		scenarioPath string
		out          outputOptions
	)
	cmd := &cobra.Command{
		Use:   "event",
		Short: "propagate an orbit until the scenario event occurs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.Context(), cmd.OutOrStdout(), scenarioPath, out, true)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario TOML file")
	cmd.MarkFlagRequired("scenario")
	out.register(cmd)
	return cmd
}

func runScenario(ctx context.Context, w io.Writer, path string, out outputOptions, event bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	conf, logger, err := loadConfig("cli")
	if err != nil {
		return err
	}
	sc, err := loadScenario(path, conf.Integrator)
	if err != nil {
		return err
	}
	if event && sc.Event == nil {
		return fmt.Errorf("%w: scenario %s has no [event] section", aerobasic.ErrConfiguration, path)
	}
	mission, err := aerobasic.NewMission(sc.Orbit, sc.Jn, sc.Epoch, sc.Integrator, logger)
	if err != nil {
		return err
	}
	mission.LogStatus()

	var (
		sinks []aerobasic.Sink
		rec   aerobasic.Recorder
		outs  outputs
	)
	defer outs.Close()
	if out.plot {
		sinks = append(sinks, rec.Sink())
	}
	if out.xyzv != "" {
		f, err := os.Create(out.xyzv)
		if err != nil {
			return err
		}
		outs.add(f)
		xw, err := aerobasic.NewXYZVWriter(f, sc.Epoch)
		if err != nil {
			return err
		}
		outs.add(xw)
		sinks = append(sinks, xw.Sink())
	}
	if out.csv != "" {
		f, err := os.Create(out.csv)
		if err != nil {
			return err
		}
		outs.add(f)
		cw, err := aerobasic.NewElementsCSVWriter(f, sc.Epoch, sc.Orbit.Origin)
		if err != nil {
			return err
		}
		outs.add(cw)
		sinks = append(sinks, cw.Sink())
	}

	var p aerobasic.Propagation
	if event {
		p, err = mission.PropagateToEvent(ctx, *sc.Event, aerobasic.MultiSink(sinks...))
	} else {
		p, err = mission.PropagateFor(ctx, sc.Duration, aerobasic.MultiSink(sinks...))
	}
	if err != nil {
		level.Error(logger).Log("msg", "propagation failed", "err", err)
		return err
	}
	if err := outs.Close(); err != nil {
		return fmt.Errorf("closing outputs: %w", err)
	}
	fmt.Fprintf(w, "date: %s (JD %.6f)\nsteps: %d\norbit: %s\nstate: %v\n", mission.CurrentDT.Format(dateFormat), julian.TimeToJD(mission.CurrentDT), p.Steps, mission.Orbit, p.X)
	if event {
		fmt.Fprintf(w, "crossings: %d\n", p.Crossings)
	}
	if out.plot && rec.Len() > 1 {
		radii := make([]float64, rec.Len())
		for i, s := range rec.States {
			radii[i] = aerobasic.Radius(rec.Times[i], s)
		}
		fmt.Fprintln(w, asciigraph.Plot(radii, asciigraph.Height(10), asciigraph.Width(80), asciigraph.Caption("radius (km)")))
	}
	return nil
}

// outputs holds the files and writers opened for a run.
type outputs struct {
	closers []io.Closer
}

func (o *outputs) add(c io.Closer) {
	o.closers = append(o.closers, c)
}

// Close closes the outputs in reverse order and returns the first error.
// Closing twice is a no-op.
func (o *outputs) Close() error {
	var first error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	o.closers = nil
	return first
}

// loadScenario reads a scenario file. Integrator keys of the scenario override base.
func loadScenario(path string, base aerobasic.IntegratorConfig) (scenario, error) {
	var sc scenario
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return sc, fmt.Errorf("%w: %s: %s", aerobasic.ErrConfiguration, path, err)
	}
	body, err := aerobasic.CelestialObjectFromString(v.GetString("body"))
	if err != nil {
		return sc, err
	}
	if sc.Epoch, err = confReadJDEorTime(v, "epoch"); err != nil {
		return sc, err
	}
	switch {
	case v.IsSet("orbit"):
		sc.Orbit, err = aerobasic.NewOrbitFromOE(v.GetFloat64("orbit.sma"), v.GetFloat64("orbit.ecc"), v.GetFloat64("orbit.inc"),
			v.GetFloat64("orbit.RAAN"), v.GetFloat64("orbit.argPeri"), v.GetFloat64("orbit.tAnomaly"), body)
	case v.IsSet("state"):
		var r, vel aerobasic.Vector3
		if r, err = confReadVector(v, "state.r"); err != nil {
			return sc, err
		}
		if vel, err = confReadVector(v, "state.v"); err != nil {
			return sc, err
		}
		sc.Orbit, err = aerobasic.NewOrbitFromRV(r, vel, body)
	default:
		err = fmt.Errorf("%w: scenario needs an [orbit] or a [state] section", aerobasic.ErrConfiguration)
	}
	if err != nil {
		return sc, err
	}
	sc.Duration = v.GetFloat64("duration")
	sc.Jn = uint8(v.GetUint("perturbations.jn"))
	sc.Integrator = aerobasic.IntegratorConfigFrom(v, base)
	if v.IsSet("event") {
		g, err := aerobasic.ScalarFuncFromString(v.GetString("event.function"))
		if err != nil {
			return sc, err
		}
		cond := aerobasic.NewStoppingCondition(g, v.GetFloat64("event.target"))
		if cond.Direction, err = aerobasic.CrossingDirectionFromString(v.GetString("event.direction")); err != nil {
			return sc, err
		}
		if v.IsSet("event.count") {
			cond.Count = v.GetInt("event.count")
		}
		if v.IsSet("event.tolerance") {
			cond.Tolerance = v.GetFloat64("event.tolerance")
		}
		cond.MaxElapsed = v.GetFloat64("event.max")
		sc.Event = &cond
	}
	return sc, nil
}

// confReadJDEorTime reads a date given either as a Julian date or as a time.
func confReadJDEorTime(v *viper.Viper, key string) (time.Time, error) {
	if !v.IsSet(key) {
		return julian.JDToTime(jdJ2000), nil
	}
	if jde := v.GetFloat64(key); jde != 0 {
		return julian.JDToTime(jde), nil
	}
	dt := v.GetTime(key)
	if dt.IsZero() {
		return dt, fmt.Errorf("%w: cannot read date %q from %v", aerobasic.ErrConfiguration, key, v.Get(key))
	}
	return dt, nil
}

// confReadVector reads a three item array.
func confReadVector(v *viper.Viper, key string) (aerobasic.Vector3, error) {
	raw, ok := v.Get(key).([]interface{})
	if !ok {
		return aerobasic.Vector3{}, fmt.Errorf("%w: %s must be an array", aerobasic.ErrConfiguration, key)
	}
	vals := make([]float64, len(raw))
	for i, item := range raw {
		switch n := item.(type) {
		case float64:
			vals[i] = n
		case int64:
			vals[i] = float64(n)
		case int:
			vals[i] = float64(n)
		default:
			return aerobasic.Vector3{}, fmt.Errorf("%w: %s[%d] is not a number", aerobasic.ErrConfiguration, key, i)
		}
	}
	return aerobasic.NewVector3(vals)
}
