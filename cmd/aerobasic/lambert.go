package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	aerobasic "github.com/blitheli/AeroBasic"
)

type lambertOptions struct {
	gm             float64
	body           string
	r1, r2, v1, v2 []float64
	tof            float64
	revs           int
	format         string
}

type lambertReport struct {
	Angle     float64           `yaml:"transferAngleDeg"`
	Count     int               `yaml:"count"`
	Solutions []lambertSolution `yaml:"solutions"`
}

type lambertSolution struct {
	Branch    string     `yaml:"branch"`
	X         float64    `yaml:"x"`
	Departure [3]float64 `yaml:"departure"`
	Arrival   [3]float64 `yaml:"arrival"`
	DeltaV1   float64    `yaml:"deltaV1"`
	DeltaV2   float64    `yaml:"deltaV2"`
}

func newLambertCmd() *cobra.Command {
	var opts lambertOptions
	cmd := &cobra.Command{
		Use:   "lambert",
		Short: "solve Lambert's problem between two positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig("lambert")
			if err != nil {
				return err
			}
			return runLambert(cmd.OutOrStdout(), opts, aerobasic.NewLambertSolver(logger))
		},
	}
	cmd.Flags().Float64Var(&opts.gm, "gm", 0, "gravitational parameter (overrides --body)")
	cmd.Flags().StringVar(&opts.body, "body", "earth", "central body")
	cmd.Flags().Float64SliceVar(&opts.r1, "r1", nil, "departure position x,y,z")
	cmd.Flags().Float64SliceVar(&opts.r2, "r2", nil, "arrival position x,y,z")
	cmd.Flags().Float64SliceVar(&opts.v1, "v1", []float64{0, 0, 0}, "velocity at r1 before departure x,y,z")
	cmd.Flags().Float64SliceVar(&opts.v2, "v2", []float64{0, 0, 0}, "velocity at r2 after arrival x,y,z")
	cmd.Flags().Float64Var(&opts.tof, "tof", 0, "time of flight in seconds")
	cmd.Flags().IntVar(&opts.revs, "revs", 0, "number of complete revolutions")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text or yaml")
	cmd.MarkFlagRequired("r1")
	cmd.MarkFlagRequired("r2")
	cmd.MarkFlagRequired("tof")
	return cmd
}

func runLambert(w io.Writer, opts lambertOptions, solver *aerobasic.LambertSolver) error {
	gm := opts.gm
	if gm == 0 {
		body, err := aerobasic.CelestialObjectFromString(opts.body)
		if err != nil {
			return err
		}
		gm = body.GM()
	}
	var vecs [4]aerobasic.Vector3
	for i, s := range [][]float64{opts.r1, opts.r2, opts.v1, opts.v2} {
		v, err := aerobasic.NewVector3(s)
		if err != nil {
			return err
		}
		vecs[i] = v
	}
	res, err := solver.Solve(gm, vecs[0], vecs[2], vecs[1], vecs[3], opts.tof, opts.revs)
	if err != nil {
		return err
	}
	report := lambertReport{Angle: aerobasic.Rad2deg(res.Angle), Count: res.Count()}
	for _, s := range res.Solutions {
		report.Solutions = append(report.Solutions, lambertSolution{
			Branch:    s.Branch.String(),
			X:         s.X,
			Departure: [3]float64{s.Departure.X, s.Departure.Y, s.Departure.Z},
			Arrival:   [3]float64{s.Arrival.X, s.Arrival.Y, s.Arrival.Z},
			DeltaV1:   s.DeltaV1.Norm(),
			DeltaV2:   s.DeltaV2.Norm(),
		})
	}
	switch opts.format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	case "text":
		fmt.Fprintf(w, "transfer angle: %.6f deg\nsolutions: %d\n", report.Angle, report.Count)
		for i, s := range res.Solutions {
			fmt.Fprintf(w, "#%d (%s, x=%.9f)\n  departure: %s\n  arrival:   %s\n  Δv: %.6f + %.6f = %.6f\n",
				i, s.Branch, s.X, s.Departure, s.Arrival, s.DeltaV1.Norm(), s.DeltaV2.Norm(), s.Δv())
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q", aerobasic.ErrConfiguration, opts.format)
	}
}
