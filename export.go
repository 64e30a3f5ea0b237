package aerobasic

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Recorder keeps every state it receives in memory.
type Recorder struct {
	Times  []float64
	States [][]float64
}

// Sink returns the Sink filling this recorder.
func (r *Recorder) Sink() Sink {
	return func(t float64, x []float64) error {
		s := make([]float64, len(x))
		copy(s, x)
		r.Times = append(r.Times, t)
		r.States = append(r.States, s)
		return nil
	}
}

// Len returns the number of recorded states.
func (r *Recorder) Len() int {
	return len(r.Times)
}

// MultiSink returns a sink calling each of the provided sinks in order.
func MultiSink(sinks ...Sink) Sink {
	return func(t float64, x []float64) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s(t, x); err != nil {
				return err
			}
		}
		return nil
	}
}

// InterpolatedState is a Julian date stamped Cartesian state.
type InterpolatedState struct {
	JD       float64
	Position Vector3
	Velocity Vector3
}

// FromText initializes from text.
// The `record` parameter must be an array of seven items.
func (i *InterpolatedState) FromText(record []string) error {
	if len(record) != 7 {
		return fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	var vals [7]float64
	for k, field := range record {
		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return fmt.Errorf("field %d: %w", k, err)
		}
		vals[k] = val
	}
	i.JD = vals[0]
	i.Position = Vector3{vals[1], vals[2], vals[3]}
	i.Velocity = Vector3{vals[4], vals[5], vals[6]}
	return nil
}

// ToText converts to text for written output.
func (i InterpolatedState) ToText() string {
	return fmt.Sprintf("%.9f %f %f %f %f %f %f", i.JD, i.Position.X, i.Position.Y, i.Position.Z, i.Velocity.X, i.Velocity.Y, i.Velocity.Z)
}

// Time returns the date of this state.
func (i InterpolatedState) Time() time.Time {
	return julian.JDToTime(i.JD)
}

// ParseInterpolatedStates reads space separated records, skipping comments.
func ParseInterpolatedStates(r io.Reader) ([]InterpolatedState, error) {
	var states []InterpolatedState
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return states, err
		}
		var state InterpolatedState
		if err := state.FromText(record); err != nil {
			return states, fmt.Errorf("record %d: %w", line, err)
		}
		states = append(states, state)
	}
	return states, nil
}

// XYZVWriter writes Cartesian states as Julian date stamped interpolated states.
type XYZVWriter struct {
	w     *bufio.Writer
	epoch time.Time
	last  time.Time
}

// NewXYZVWriter writes the header to w and returns the writer. Propagation
// times are seconds past epoch.
func NewXYZVWriter(w io.Writer, epoch time.Time) (*XYZVWriter, error) {
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintf(bw, `# Creation date (UTC): %s
# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>
#   Time is a Julian date
#   Position in km
#   Velocity in km/sec
#   Simulation time start (UTC): %s`, time.Now().UTC(), epoch.UTC())
	return &XYZVWriter{w: bw, epoch: epoch.UTC(), last: epoch.UTC()}, err
}

// Sink returns the Sink writing to this file.
func (x *XYZVWriter) Sink() Sink {
	return func(t float64, s []float64) error {
		dt := x.epoch.Add(time.Duration(t * float64(time.Second)))
		x.last = dt
		st := InterpolatedState{JD: julian.TimeToJD(dt), Position: Vector3{s[0], s[1], s[2]}, Velocity: Vector3{s[3], s[4], s[5]}}
		_, err := x.w.WriteString("\n" + st.ToText())
		return err
	}
}

// Close writes the footer and flushes. It does not close the underlying writer.
func (x *XYZVWriter) Close() error {
	if _, err := fmt.Fprintf(x.w, "\n# Simulation time end (UTC): %s\n", x.last); err != nil {
		return err
	}
	return x.w.Flush()
}

// ElementsCSVWriter writes the orbital elements of Cartesian states as CSV.
type ElementsCSVWriter struct {
	w     *csv.Writer
	epoch time.Time
	body  CelestialObject
}

// NewElementsCSVWriter writes the CSV header to w and returns the writer.
func NewElementsCSVWriter(w io.Writer, epoch time.Time, body CelestialObject) (*ElementsCSVWriter, error) {
	cw := csv.NewWriter(w)
	err := cw.Write([]string{"time", "a", "e", "i", "Omega", "omega", "nu", "timeInHours"})
	return &ElementsCSVWriter{w: cw, epoch: epoch.UTC(), body: body}, err
}

// Sink returns the Sink writing to this file. All angles are in degrees.
func (c *ElementsCSVWriter) Sink() Sink {
	return func(t float64, s []float64) error {
		o, err := NewOrbitFromRV(Vector3{s[0], s[1], s[2]}, Vector3{s[3], s[4], s[5]}, c.body)
		if err != nil {
			return err
		}
		a, e, i, Ω, ω, ν := o.Elements()
		dt := c.epoch.Add(time.Duration(t * float64(time.Second)))
		rec := []string{dt.Format("2006-01-02 15:04:05"), ftoa(a), ftoa(e), ftoa(Rad2deg(i)), ftoa(Rad2deg(Ω)), ftoa(Rad2deg(ω)), ftoa(Rad2deg(ν)), ftoa(t / 3600)}
		return c.w.Write(rec)
	}
}

// Close flushes the CSV writer.
func (c *ElementsCSVWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
