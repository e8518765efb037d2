package ncio

import (
	"fmt"
	"math"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// ReadGridded reads a whole time-first variable (3-D or 4-D) with its
// coordinates. Pressure axes are returned in Pa.
func ReadGridded(path string, names ...string) (Gridded, error) {
	var g Gridded
	err := WithFile(path, func(ds netcdf.Dataset) error {
		v, name, err := FindVar(ds, names...)
		if err != nil {
			return err
		}
		dims, _, err := Shape(v)
		if err != nil {
			return err
		}
		if IndexOf(dims, TimeNames...) != 0 {
			return fmt.Errorf("%s: expected time as first dimension, got %v", name, dims)
		}
		axis, err := ReadTimes(ds)
		if err != nil {
			return err
		}

		switch len(dims) {
		case 3:
		case 4:
			levels, err := ReadAxis(ds, append([]string{dims[1]}, LevelNames...)...)
			if err != nil {
				return err
			}
			g.Levels = ToPascal(levels)
		default:
			return fmt.Errorf("%s: expected 3D or 4D variable, got %dD", name, len(dims))
		}
		if g.Lats, err = ReadAxis(ds, append([]string{dims[len(dims)-2]}, LatNames...)...); err != nil {
			return err
		}
		if g.Lons, err = ReadAxis(ds, append([]string{dims[len(dims)-1]}, LonNames...)...); err != nil {
			return err
		}
		if g.Data, err = ReadAll(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		g.Name = name
		g.Times = axis.Times
		g.Units, _ = StringAttr(v, "units")
		g.LongName, _ = StringAttr(v, "long_name")
		return nil
	})
	if err != nil {
		return Gridded{}, fmt.Errorf("read %s: %w", path, err)
	}
	return g, nil
}

// StepSize is the number of values of one timestep.
func (g Gridded) StepSize() int {
	n := len(g.Lats) * len(g.Lons)
	if len(g.Levels) > 0 {
		n *= len(g.Levels)
	}
	return n
}

// Step returns the values of timestep t. The slice aliases Data.
func (g Gridded) Step(t int) []float64 {
	n := g.StepSize()
	return g.Data[t*n : (t+1)*n]
}

// Select returns the timesteps within [from, to], copying their values.
func (g Gridded) Select(from, to time.Time) ([]time.Time, [][]float64) {
	var times []time.Time
	var steps [][]float64
	for i, t := range g.Times {
		if t.Before(from) || t.After(to) {
			continue
		}
		times = append(times, t)
		steps = append(steps, append([]float64(nil), g.Step(i)...))
	}
	return times, steps
}

// ToPascal converts hPa pressure axes (ERA5 "level") to Pa. Axes already in
// Pa are returned as a copy.
func ToPascal(levels []float64) []float64 {
	out := append([]float64(nil), levels...)
	maxLev := 0.0
	for _, l := range out {
		maxLev = math.Max(maxLev, l)
	}
	if maxLev > 0 && maxLev <= 1100 {
		for i := range out {
			out[i] *= 100
		}
	}
	return out
}
