package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrNoMembers is returned when an ensemble statistic is requested over no inputs.
var ErrNoMembers = errors.New("no ensemble members")

// AnnualCycle holds twelve monthly mean slabs, index 0 = January.
type AnnualCycle [12][]float64

// MonthlyMeans averages per-timestep slabs into an annual cycle. Values
// outside valid (when non-nil) are ignored; grid points with no valid sample
// in a month are NaN.
func MonthlyMeans(times []time.Time, slabs [][]float64, valid *ValidRange) (AnnualCycle, error) {
	var cycle AnnualCycle
	if len(times) != len(slabs) {
		return cycle, fmt.Errorf("monthly means: %d times but %d slabs", len(times), len(slabs))
	}
	if len(slabs) == 0 {
		return cycle, fmt.Errorf("monthly means: no timesteps")
	}
	n := len(slabs[0])
	var sums [12][]float64
	var counts [12][]int
	for m := range sums {
		sums[m] = make([]float64, n)
		counts[m] = make([]int, n)
	}
	for t, slab := range slabs {
		if len(slab) != n {
			return cycle, fmt.Errorf("monthly means: timestep %d: %w", t, ErrShapeMismatch)
		}
		m := int(times[t].Month()) - 1
		for i, v := range slab {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if valid != nil && !valid.Contains(v) {
				continue
			}
			sums[m][i] += v
			counts[m][i]++
		}
	}
	for m := range cycle {
		cycle[m] = make([]float64, n)
		for i := range cycle[m] {
			if counts[m][i] == 0 {
				cycle[m][i] = math.NaN()
				continue
			}
			cycle[m][i] = sums[m][i] / float64(counts[m][i])
		}
	}
	return cycle, nil
}

// Delta returns future - historical month by month.
func Delta(future, historical AnnualCycle) (AnnualCycle, error) {
	var out AnnualCycle
	for m := range out {
		if len(future[m]) != len(historical[m]) {
			return out, fmt.Errorf("delta month %d: %w", m+1, ErrShapeMismatch)
		}
		out[m] = make([]float64, len(future[m]))
		for i := range out[m] {
			out[m][i] = future[m][i] - historical[m][i]
		}
	}
	return out, nil
}

// EnsembleMean averages members point by point, skipping NaN values. Points
// missing in every member stay NaN.
func EnsembleMean(members [][]float64) ([]float64, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	n := len(members[0])
	for k, m := range members {
		if len(m) != n {
			return nil, fmt.Errorf("ensemble member %d: %w", k, ErrShapeMismatch)
		}
	}
	out := make([]float64, n)
	sample := make([]float64, 0, len(members))
	for i := range out {
		sample = sample[:0]
		for _, m := range members {
			if !math.IsNaN(m[i]) {
				sample = append(sample, m[i])
			}
		}
		if len(sample) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(sample, nil)
	}
	return out, nil
}

// EnsembleMeanCycle applies EnsembleMean to each month of several annual cycles.
func EnsembleMeanCycle(members []AnnualCycle) (AnnualCycle, error) {
	var out AnnualCycle
	if len(members) == 0 {
		return out, ErrNoMembers
	}
	for m := range out {
		month := make([][]float64, len(members))
		for k := range members {
			month[k] = members[k][m]
		}
		mean, err := EnsembleMean(month)
		if err != nil {
			return out, fmt.Errorf("month %d: %w", m+1, err)
		}
		out[m] = mean
	}
	return out, nil
}

// InterpolatePressure linearly interpolates a field from its pressure levels
// to target levels, extrapolating linearly beyond the outermost source
// levels. Non-finite source values are skipped column by column. The result
// is stored in the order of target.
func InterpolatePressure(f Field, target []float64) (Field, error) {
	if err := f.Validate(); err != nil {
		return Field{}, err
	}
	if len(f.Levels) != f.NLev || f.NLev < 2 {
		return Field{}, fmt.Errorf("vertical interpolation needs at least 2 source levels, got %d", len(f.Levels))
	}
	if len(target) == 0 {
		return Field{}, fmt.Errorf("vertical interpolation: no target levels")
	}

	// Work on an ascending copy of the source axis.
	if f.Order == LevelsNone {
		f.Order = OrderOf(f.Levels)
	}
	src := f.Reorder(LevelsAscending)
	if !sort.Float64sAreSorted(src.Levels) {
		return Field{}, fmt.Errorf("vertical interpolation: source levels are not monotonic")
	}

	out := NewPressureField(target, f.NLat, f.NLon, make([]float64, len(target)*f.SlabSize()))
	out.Name = f.Name
	out.Units = f.Units

	n := f.SlabSize()
	xs := make([]float64, 0, src.NLev)
	ys := make([]float64, 0, src.NLev)
	for p := 0; p < n; p++ {
		xs, ys = xs[:0], ys[:0]
		for k := 0; k < src.NLev; k++ {
			v := src.Data[k*n+p]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			xs = append(xs, src.Levels[k])
			ys = append(ys, v)
		}
		for k, lev := range target {
			out.Data[k*n+p] = interp1(xs, ys, lev)
		}
	}
	return out, nil
}

// interp1 evaluates the piecewise-linear function through (xs, ys) at x,
// extrapolating from the end segments. xs must be increasing.
func interp1(xs, ys []float64, x float64) float64 {
	switch len(xs) {
	case 0:
		return math.NaN()
	case 1:
		return ys[0]
	}
	i := sort.SearchFloat64s(xs, x)
	switch {
	case i <= 0:
		i = 1
	case i >= len(xs):
		i = len(xs) - 1
	}
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
