// Package interp provides bilinear point sampling of gridded fields.
package interp

import (
	"fmt"
	"math"
	"sort"
)

// GridCell represents a cell in a regular grid with four corner values.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64 // X boundaries (longitude).
	Y0, Y1 float64 // Y boundaries (latitude).

	// Values at the four corners:
	// V00: value at (X0, Y0).
	// V10: value at (X1, Y0).
	// V01: value at (X0, Y1).
	// V11: value at (X1, Y1).
	V00, V10, V01, V11 float64
}

// BilinearInterpolate performs bilinear interpolation within a grid cell
// Formula:
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// where:
//
//	t = (x - x0) / (x1 - x0)
//	u = (y - y0) / (y1 - y0)
func BilinearInterpolate(cell GridCell, x, y float64) (float64, error) {
	// Validate grid cell.
	if cell.X1 <= cell.X0 {
		return 0, fmt.Errorf("invalid grid cell: X1 must be > X0")
	}
	if cell.Y1 <= cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell: Y1 must be > Y0")
	}

	// Check if point is within cell (with small tolerance for floating point).
	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	// Calculate normalized coordinates (0 to 1).
	t := (x - cell.X0) / (cell.X1 - cell.X0)
	u := (y - cell.Y0) / (cell.Y1 - cell.Y0)

	// Clamp to [0, 1] to handle edge cases with floating point precision.
	t = math.Max(0, math.Min(1, t))
	u = math.Max(0, math.Min(1, u))

	return (1-t)*(1-u)*cell.V00 +
		t*(1-u)*cell.V10 +
		(1-t)*u*cell.V01 +
		t*u*cell.V11, nil
}

// Grid2D is a rectilinear lat/lon slab. Axes may be stored in either
// direction; ERA5 latitudes run north to south.
type Grid2D struct {
	X    []float64 // Longitudes.
	Y    []float64 // Latitudes.
	Data []float64 // Row-major, Data[i*len(X)+j] at (X[j], Y[i]).
}

// NewGrid2D wraps a row-major slab with its axes.
func NewGrid2D(lons, lats, data []float64) (*Grid2D, error) {
	g := &Grid2D{X: lons, Y: lats, Data: data}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) < 2 {
		return fmt.Errorf("grid must have at least 2 X coordinates")
	}
	if len(g.Y) < 2 {
		return fmt.Errorf("grid must have at least 2 Y coordinates")
	}
	if len(g.Data) != len(g.X)*len(g.Y) {
		return fmt.Errorf("grid has %d values, expected %d", len(g.Data), len(g.X)*len(g.Y))
	}
	if !strictlyMonotonic(g.X) {
		return fmt.Errorf("X coordinates must be strictly monotonic")
	}
	if !strictlyMonotonic(g.Y) {
		return fmt.Errorf("Y coordinates must be strictly monotonic")
	}
	return nil
}

// InterpolateAt performs bilinear interpolation at (x, y). Longitudes are
// wrapped onto the axis convention (0..360 or -180..180) before lookup.
func (g *Grid2D) InterpolateAt(x, y float64) (float64, error) {
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("invalid grid: %w", err)
	}
	x = normalizeLonForAxis(g.X, x)

	j, err := cellIndex(g.X, x)
	if err != nil {
		return 0, fmt.Errorf("x coordinate %.6f: %w", x, err)
	}
	i, err := cellIndex(g.Y, y)
	if err != nil {
		return 0, fmt.Errorf("y coordinate %.6f: %w", y, err)
	}

	// Order corners so that X0 < X1 and Y0 < Y1 whatever the axis direction.
	j0, j1 := j, j+1
	if g.X[j0] > g.X[j1] {
		j0, j1 = j1, j0
	}
	i0, i1 := i, i+1
	if g.Y[i0] > g.Y[i1] {
		i0, i1 = i1, i0
	}
	n := len(g.X)
	cell := GridCell{
		X0:  g.X[j0],
		X1:  g.X[j1],
		Y0:  g.Y[i0],
		Y1:  g.Y[i1],
		V00: g.Data[i0*n+j0],
		V10: g.Data[i0*n+j1],
		V01: g.Data[i1*n+j0],
		V11: g.Data[i1*n+j1],
	}
	return BilinearInterpolate(cell, x, y)
}

// cellIndex returns k such that v lies between axis[k] and axis[k+1].
func cellIndex(axis []float64, v float64) (int, error) {
	n := len(axis)
	ascending := axis[n-1] > axis[0]
	lo, hi := axis[0], axis[n-1]
	if !ascending {
		lo, hi = hi, lo
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("outside grid range [%.6f, %.6f]", lo, hi)
	}
	var k int
	if ascending {
		k = sort.Search(n, func(i int) bool { return axis[i] >= v }) - 1
	} else {
		k = sort.Search(n, func(i int) bool { return axis[i] <= v }) - 1
	}
	if k < 0 {
		k = 0
	}
	if k > n-2 {
		k = n - 2
	}
	return k, nil
}

func strictlyMonotonic(axis []float64) bool {
	if len(axis) < 2 {
		return false
	}
	up := axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		if up && axis[i] <= axis[i-1] {
			return false
		}
		if !up && axis[i] >= axis[i-1] {
			return false
		}
	}
	return true
}

func lonAxisRequiresWrap(lons []float64) bool {
	minVal, maxVal := lons[0], lons[len(lons)-1]
	if minVal > maxVal {
		minVal, maxVal = maxVal, minVal
	}
	return minVal >= 0 && maxVal > 180
}

func normalizeLonForAxis(lons []float64, lon float64) float64 {
	if lonAxisRequiresWrap(lons) {
		lon = math.Mod(lon, 360)
		if lon < 0 {
			lon += 360
		}
		return lon
	}
	if lon > 180 {
		return lon - 360
	}
	return lon
}
