package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBilinearInterpolate_CenterPoint tests interpolation at the center of a grid cell
func TestBilinearInterpolate_CenterPoint(t *testing.T) {
	cell := GridCell{
		X0: 0.0, X1: 2.0,
		Y0: 0.0, Y1: 2.0,
		V00: 1.0, V10: 3.0,
		V01: 5.0, V11: 7.0,
	}

	// At center t=u=0.5 the result is the corner mean.
	result, err := BilinearInterpolate(cell, 1.0, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, result, 1e-9)
}

// TestBilinearInterpolate_OutOfBounds tests error handling for out-of-bounds points
func TestBilinearInterpolate_OutOfBounds(t *testing.T) {
	cell := GridCell{X0: 0, X1: 10, Y0: 0, Y1: 10, V00: 1, V10: 2, V01: 3, V11: 4}

	for _, p := range [][2]float64{{-1, 5}, {11, 5}, {5, -1}, {5, 11}} {
		_, err := BilinearInterpolate(cell, p[0], p[1])
		assert.Error(t, err, "point %v", p)
	}
}

// TestGrid2D_DescendingLatitudes checks a north-to-south slab as stored by ERA5.
func TestGrid2D_DescendingLatitudes(t *testing.T) {
	g, err := NewGrid2D(
		[]float64{0, 1, 2},
		[]float64{2, 1, 0},
		[]float64{
			7, 8, 9, // lat 2
			4, 5, 6, // lat 1
			1, 2, 3, // lat 0
		},
	)
	require.NoError(t, err)

	tests := []struct {
		x, y, want float64
	}{
		{0, 0, 1},
		{2, 2, 9},
		{1, 1, 5},
		{0.5, 0.5, 3},
		{1.5, 1.75, 7.75},
	}
	for _, tt := range tests {
		got, err := g.InterpolateAt(tt.x, tt.y)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "(%v, %v)", tt.x, tt.y)
	}

	_, err = g.InterpolateAt(1, 3)
	assert.Error(t, err)
}

// TestGrid2D_LongitudeWrap checks requests in -180..180 against a 0..360 axis.
func TestGrid2D_LongitudeWrap(t *testing.T) {
	g, err := NewGrid2D(
		[]float64{350, 355, 359},
		[]float64{0, 1},
		[]float64{1, 2, 3, 1, 2, 3},
	)
	require.NoError(t, err)

	got, err := g.InterpolateAt(-5, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestGrid2D_Validate(t *testing.T) {
	tests := []struct {
		name    string
		grid    *Grid2D
		wantErr bool
	}{
		{"valid", &Grid2D{X: []float64{0, 1, 2}, Y: []float64{1, 0}, Data: make([]float64, 6)}, false},
		{"too few X coords", &Grid2D{X: []float64{0}, Y: []float64{0, 1}, Data: make([]float64, 2)}, true},
		{"value count", &Grid2D{X: []float64{0, 1}, Y: []float64{0, 1}, Data: make([]float64, 3)}, true},
		{"non-monotonic X", &Grid2D{X: []float64{0, 2, 1}, Y: []float64{0, 1}, Data: make([]float64, 6)}, true},
		{"repeated Y", &Grid2D{X: []float64{0, 1}, Y: []float64{1, 1}, Data: make([]float64, 4)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grid.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}
