package domain

import (
	"fmt"
	"math"
)

// Grid is a regular latitude-longitude grid. Rows run from StartLat in
// steps of DLat, which is negative for north-to-south data such as ERA5.
type Grid struct {
	StartLat float64 `toml:"start_lat" json:"start_lat"`
	StartLon float64 `toml:"start_lon" json:"start_lon"`
	DLat     float64 `toml:"dlat" json:"dlat"`
	DLon     float64 `toml:"dlon" json:"dlon"`
	NLat     int     `toml:"nlat" json:"nlat"`
	NLon     int     `toml:"nlon" json:"nlon"`
}

// GridFromAxes builds a Grid from coordinate vectors. Both axes must be
// evenly spaced within tol degrees.
func GridFromAxes(lats, lons []float64, tol float64) (Grid, error) {
	if len(lats) < 2 || len(lons) < 2 {
		return Grid{}, fmt.Errorf("grid needs at least 2x2 points, got %dx%d", len(lats), len(lons))
	}
	dlat := lats[1] - lats[0]
	dlon := lons[1] - lons[0]
	if dlat == 0 || dlon <= 0 {
		return Grid{}, fmt.Errorf("degenerate grid spacing dlat=%v dlon=%v", dlat, dlon)
	}
	for i := 2; i < len(lats); i++ {
		if math.Abs(lats[i]-lats[i-1]-dlat) > tol {
			return Grid{}, fmt.Errorf("latitude axis is not regular at index %d", i)
		}
	}
	for j := 2; j < len(lons); j++ {
		if math.Abs(lons[j]-lons[j-1]-dlon) > tol {
			return Grid{}, fmt.Errorf("longitude axis is not regular at index %d", j)
		}
	}
	return Grid{
		StartLat: lats[0],
		StartLon: lons[0],
		DLat:     dlat,
		DLon:     dlon,
		NLat:     len(lats),
		NLon:     len(lons),
	}, nil
}

// Lats returns the latitude axis.
func (g Grid) Lats() []float64 {
	out := make([]float64, g.NLat)
	for i := range out {
		out[i] = g.StartLat + float64(i)*g.DLat
	}
	return out
}

// Lons returns the longitude axis.
func (g Grid) Lons() []float64 {
	out := make([]float64, g.NLon)
	for j := range out {
		out[j] = g.StartLon + float64(j)*g.DLon
	}
	return out
}

// Matches reports whether a field has the grid's horizontal dimensions.
func (g Grid) Matches(f Field) bool {
	return f.NLat == g.NLat && f.NLon == g.NLon
}

// FlipRows returns a copy of f with the latitude axis reversed in every slab.
func FlipRows(f Field) Field {
	out := f.Clone()
	for k := 0; k < f.NLev; k++ {
		for i := 0; i < f.NLat; i++ {
			src := f.Data[(k*f.NLat+i)*f.NLon : (k*f.NLat+i+1)*f.NLon]
			r := f.NLat - 1 - i
			copy(out.Data[(k*f.NLat+r)*f.NLon:(k*f.NLat+r+1)*f.NLon], src)
		}
	}
	return out
}
