package ncio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// TimeReference is the epoch used for written time axes, as in ERA5 files.
var TimeReference = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// FillValue marks missing data in written files.
const FillValue = float32(1e20)

// Gridded is a [time][level][lat][lon] variable with its coordinates.
// Levels may be empty for single-level variables.
type Gridded struct {
	Name     string
	Units    string
	LongName string
	Times    []time.Time
	Levels   []float64 // Pa.
	Lats     []float64
	Lons     []float64
	Data     []float64 // NaN is written as FillValue.
}

func (g Gridded) size() int {
	n := len(g.Times) * len(g.Lats) * len(g.Lons)
	if len(g.Levels) > 0 {
		n *= len(g.Levels)
	}
	return n
}

// WriteGridded creates (or replaces) a NetCDF-4 file holding one variable.
func WriteGridded(path string, g Gridded) error {
	return WriteDataset(path, g)
}

// WriteDataset creates (or replaces) a NetCDF-4 file holding several
// variables. All variables share the coordinates of the first one; the
// pressure axis is written when any variable has levels.
func WriteDataset(path string, vars ...Gridded) error {
	if len(vars) == 0 {
		return fmt.Errorf("write %s: no variables", path)
	}
	ref := vars[0]
	var levels []float64
	for _, g := range vars {
		if g.Name == "" {
			return fmt.Errorf("write %s: missing variable name", path)
		}
		if len(g.Levels) > 0 {
			levels = g.Levels
		}
	}
	if len(ref.Times) == 0 || len(ref.Lats) == 0 || len(ref.Lons) == 0 {
		return fmt.Errorf("write %s: empty coordinate axis", path)
	}
	for _, g := range vars {
		shaped := ref
		shaped.Levels = g.Levels
		if len(g.Levels) > 0 && len(g.Levels) != len(levels) {
			return fmt.Errorf("write %s: %s has %d levels, expected %d", path, g.Name, len(g.Levels), len(levels))
		}
		if len(g.Data) != shaped.size() {
			return fmt.Errorf("write %s: %s has %d values, expected %d", path, g.Name, len(g.Data), shaped.size())
		}
	}

	libMu.Lock()
	defer libMu.Unlock()

	//nolint:gosec // G301: output directories are shared with WPS tooling.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create NetCDF file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	timeDim, err := ds.AddDim("time", uint64(len(ref.Times)))
	if err != nil {
		return err
	}
	var levDim netcdf.Dim
	if len(levels) > 0 {
		if levDim, err = ds.AddDim("plev", uint64(len(levels))); err != nil {
			return err
		}
	}
	latDim, err := ds.AddDim("lat", uint64(len(ref.Lats)))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(len(ref.Lons)))
	if err != nil {
		return err
	}

	vtime, err := addCoord(ds, "time", timeDim, "hours since 1900-01-01 00:00:00.0")
	if err != nil {
		return err
	}
	if err := vtime.Attr("calendar").WriteBytes([]byte("standard")); err != nil {
		return err
	}
	var vlev netcdf.Var
	if len(levels) > 0 {
		if vlev, err = addCoord(ds, "plev", levDim, "Pa"); err != nil {
			return err
		}
	}
	vlat, err := addCoord(ds, "lat", latDim, "degrees_north")
	if err != nil {
		return err
	}
	vlon, err := addCoord(ds, "lon", lonDim, "degrees_east")
	if err != nil {
		return err
	}

	dataVars := make([]netcdf.Var, len(vars))
	for i, g := range vars {
		dims := []netcdf.Dim{timeDim}
		if len(g.Levels) > 0 {
			dims = append(dims, levDim)
		}
		dims = append(dims, latDim, lonDim)
		if dataVars[i], err = addData(ds, g, dims); err != nil {
			return err
		}
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("enddef: %w", err)
	}

	if err := vtime.WriteFloat64s(EncodeHours(ref.Times, TimeReference)); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	if len(levels) > 0 {
		if err := vlev.WriteFloat64s(levels); err != nil {
			return fmt.Errorf("write plev: %w", err)
		}
	}
	if err := vlat.WriteFloat64s(ref.Lats); err != nil {
		return fmt.Errorf("write lat: %w", err)
	}
	if err := vlon.WriteFloat64s(ref.Lons); err != nil {
		return fmt.Errorf("write lon: %w", err)
	}

	for i, g := range vars {
		flat := make([]float32, len(g.Data))
		for j, v := range g.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				flat[j] = FillValue
				continue
			}
			flat[j] = float32(v)
		}
		if err := dataVars[i].WriteFloat32s(flat); err != nil {
			return fmt.Errorf("write %s: %w", g.Name, err)
		}
	}
	return nil
}

func addData(ds netcdf.Dataset, g Gridded, dims []netcdf.Dim) (netcdf.Var, error) {
	v, err := ds.AddVar(g.Name, netcdf.FLOAT, dims)
	if err != nil {
		return netcdf.Var{}, fmt.Errorf("failed to add %s: %w", g.Name, err)
	}
	if g.Units != "" {
		if err := v.Attr("units").WriteBytes([]byte(g.Units)); err != nil {
			return netcdf.Var{}, err
		}
	}
	if g.LongName != "" {
		if err := v.Attr("long_name").WriteBytes([]byte(g.LongName)); err != nil {
			return netcdf.Var{}, err
		}
	}
	if err := v.Attr("_FillValue").WriteFloat32s([]float32{FillValue}); err != nil {
		return netcdf.Var{}, err
	}
	return v, nil
}

func addCoord(ds netcdf.Dataset, name string, dim netcdf.Dim, units string) (netcdf.Var, error) {
	v, err := ds.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dim})
	if err != nil {
		return netcdf.Var{}, fmt.Errorf("failed to add %s: %w", name, err)
	}
	if err := v.Attr("units").WriteBytes([]byte(units)); err != nil {
		return netcdf.Var{}, fmt.Errorf("failed to set %s units: %w", name, err)
	}
	return v, nil
}
