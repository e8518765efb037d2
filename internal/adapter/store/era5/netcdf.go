// Package era5 reads ERA5 reanalysis fields from daily NetCDF files.
package era5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/pgw4era/internal/adapter/store/grid"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

// ErrTimeNotFound is returned when a daily file has no record at the requested instant.
var ErrTimeNotFound = errors.New("timestamp not found in ERA5 file")

// FileConfig defines the daily file naming. "{date}" expands to YYYYMMDD.
type FileConfig struct {
	PressurePattern string // E.g., "era5_daily_pl_{date}.nc".
	SurfacePattern  string // E.g., "era5_daily_sfc_{date}.nc".
}

// DefaultConfig returns the ERA5 daily file naming.
func DefaultConfig() FileConfig {
	return FileConfig{
		PressurePattern: "era5_daily_pl_{date}.nc",
		SurfacePattern:  "era5_daily_sfc_{date}.nc",
	}
}

// Reader loads ERA5 base fields. Pressure-level fields are returned in
// descending order (surface first), latitude rows as stored in the files.
type Reader struct {
	dataDir   string
	files     FileConfig
	constants domain.Constants
	codes     map[domain.VariableKind][]string // Overrides of the ERA5 codes.
}

// NewReader creates an ERA5 reader rooted at dataDir.
func NewReader(dataDir string, files FileConfig, constants domain.Constants) *Reader {
	return &Reader{
		dataDir:   dataDir,
		files:     files,
		constants: constants,
		codes:     make(map[domain.VariableKind][]string),
	}
}

// SetCodes overrides the ERA5 variable codes read for a kind.
func (r *Reader) SetCodes(kind domain.VariableKind, codes []string) {
	r.codes[kind] = append([]string(nil), codes...)
}

// PressureFile returns the pressure-level file of a day.
func (r *Reader) PressureFile(day time.Time) string {
	return r.path(r.files.PressurePattern, day)
}

// SurfaceFile returns the single-level file of a day.
func (r *Reader) SurfaceFile(day time.Time) string {
	return r.path(r.files.SurfacePattern, day)
}

func (r *Reader) path(pattern string, day time.Time) string {
	name := strings.ReplaceAll(pattern, "{date}", day.UTC().Format("20060102"))
	return filepath.Join(r.dataDir, name)
}

// Available reports whether both files of a day exist.
func (r *Reader) Available(day time.Time) bool {
	for _, p := range []string{r.PressureFile(day), r.SurfaceFile(day)} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Times lists the timestamps of a day's pressure-level file.
func (r *Reader) Times(day time.Time) ([]time.Time, error) {
	var times []time.Time
	err := ncio.WithFile(r.PressureFile(day), func(ds netcdf.Dataset) error {
		axis, err := ncio.ReadTimes(ds)
		if err != nil {
			return err
		}
		times = axis.Times
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("era5 times %s: %w", day.Format("2006-01-02"), err)
	}
	return times, nil
}

// Grid returns the horizontal grid of a day's files.
func (r *Reader) Grid(day time.Time) (domain.Grid, error) {
	return grid.FromFile(r.SurfaceFile(day))
}

// Read returns the base field of a variable at t, applying the variable's
// derivation (geopotential height, 2 m relative humidity, soil stacking).
func (r *Reader) Read(kind domain.VariableKind, t time.Time) (domain.Field, error) {
	v, ok := domain.Lookup(kind)
	if !ok {
		return domain.Field{}, fmt.Errorf("unknown variable kind %d", kind)
	}
	codes := v.ERA5
	if override, ok := r.codes[kind]; ok && len(override) > 0 {
		codes = override
	}
	t = t.UTC()

	switch v.Derive {
	case domain.DeriveGeopotentialHeight:
		z, err := r.ReadCode(codes[0], true, t)
		if err != nil {
			return domain.Field{}, err
		}
		f, err := domain.GeopotentialToHeight(z, r.constants.Gravity)
		if err != nil {
			return domain.Field{}, err
		}
		f.Name = v.Output
		return f, nil

	case domain.DeriveRelHumFromDewpoint:
		if len(codes) < 2 {
			return domain.Field{}, fmt.Errorf("%s needs dew point and temperature codes, got %v", v.Output, codes)
		}
		td, err := r.ReadCode(codes[0], false, t)
		if err != nil {
			return domain.Field{}, err
		}
		temp, err := r.ReadCode(codes[1], false, t)
		if err != nil {
			return domain.Field{}, err
		}
		return domain.RelHumField(temp, td, r.constants)

	case domain.DeriveSoilStack:
		if len(codes) != len(domain.DefaultSoilLayers) {
			return domain.Field{}, fmt.Errorf("%s needs %d layer codes, got %v", v.Output, len(domain.DefaultSoilLayers), codes)
		}
		slabs := make([]domain.Field, 0, len(codes))
		for _, code := range codes {
			s, err := r.ReadCode(code, false, t)
			if err != nil {
				return domain.Field{}, err
			}
			slabs = append(slabs, s)
		}
		return domain.StackSoilLayers(v.Output, domain.DefaultSoilLayers, slabs)

	default:
		f, err := r.ReadCode(codes[0], v.ThreeD, t)
		if err != nil {
			return domain.Field{}, err
		}
		f.Name = v.Output
		return f, nil
	}
}

// ReadCode reads one ERA5 variable at t from the pressure-level or
// single-level file of its day.
func (r *Reader) ReadCode(code string, threeD bool, t time.Time) (domain.Field, error) {
	path := r.SurfaceFile(t)
	if threeD {
		path = r.PressureFile(t)
	}
	var f domain.Field
	err := ncio.WithFile(path, func(ds netcdf.Dataset) error {
		axis, err := ncio.ReadTimes(ds)
		if err != nil {
			return err
		}
		idx := -1
		for i, ft := range axis.Times {
			if ft.Equal(t) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrTimeNotFound
		}

		v, _, err := ncio.FindVar(ds, code)
		if err != nil {
			return err
		}
		dims, lens, err := ncio.Shape(v)
		if err != nil {
			return err
		}
		if ncio.IndexOf(dims, ncio.TimeNames...) != 0 {
			return fmt.Errorf("expected time as first dimension, got %v", dims)
		}

		start := make([]uint64, len(lens))
		count := append([]uint64(nil), lens...)
		start[0], count[0] = uint64(idx), 1

		data, err := ncio.Slab(v, start, count)
		if err != nil {
			return err
		}
		units, _ := ncio.StringAttr(v, "units")

		nlat, nlon := int(lens[len(lens)-2]), int(lens[len(lens)-1])
		switch len(dims) {
		case 3:
			f = domain.NewSurfaceField(nlat, nlon, data)
		case 4:
			levels, err := ncio.ReadAxis(ds, append([]string{dims[1]}, ncio.LevelNames...)...)
			if err != nil {
				return err
			}
			f = domain.NewPressureField(ncio.ToPascal(levels), nlat, nlon, data)
			f = f.Reorder(domain.LevelsDescending)
		default:
			return fmt.Errorf("expected 3D or 4D variable, got %dD", len(dims))
		}
		f.Name = code
		f.Units = units
		return nil
	})
	if err != nil {
		return domain.Field{}, fmt.Errorf("era5 %s at %s (%s): %w", code, t.Format(time.RFC3339), path, err)
	}
	return f, nil
}
