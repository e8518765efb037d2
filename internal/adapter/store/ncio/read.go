// Package ncio holds the NetCDF helpers shared by the ERA5, anomaly and
// reference-grid stores.
package ncio

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"
)

// ErrVarNotFound is returned when none of the candidate variable names exist.
var ErrVarNotFound = errors.New("variable not found")

// Common coordinate variable names.
var (
	LatNames   = []string{"lat", "latitude", "y"}
	LonNames   = []string{"lon", "longitude", "x"}
	LevelNames = []string{"plev", "level", "lev", "pressure_level", "isobaricInhPa"}
	TimeNames  = []string{"time", "valid_time", "t"}
)

// FindVar returns the first variable of ds whose name is in names.
func FindVar(ds netcdf.Dataset, names ...string) (netcdf.Var, string, error) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v, err := ds.Var(name); err == nil {
			return v, name, nil
		}
	}
	return netcdf.Var{}, "", fmt.Errorf("%w (tried: %v)", ErrVarNotFound, names)
}

// Shape returns the dimension names and lengths of a variable.
func Shape(v netcdf.Var) ([]string, []uint64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	lens := make([]uint64, len(dims))
	for i, d := range dims {
		if names[i], err = d.Name(); err != nil {
			return nil, nil, fmt.Errorf("failed to get dim%d name: %w", i, err)
		}
		if lens[i], err = d.Len(); err != nil {
			return nil, nil, fmt.Errorf("failed to get dim%d length: %w", i, err)
		}
	}
	return names, lens, nil
}

// ReadAxis reads the first 1D coordinate variable found among names.
func ReadAxis(ds netcdf.Dataset, names ...string) ([]float64, error) {
	v, name, err := FindVar(ds, names...)
	if err != nil {
		return nil, err
	}
	_, lens, err := Shape(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(lens) != 1 {
		return nil, fmt.Errorf("%s: expected 1D variable, got %dD", name, len(lens))
	}
	data, err := ReadAll(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, nil
}

// ReadAll reads a whole variable as float64, unpacking and masking it (see Slab).
func ReadAll(v netcdf.Var) ([]float64, error) {
	_, lens, err := Shape(v)
	if err != nil {
		return nil, err
	}
	start := make([]uint64, len(lens))
	return Slab(v, start, lens)
}

// Slab reads the hyperslab [start, start+count) of a variable as float64.
//
// Supports DOUBLE, FLOAT, INT and SHORT storage. scale_factor and add_offset
// are applied when present; values equal to _FillValue or missing_value
// become NaN.
func Slab(v netcdf.Var, start, count []uint64) ([]float64, error) {
	varType, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable type: %w", err)
	}

	total := uint64(1)
	for _, c := range count {
		total *= c
	}

	var raw []float64
	switch varType {
	case netcdf.DOUBLE:
		raw = make([]float64, total)
		if err := v.ReadFloat64Slice(raw, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float64: %w", err)
		}
	case netcdf.FLOAT:
		buf := make([]float32, total)
		if err := v.ReadFloat32Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float32: %w", err)
		}
		raw = make([]float64, total)
		for i, val := range buf {
			raw[i] = float64(val)
		}
	case netcdf.SHORT:
		buf := make([]int16, total)
		if err := v.ReadInt16Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int16: %w", err)
		}
		raw = make([]float64, total)
		for i, val := range buf {
			raw[i] = float64(val)
		}
	case netcdf.INT:
		buf := make([]int32, total)
		if err := v.ReadInt32Slice(buf, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int32: %w", err)
		}
		raw = make([]float64, total)
		for i, val := range buf {
			raw[i] = float64(val)
		}
	case netcdf.BYTE, netcdf.UBYTE, netcdf.CHAR, netcdf.USHORT, netcdf.UINT, netcdf.INT64, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported data type: %v (expected DOUBLE, FLOAT, INT, or SHORT)", varType)
	default:
		return nil, fmt.Errorf("unsupported data type: %v", varType)
	}

	PackingOf(v).Unpack(raw)
	return raw, nil
}

// Packing describes CF packing and missing-value attributes of a variable.
type Packing struct {
	Scale  float64
	Offset float64
	Fill   []float64 // Raw (packed) values that mark missing data.
}

// PackingOf reads scale_factor, add_offset, _FillValue and missing_value.
func PackingOf(v netcdf.Var) Packing {
	p := Packing{Scale: 1}
	if s, ok := FloatAttr(v, "scale_factor"); ok && s != 0 {
		p.Scale = s
	}
	if o, ok := FloatAttr(v, "add_offset"); ok {
		p.Offset = o
	}
	for _, name := range []string{"_FillValue", "missing_value"} {
		if fv, ok := FloatAttr(v, name); ok {
			p.Fill = append(p.Fill, fv)
		}
	}
	return p
}

// Unpack converts raw values in place: fill values become NaN and the rest
// are scaled and offset.
func (p Packing) Unpack(raw []float64) {
	for i, val := range raw {
		if p.isFill(val) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = val*p.Scale + p.Offset
	}
}

func (p Packing) isFill(val float64) bool {
	for _, fv := range p.Fill {
		if val == fv {
			return true
		}
		// float32 fill values read back through float64 may differ in the last bits.
		if fv != 0 && math.Abs(val-fv) <= math.Abs(fv)*1e-7 {
			return true
		}
	}
	return false
}

// FloatAttr returns a numeric attribute as float64.
func FloatAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	if a == (netcdf.Attr{}) {
		return 0, false
	}
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	// Try float64.
	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	// Try float32.
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	// Try int32.
	bufi := make([]int32, n)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	// Try int16.
	bufs := make([]int16, n)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// StringAttr returns a text attribute of a variable.
func StringAttr(v netcdf.Var, name string) (string, bool) {
	a := v.Attr(name)
	if a == (netcdf.Attr{}) {
		return "", false
	}
	n, err := a.Len()
	if err != nil || n == 0 {
		return "", false
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", false
	}
	// Strip a trailing NUL written by some tools.
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), true
}

// IndexOf returns the position of name in dims, or -1.
func IndexOf(dims []string, names ...string) int {
	for i, d := range dims {
		for _, n := range names {
			if d == n {
				return i
			}
		}
	}
	return -1
}

// libMu serialises calls into the netCDF-C library, which is not thread-safe.
var libMu sync.Mutex

// WithFile opens path read-only, runs fn and closes the file. Calls are
// serialised across goroutines.
func WithFile(path string, fn func(ds netcdf.Dataset) error) error {
	libMu.Lock()
	defer libMu.Unlock()

	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()
	return fn(ds)
}
