// Package intermediate writes and reads WPS intermediate files (format version 5)
// with a cylindrical equidistant projection.
package intermediate

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.ngs.io/pgw4era/internal/domain"
)

const (
	// Version is the intermediate format version written to every slab.
	Version = 5
	// ProjLatLon is the cylindrical equidistant projection code.
	ProjLatLon = 0
	// MissingValue replaces non-finite values in written slabs.
	MissingValue = -1.0e30
	// EarthRadius is the sphere radius (km) metgrid assumes for lat-lon input.
	EarthRadius = 6367.470
	// DefaultSource is the MAP_SOURCE written by the pipeline.
	DefaultSource = "ERA5"

	startLocation = "SWCORNER"
	dateLayout    = "2006-01-02_15:04:05"

	hdateLen    = 24
	sourceLen   = 32
	fieldLen    = 9
	unitsLen    = 25
	descLen     = 46
	startLocLen = 8
)

var (
	// ErrBadRecord is returned when a Fortran record marker is inconsistent.
	ErrBadRecord = errors.New("malformed intermediate record")
	// ErrUnsupported is returned for versions or projections this package does not read.
	ErrUnsupported = errors.New("unsupported intermediate file")
)

// Slab is one horizontal field at one level.
type Slab struct {
	Field string
	Units string
	Desc  string
	Level float64 // Pa for pressure levels, 200100 surface, 201300 sea level.
	Data  []float64
}

// Record is the content of one intermediate file: every slab valid at Date
// on a common grid.
type Record struct {
	Date              time.Time
	Source            string
	Grid              domain.Grid
	EarthRadius       float64
	WindEarthRelative bool
	Slabs             []Slab
}

// NewRecord creates an empty record for a timestamp.
func NewRecord(date time.Time, g domain.Grid) *Record {
	return &Record{
		Date:        date.UTC(),
		Source:      DefaultSource,
		Grid:        g,
		EarthRadius: EarthRadius,
	}
}

// Add appends the slabs of a field described by v.
func (r *Record) Add(v domain.Variable, f domain.Field) error {
	slabs, err := SlabsFromField(v, f)
	if err != nil {
		return err
	}
	for _, s := range slabs {
		if len(s.Data) != r.Grid.NLat*r.Grid.NLon {
			return fmt.Errorf("slab %s at %.0f: %d values on a %dx%d grid",
				s.Field, s.Level, len(s.Data), r.Grid.NLat, r.Grid.NLon)
		}
	}
	r.Slabs = append(r.Slabs, slabs...)
	return nil
}

// Lookup returns the slab with the given field name and level.
func (r *Record) Lookup(field string, level float64) (Slab, bool) {
	for _, s := range r.Slabs {
		if s.Field == field && s.Level == level {
			return s, true
		}
	}
	return Slab{}, false
}

// SlabsFromField splits a field into intermediate slabs. Pressure fields
// give one slab per level, soil fields one slab per layer named after the
// layer depth, surface fields a single slab at the variable's level code.
func SlabsFromField(v domain.Variable, f domain.Field) ([]Slab, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", v.Output, err)
	}
	base := Slab{Field: v.Output, Units: v.Units, Desc: v.Desc}

	switch {
	case len(f.Layers) > 0:
		out := make([]Slab, 0, f.NLev)
		for k, l := range f.Layers {
			s := base
			s.Field = l.FieldName(v.Output)
			s.Level = domain.SurfaceLevelCode
			s.Data = f.Slab(k)
			out = append(out, s)
		}
		return out, nil

	case len(f.Levels) > 0:
		out := make([]Slab, 0, f.NLev)
		for k, p := range f.Levels {
			s := base
			s.Level = p
			s.Data = f.Slab(k)
			out = append(out, s)
		}
		return out, nil

	default:
		if f.NLev != 1 {
			return nil, fmt.Errorf("%s: %d levels without a pressure or soil axis", v.Output, f.NLev)
		}
		s := base
		s.Level = v.XLevel
		if s.Level == 0 {
			s.Level = domain.SurfaceLevelCode
		}
		s.Data = f.Data
		return []Slab{s}, nil
	}
}

// FileName returns the WPS file name for a prefix and time, e.g. "ERA5:2021-01-15_06".
func FileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s:%s", prefix, t.UTC().Format("2006-01-02_15"))
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (string, time.Time, error) {
	base := filepath.Base(name)
	i := strings.LastIndex(base, ":")
	if i < 0 {
		return "", time.Time{}, fmt.Errorf("intermediate file name %q has no prefix", base)
	}
	t, err := time.Parse("2006-01-02_15", base[i+1:])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("intermediate file name %q: %w", base, err)
	}
	return base[:i], t, nil
}

func finite32(v float64) float32 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MissingValue
	}
	return float32(v)
}

// pad left-aligns s in a blank-filled field of n bytes, truncating if needed.
func pad(s string, n int) []byte {
	b := []byte(strings.Repeat(" ", n))
	copy(b, s)
	return b
}
