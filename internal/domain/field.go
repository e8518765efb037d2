package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when two fields do not share a grid.
var ErrShapeMismatch = errors.New("field shapes differ")

// ErrLevelOrderMismatch is returned when fields are combined with opposite vertical orders.
var ErrLevelOrderMismatch = errors.New("vertical level orders differ")

// ErrLevelMissing is returned when a field lacks a requested pressure level.
var ErrLevelMissing = errors.New("pressure level missing")

// LevelOrder describes how the vertical axis of a Field is stored.
type LevelOrder int

const (
	// LevelsNone marks single-level (surface) fields.
	LevelsNone LevelOrder = iota
	// LevelsDescending stores the highest pressure first (surface to top, 1000 hPa -> 1 hPa).
	LevelsDescending
	// LevelsAscending stores the lowest pressure first (top to surface).
	LevelsAscending
)

func (o LevelOrder) String() string {
	switch o {
	case LevelsDescending:
		return "descending"
	case LevelsAscending:
		return "ascending"
	default:
		return "none"
	}
}

// OrderOf infers the vertical order of a pressure axis.
func OrderOf(levels []float64) LevelOrder {
	if len(levels) < 2 {
		return LevelsNone
	}
	if levels[0] > levels[len(levels)-1] {
		return LevelsDescending
	}
	return LevelsAscending
}

// Field is a gridded value array for one variable at one instant.
//
// Data is stored row-major as [level][lat][lon]. Surface fields have NLev == 1
// and Order == LevelsNone. Pressure fields carry their Levels (Pa) and the
// order those levels are stored in. Soil fields carry one SoilLayer per level.
type Field struct {
	Name   string
	Units  string
	NLev   int
	NLat   int
	NLon   int
	Levels []float64
	Order  LevelOrder
	Layers []SoilLayer
	Data   []float64
}

// NewField allocates a zeroed field.
func NewField(nlev, nlat, nlon int) Field {
	if nlev < 1 {
		nlev = 1
	}
	return Field{
		NLev: nlev,
		NLat: nlat,
		NLon: nlon,
		Data: make([]float64, nlev*nlat*nlon),
	}
}

// NewSurfaceField wraps a lat x lon slab.
func NewSurfaceField(nlat, nlon int, data []float64) Field {
	return Field{NLev: 1, NLat: nlat, NLon: nlon, Data: data}
}

// NewPressureField wraps a level x lat x lon array with its pressure axis.
// The order is inferred from the levels.
func NewPressureField(levels []float64, nlat, nlon int, data []float64) Field {
	return Field{
		NLev:   len(levels),
		NLat:   nlat,
		NLon:   nlon,
		Levels: append([]float64(nil), levels...),
		Order:  OrderOf(levels),
		Data:   data,
	}
}

// Size returns the number of values in the field.
func (f Field) Size() int {
	return f.NLev * f.NLat * f.NLon
}

// SlabSize returns the number of values in one horizontal slab.
func (f Field) SlabSize() int {
	return f.NLat * f.NLon
}

// Validate checks that the field metadata matches its data.
func (f Field) Validate() error {
	if f.NLev < 1 || f.NLat < 1 || f.NLon < 1 {
		return fmt.Errorf("invalid field dimensions %dx%dx%d", f.NLev, f.NLat, f.NLon)
	}
	if len(f.Data) != f.Size() {
		return fmt.Errorf("field has %d values, expected %d", len(f.Data), f.Size())
	}
	if len(f.Levels) > 0 && len(f.Levels) != f.NLev {
		return fmt.Errorf("field has %d levels, expected %d", len(f.Levels), f.NLev)
	}
	if len(f.Layers) > 0 && len(f.Layers) != f.NLev {
		return fmt.Errorf("field has %d soil layers, expected %d", len(f.Layers), f.NLev)
	}
	return nil
}

// SameShape reports whether two fields share dimensions.
func (f Field) SameShape(o Field) bool {
	return f.NLev == o.NLev && f.NLat == o.NLat && f.NLon == o.NLon
}

// Slab returns the horizontal slab at level k. The slice aliases Data.
func (f Field) Slab(k int) []float64 {
	n := f.SlabSize()
	return f.Data[k*n : (k+1)*n]
}

// At returns the value at level k, row i, column j.
func (f Field) At(k, i, j int) float64 {
	return f.Data[(k*f.NLat+i)*f.NLon+j]
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	out.Data = append([]float64(nil), f.Data...)
	if f.Levels != nil {
		out.Levels = append([]float64(nil), f.Levels...)
	}
	if f.Layers != nil {
		out.Layers = append([]SoilLayer(nil), f.Layers...)
	}
	return out
}

// Reorder returns a copy of the field stored in the target vertical order.
// Surface fields and fields already in the target order are copied unchanged.
func (f Field) Reorder(target LevelOrder) Field {
	out := f.Clone()
	if f.Order == LevelsNone || target == LevelsNone || f.Order == target || f.NLev < 2 {
		return out
	}
	n := f.SlabSize()
	for k := 0; k < f.NLev; k++ {
		copy(out.Data[k*n:(k+1)*n], f.Data[(f.NLev-1-k)*n:(f.NLev-k)*n])
	}
	for k := range out.Levels {
		out.Levels[k] = f.Levels[f.NLev-1-k]
	}
	out.Order = target
	return out
}

// SelectLevels returns a copy of a pressure field holding exactly the given
// levels (Pa), in the given order. Levels match within half a pascal.
func (f Field) SelectLevels(levels []float64) (Field, error) {
	if len(f.Levels) == 0 {
		return Field{}, fmt.Errorf("select levels: field %q has no pressure axis", f.Name)
	}
	n := f.SlabSize()
	out := f
	out.NLev = len(levels)
	out.Levels = append([]float64(nil), levels...)
	out.Order = OrderOf(levels)
	out.Data = make([]float64, len(levels)*n)
	for k, lev := range levels {
		src := -1
		for i, have := range f.Levels {
			if math.Abs(have-lev) <= 0.5 {
				src = i
				break
			}
		}
		if src < 0 {
			return Field{}, fmt.Errorf("%w: %g Pa not among %d levels of %q", ErrLevelMissing, lev, len(f.Levels), f.Name)
		}
		copy(out.Data[k*n:(k+1)*n], f.Slab(src))
	}
	return out, nil
}

// Float32 converts the data to single precision for serialization.
func (f Field) Float32() []float32 {
	out := make([]float32, len(f.Data))
	for i, v := range f.Data {
		out[i] = float32(v)
	}
	return out
}
