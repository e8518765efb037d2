package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidWeight is returned for interpolation weights outside [0, 1].
var ErrInvalidWeight = errors.New("interpolation weight outside [0, 1]")

// InterpolateSignal returns low + (high-low)*weight as a new slice.
// Non-finite results are replaced by zero.
func InterpolateSignal(low, high []float64, weight float64) []float64 {
	diff := make([]float64, len(low))
	floats.SubTo(diff, high, low)
	out := make([]float64, len(low))
	floats.AddScaledTo(out, low, weight, diff)
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
		}
	}
	return out
}

// Blend adds the time-interpolated climate-change signal to a base field and
// applies the variable's physical bounds. The base field is not modified.
func Blend(base, low, high Field, weight float64, kind VariableKind) (Field, error) {
	v, ok := Lookup(kind)
	if !ok {
		return Field{}, fmt.Errorf("blend: unknown variable kind %d", kind)
	}
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return Field{}, fmt.Errorf("blend %s: %w: %v", v.Output, ErrInvalidWeight, weight)
	}
	if err := base.Validate(); err != nil {
		return Field{}, fmt.Errorf("blend %s: base: %w", v.Output, err)
	}
	for _, s := range []Field{low, high} {
		if err := s.Validate(); err != nil {
			return Field{}, fmt.Errorf("blend %s: signal: %w", v.Output, err)
		}
		if !base.SameShape(s) {
			return Field{}, fmt.Errorf("blend %s: %w: base %dx%dx%d, signal %dx%dx%d", v.Output, ErrShapeMismatch,
				base.NLev, base.NLat, base.NLon, s.NLev, s.NLat, s.NLon)
		}
		if base.Order != LevelsNone && s.Order != LevelsNone && base.Order != s.Order {
			return Field{}, fmt.Errorf("blend %s: %w: base %s, signal %s", v.Output, ErrLevelOrderMismatch,
				base.Order, s.Order)
		}
	}

	anomaly := InterpolateSignal(low.Data, high.Data, weight)

	out := base.Clone()
	floats.AddTo(out.Data, base.Data, anomaly)
	v.ApplyClamp(out)
	if out.Name == "" {
		out.Name = v.Output
	}
	return out, nil
}

// BlendBracket is Blend with the weight taken from a Bracket.
func BlendBracket(base, low, high Field, b Bracket, kind VariableKind) (Field, error) {
	return Blend(base, low, high, b.Weight, kind)
}

// GeopotentialToHeight converts geopotential (m2 s-2) to geopotential height (m).
func GeopotentialToHeight(f Field, gravity float64) (Field, error) {
	if gravity <= 0 || math.IsNaN(gravity) {
		return Field{}, fmt.Errorf("invalid gravity constant %v", gravity)
	}
	out := f.Clone()
	floats.Scale(1/gravity, out.Data)
	out.Units = "m"
	return out, nil
}
