package domain

import "fmt"

// SoilLayer is a soil depth interval in centimetres.
type SoilLayer struct {
	Top    int
	Bottom int
}

// Code returns the six-digit WPS depth code, e.g. "007028".
func (l SoilLayer) Code() string {
	return fmt.Sprintf("%03d%03d", l.Top, l.Bottom)
}

// FieldName returns the WPS field name for the layer, e.g. "ST007028".
func (l SoilLayer) FieldName(prefix string) string {
	return prefix + l.Code()
}

// DefaultSoilLayers are the four ERA5 land-surface layers.
var DefaultSoilLayers = []SoilLayer{
	{Top: 0, Bottom: 7},
	{Top: 7, Bottom: 28},
	{Top: 28, Bottom: 100},
	{Top: 100, Bottom: 289},
}

// StackSoilLayers concatenates per-layer surface slabs into one multi-layer
// field, shallowest layer first.
func StackSoilLayers(name string, layers []SoilLayer, slabs []Field) (Field, error) {
	if len(layers) == 0 {
		return Field{}, fmt.Errorf("stack %s: no soil layers", name)
	}
	if len(layers) != len(slabs) {
		return Field{}, fmt.Errorf("stack %s: %d layers but %d slabs", name, len(layers), len(slabs))
	}
	first := slabs[0]
	out := NewField(len(layers), first.NLat, first.NLon)
	out.Name = name
	out.Units = first.Units
	out.Layers = append([]SoilLayer(nil), layers...)
	n := out.SlabSize()
	for k, s := range slabs {
		if s.NLev != 1 || s.NLat != first.NLat || s.NLon != first.NLon || len(s.Data) != n {
			return Field{}, fmt.Errorf("stack %s: layer %s: %w", name, layers[k].Code(), ErrShapeMismatch)
		}
		copy(out.Data[k*n:(k+1)*n], s.Data)
	}
	return out, nil
}

// SplitSoilLayers returns one named surface field per layer of a stacked field.
func SplitSoilLayers(f Field, prefix string) ([]Field, error) {
	if len(f.Layers) != f.NLev {
		return nil, fmt.Errorf("split %s: field has %d levels and %d soil layers", f.Name, f.NLev, len(f.Layers))
	}
	out := make([]Field, 0, f.NLev)
	for k, l := range f.Layers {
		s := NewSurfaceField(f.NLat, f.NLon, append([]float64(nil), f.Slab(k)...))
		s.Name = l.FieldName(prefix)
		s.Units = f.Units
		out = append(out, s)
	}
	return out, nil
}
