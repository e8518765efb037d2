package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// VariableKind enumerates the physical variables handled by the pipeline.
type VariableKind int

const (
	KindUnknown VariableKind = iota
	RelativeHumidity
	Temperature
	UWind
	VWind
	GeopotentialHeight
	SurfaceRelativeHumidity
	SurfaceTemperature
	SurfaceUWind
	SurfaceVWind
	SurfacePressure
	SeaLevelPressure
	SkinTemperature
	SeaSurfaceTemperature
	SoilTemperature
	SoilMoisture
)

// Derivation selects how the base field of a variable is produced from the
// reanalysis codes it reads.
type Derivation int

const (
	// DeriveNone reads the single ERA5 code as is.
	DeriveNone Derivation = iota
	// DeriveGeopotentialHeight divides ERA5 geopotential by gravity.
	DeriveGeopotentialHeight
	// DeriveRelHumFromDewpoint computes RH from 2 m dew point and 2 m temperature.
	DeriveRelHumFromDewpoint
	// DeriveSoilStack concatenates the four ERA5 soil layers.
	DeriveSoilStack
)

// Bounds is a closed physical range applied after blending.
type Bounds struct {
	Min float64
	Max float64
}

// Apply clamps v to the bounds.
func (b Bounds) Apply(v float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}

// ValidRange masks implausible raw model values when building climatologies.
type ValidRange struct {
	Min, Max         float64
	MinOpen, MaxOpen bool
}

// Contains reports whether v lies inside the range.
func (r ValidRange) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if v < r.Min || (r.MinOpen && v == r.Min) {
		return false
	}
	if v > r.Max || (r.MaxOpen && v == r.Max) {
		return false
	}
	return true
}

// Variable describes one physical variable: the CMIP6 signal that perturbs
// it, the ERA5 codes its base field is read from, and how it is written.
type Variable struct {
	Kind   VariableKind
	Signal string   // CMIP6 short name of the climate-change signal; empty when unperturbed.
	ERA5   []string // ERA5 codes read for the base field.
	Output string   // WPS intermediate field name.
	Units  string   // Units of the written field.
	Desc   string
	ThreeD bool
	XLevel float64 // WPS level code for single-level fields.
	Clamp  *Bounds
	Valid  *ValidRange
	Derive Derivation
}

var relHumBounds = &Bounds{Min: 0, Max: 100}

var variables = map[VariableKind]Variable{
	RelativeHumidity: {
		Kind: RelativeHumidity, Signal: "hur", ERA5: []string{"r"}, Output: "RH", Units: "%",
		Desc: "Relative Humidity", ThreeD: true, Clamp: relHumBounds,
		Valid: &ValidRange{Min: 0, Max: 100},
	},
	Temperature: {
		Kind: Temperature, Signal: "ta", ERA5: []string{"t"}, Output: "TT", Units: "K",
		Desc: "Temperature", ThreeD: true,
		Valid: &ValidRange{Min: 0, Max: 400, MaxOpen: true},
	},
	UWind: {
		Kind: UWind, Signal: "ua", ERA5: []string{"u"}, Output: "UU", Units: "m s-1",
		Desc: "U", ThreeD: true,
		Valid: &ValidRange{Min: -500, Max: 500, MinOpen: true, MaxOpen: true},
	},
	VWind: {
		Kind: VWind, Signal: "va", ERA5: []string{"v"}, Output: "VV", Units: "m s-1",
		Desc: "V", ThreeD: true,
		Valid: &ValidRange{Min: -500, Max: 500, MinOpen: true, MaxOpen: true},
	},
	GeopotentialHeight: {
		Kind: GeopotentialHeight, Signal: "zg", ERA5: []string{"z"}, Output: "GHT", Units: "m",
		Desc: "Height", ThreeD: true, Derive: DeriveGeopotentialHeight,
		Valid: &ValidRange{Min: -1000, Max: 60000, MinOpen: true, MaxOpen: true},
	},
	SurfaceRelativeHumidity: {
		Kind: SurfaceRelativeHumidity, Signal: "hurs", ERA5: []string{"d2m", "t2m"}, Output: "RH",
		Units: "%", Desc: "Relative Humidity at 2 m", XLevel: SurfaceLevelCode, Clamp: relHumBounds,
		Derive: DeriveRelHumFromDewpoint, Valid: &ValidRange{Min: 0, Max: 100},
	},
	SurfaceTemperature: {
		Kind: SurfaceTemperature, Signal: "tas", ERA5: []string{"t2m"}, Output: "TT", Units: "K",
		Desc: "Temperature at 2 m", XLevel: SurfaceLevelCode,
	},
	SurfaceUWind: {
		Kind: SurfaceUWind, Signal: "uas", ERA5: []string{"u10"}, Output: "UU", Units: "m s-1",
		Desc: "U at 10 m", XLevel: SurfaceLevelCode,
	},
	SurfaceVWind: {
		Kind: SurfaceVWind, Signal: "vas", ERA5: []string{"v10"}, Output: "VV", Units: "m s-1",
		Desc: "V at 10 m", XLevel: SurfaceLevelCode,
	},
	SurfacePressure: {
		Kind: SurfacePressure, Signal: "ps", ERA5: []string{"sp"}, Output: "PSFC", Units: "Pa",
		Desc: "Surface Pressure", XLevel: SurfaceLevelCode,
	},
	SeaLevelPressure: {
		Kind: SeaLevelPressure, Signal: "psl", ERA5: []string{"msl"}, Output: "PMSL", Units: "Pa",
		Desc: "Sea-level Pressure", XLevel: SeaLevelLevelCode,
	},
	SkinTemperature: {
		Kind: SkinTemperature, Signal: "ts", ERA5: []string{"skt"}, Output: "SKINTEMP", Units: "K",
		Desc: "Skin temperature", XLevel: SurfaceLevelCode,
	},
	SeaSurfaceTemperature: {
		Kind: SeaSurfaceTemperature, ERA5: []string{"sst"}, Output: "SST", Units: "K",
		Desc: "Sea-Surface Temperature", XLevel: SurfaceLevelCode,
	},
	SoilTemperature: {
		Kind: SoilTemperature, ERA5: []string{"stl1", "stl2", "stl3", "stl4"}, Output: "ST", Units: "K",
		Desc: "Soil Temperature", XLevel: SurfaceLevelCode, Derive: DeriveSoilStack,
	},
	SoilMoisture: {
		Kind: SoilMoisture, ERA5: []string{"swvl1", "swvl2", "swvl3", "swvl4"}, Output: "SM",
		Units: "m3 m-3", Desc: "Soil Moisture", XLevel: SurfaceLevelCode, Derive: DeriveSoilStack,
	},
}

// DefaultPressureKinds is the order of the 3-D fields in an intermediate file.
var DefaultPressureKinds = []VariableKind{
	RelativeHumidity, Temperature, UWind, VWind, GeopotentialHeight,
}

// DefaultSurfaceKinds is the order of the perturbed 2-D fields in an intermediate file.
var DefaultSurfaceKinds = []VariableKind{
	SurfaceUWind, SurfaceVWind, SurfaceRelativeHumidity, SurfacePressure,
	SeaLevelPressure, SurfaceTemperature, SkinTemperature,
}

// Lookup returns the description of a variable kind.
func Lookup(kind VariableKind) (Variable, bool) {
	v, ok := variables[kind]
	if !ok {
		return Variable{}, false
	}
	v.ERA5 = append([]string(nil), v.ERA5...)
	return v, true
}

// MustLookup is Lookup for kinds known to exist.
func MustLookup(kind VariableKind) Variable {
	v, ok := Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("domain: unknown variable kind %d", kind))
	}
	return v
}

// ParseKind resolves a CMIP6 signal name (e.g. "hur", "tas") to its kind.
func ParseKind(name string) (VariableKind, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	for kind, v := range variables {
		if v.Signal != "" && v.Signal == name {
			return kind, nil
		}
	}
	switch name {
	case "sst":
		return SeaSurfaceTemperature, nil
	case "st":
		return SoilTemperature, nil
	case "sm":
		return SoilMoisture, nil
	}
	return KindUnknown, fmt.Errorf("unknown variable %q", name)
}

// ParseKinds resolves a list of signal names.
func ParseKinds(names []string) ([]VariableKind, error) {
	kinds := make([]VariableKind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// AllVariables returns the variable table sorted by kind.
func AllVariables() []Variable {
	out := make([]Variable, 0, len(variables))
	for kind := range variables {
		out = append(out, MustLookup(kind))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// ApplyClamp clamps every value of f in place according to the variable's bounds.
func (v Variable) ApplyClamp(f Field) {
	if v.Clamp == nil {
		return
	}
	for i, x := range f.Data {
		f.Data[i] = v.Clamp.Apply(x)
	}
}

// Perturbed reports whether the variable receives a climate-change signal.
func (v Variable) Perturbed() bool {
	return v.Signal != ""
}
