package domain

// Constants holds the physical constants used by the blending derivations.
type Constants struct {
	Gravity float64 `toml:"gravity"`  // Standard gravity in m s-2.
	TKelvin float64 `toml:"t_kelvin"` // 0 °C in Kelvin.
	BoltonA float64 `toml:"bolton_a"` // Magnus/Bolton coefficient a (dimensionless).
	BoltonB float64 `toml:"bolton_b"` // Magnus/Bolton coefficient b in °C.
}

// DefaultConstants returns the constants used throughout the ERA5 pipeline.
func DefaultConstants() Constants {
	return Constants{
		Gravity: 9.81,
		TKelvin: 273.15,
		BoltonA: 17.67,
		BoltonB: 243.5,
	}
}

// WPS level codes for surface fields.
const (
	SurfaceLevelCode  = 200100.0
	SeaLevelLevelCode = 201300.0
)

// ERA5PressureLevels is the 37-level ERA5 pressure list in Pa, ordered
// from the surface upward. The intermediate files are written in this order.
var ERA5PressureLevels = []float64{
	100000, 97500, 95000, 92500, 90000, 87500, 85000, 82500, 80000,
	77500, 75000, 70000, 65000, 60000, 55000, 50000, 45000, 40000,
	35000, 30000, 25000, 22500, 20000, 17500, 15000, 12500, 10000,
	7000, 5000, 3000, 2000, 1000, 700, 500, 300, 200, 100,
}

// CMIP6PressureLevels is the 19-level CMIP6 "plev19" axis in Pa.
var CMIP6PressureLevels = []float64{
	100000, 92500, 85000, 70000, 60000, 50000, 40000, 30000, 25000,
	20000, 15000, 10000, 7000, 5000, 3000, 2000, 1000, 500, 100,
}
