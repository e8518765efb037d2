package domain

import (
	"fmt"
	"math"
)

// RelHumFromDewpoint returns relative humidity (%) from temperature and dew
// point in kelvin. The result is not clamped.
func RelHumFromDewpoint(t, td float64, c Constants) float64 {
	return RelHumCelsius(t-c.TKelvin, td-c.TKelvin, c)
}

// RelHumCelsius returns relative humidity (%) from temperature and dew point
// in °C using the Bolton (1980) saturation vapour pressure fit. The result is
// not clamped.
func RelHumCelsius(tc, tdc float64, c Constants) float64 {
	return 100 * math.Exp(c.BoltonA*tdc/(c.BoltonB+tdc)-c.BoltonA*tc/(c.BoltonB+tc))
}

// RelHumField derives a 2 m relative humidity field from 2 m temperature and
// dew point fields, clamped to [0, 100].
func RelHumField(t, td Field, c Constants) (Field, error) {
	if !t.SameShape(td) || len(t.Data) != len(td.Data) {
		return Field{}, fmt.Errorf("relative humidity: %w", ErrShapeMismatch)
	}
	out := NewField(t.NLev, t.NLat, t.NLon)
	out.Name = "RH"
	out.Units = "%"
	for i := range out.Data {
		out.Data[i] = relHumBounds.Apply(RelHumFromDewpoint(t.Data[i], td.Data[i], c))
	}
	return out, nil
}
