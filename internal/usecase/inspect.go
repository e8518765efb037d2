package usecase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.ngs.io/pgw4era/internal/adapter/interp"
	"go.ngs.io/pgw4era/internal/adapter/store"
	"go.ngs.io/pgw4era/internal/domain"
)

// ErrLevelNotFound is returned when a pressure level is not in a signal.
var ErrLevelNotFound = errors.New("pressure level not in signal")

// PointRequest asks for the signal of a variable at one place and time.
type PointRequest struct {
	Kind  domain.VariableKind
	Time  time.Time
	Lat   float64
	Lon   float64
	Level float64 // Pa; required for pressure-level variables.
}

// PointAnomaly is the time-interpolated signal at a point.
type PointAnomaly struct {
	Variable string
	Units    string
	Time     time.Time
	Lat      float64
	Lon      float64
	Level    float64
	Bracket  domain.Bracket
	Low      float64 // Signal of the lower month at the point.
	High     float64 // Signal of the upper month at the point.
	Value    float64
}

// Inspector evaluates signals at single points.
type Inspector struct {
	signals store.SignalLoader
}

// NewInspector creates an inspector.
func NewInspector(signals store.SignalLoader) *Inspector {
	return &Inspector{signals: signals}
}

// Anomaly returns the signal at the request point, bilinear in space and
// linear in time between the bracketing monthly midpoints.
func (in *Inspector) Anomaly(req PointRequest) (PointAnomaly, error) {
	v, ok := domain.Lookup(req.Kind)
	if !ok || !v.Perturbed() {
		return PointAnomaly{}, fmt.Errorf("no climate-change signal for variable kind %d", req.Kind)
	}
	t := req.Time.UTC()
	b, err := domain.LocateTime(t)
	if err != nil {
		return PointAnomaly{}, err
	}
	sig, err := in.signals.Load(req.Kind)
	if err != nil {
		return PointAnomaly{}, err
	}

	out := PointAnomaly{
		Variable: v.Signal, Units: v.Units, Time: t, Lat: req.Lat, Lon: req.Lon, Level: req.Level, Bracket: b,
	}
	if out.Low, err = sampleAt(sig, b.Low, req, v.ThreeD); err != nil {
		return PointAnomaly{}, err
	}
	if out.High, err = sampleAt(sig, b.High, req, v.ThreeD); err != nil {
		return PointAnomaly{}, err
	}
	out.Value = domain.InterpolateSignal([]float64{out.Low}, []float64{out.High}, b.Weight)[0]
	return out, nil
}

func sampleAt(sig store.MonthlySignal, month int, req PointRequest, threeD bool) (float64, error) {
	f, err := sig.Sample(month)
	if err != nil {
		return 0, err
	}
	k := 0
	if threeD {
		if k = levelIndex(f.Levels, req.Level); k < 0 {
			return 0, fmt.Errorf("%w: %g Pa", ErrLevelNotFound, req.Level)
		}
	}
	g, err := interp.NewGrid2D(sig.Lons(), sig.Lats(), f.Slab(k))
	if err != nil {
		return 0, err
	}
	return g.InterpolateAt(req.Lon, req.Lat)
}

func levelIndex(levels []float64, level float64) int {
	for i, l := range levels {
		if math.Abs(l-level) < 0.5 {
			return i
		}
	}
	return -1
}
