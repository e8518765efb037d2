package usecase

import (
	"fmt"
	"time"

	"go.ngs.io/pgw4era/internal/adapter/store"
	"go.ngs.io/pgw4era/internal/domain"
)

var (
	fakeGrid   = domain.Grid{StartLat: 40, StartLon: 0, DLat: -1, DLon: 1, NLat: 2, NLon: 3}
	fakeLevels = []float64{100000, 85000, 50000}
)

// fakeBase serves constant base fields at 00 and 12 UTC of every day.
type fakeBase struct {
	values map[domain.VariableKind]float64
	hours  []int
}

func newFakeBase() *fakeBase {
	return &fakeBase{
		values: map[domain.VariableKind]float64{
			domain.Temperature:           280,
			domain.RelativeHumidity:      99.5,
			domain.SurfaceTemperature:    290,
			domain.SeaSurfaceTemperature: 285,
		},
		hours: []int{0, 12},
	}
}

func (b *fakeBase) Read(kind domain.VariableKind, t time.Time) (domain.Field, error) {
	val, ok := b.values[kind]
	if !ok {
		return domain.Field{}, fmt.Errorf("no base field for kind %d", kind)
	}
	v := domain.MustLookup(kind)
	n := fakeGrid.NLat * fakeGrid.NLon
	if v.ThreeD {
		data := make([]float64, len(fakeLevels)*n)
		for i := range data {
			data[i] = val
		}
		f := domain.NewPressureField(fakeLevels, fakeGrid.NLat, fakeGrid.NLon, data)
		f.Name = v.Output
		return f, nil
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = val
	}
	f := domain.NewSurfaceField(fakeGrid.NLat, fakeGrid.NLon, data)
	f.Name = v.Output
	return f, nil
}

func (b *fakeBase) Times(day time.Time) ([]time.Time, error) {
	out := make([]time.Time, 0, len(b.hours))
	for _, h := range b.hours {
		out = append(out, day.Add(time.Duration(h)*time.Hour))
	}
	return out, nil
}

func (b *fakeBase) Grid(time.Time) (domain.Grid, error) { return fakeGrid, nil }

// fakeSignal has value month+1 everywhere (January = 1, December = 12),
// plus rowStep per latitude row counted from the south.
type fakeSignal struct {
	levels  []float64
	lats    []float64
	rowStep float64
	scale   float64
}

func (s *fakeSignal) Sample(month int) (domain.Field, error) {
	month = ((month % 12) + 12) % 12
	nlat, nlon := len(s.lats), fakeGrid.NLon
	nlev := len(s.levels)
	if nlev == 0 {
		nlev = 1
	}
	data := make([]float64, nlev*nlat*nlon)
	for k := 0; k < nlev; k++ {
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				data[(k*nlat+i)*nlon+j] = s.scale*float64(month+1) + s.rowStep*float64(i)
			}
		}
	}
	if len(s.levels) > 0 {
		return domain.NewPressureField(s.levels, nlat, nlon, data), nil
	}
	return domain.NewSurfaceField(nlat, nlon, data), nil
}

func (s *fakeSignal) Lats() []float64 { return s.lats }
func (s *fakeSignal) Lons() []float64 { return fakeGrid.Lons() }

type fakeSignals map[domain.VariableKind]*fakeSignal

func (f fakeSignals) Load(kind domain.VariableKind) (store.MonthlySignal, error) {
	s, ok := f[kind]
	if !ok {
		return nil, fmt.Errorf("no signal for kind %d", kind)
	}
	return s, nil
}

func defaultSignals() fakeSignals {
	return fakeSignals{
		domain.Temperature:        {levels: fakeLevels, lats: fakeGrid.Lats(), scale: 1},
		domain.RelativeHumidity:   {levels: fakeLevels, lats: fakeGrid.Lats(), scale: 1},
		domain.SurfaceTemperature: {lats: fakeGrid.Lats(), scale: 1},
	}
}
