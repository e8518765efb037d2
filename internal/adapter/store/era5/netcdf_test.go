package era5

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

var (
	testDay   = time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	testTimes = []time.Time{testDay, testDay.Add(6 * time.Hour)}
	testLats  = []float64{40.0, 39.7}
	testLons  = []float64{0.0, 0.3, 0.6}
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// writeDay creates minimal pressure-level and surface files for testDay.
func writeDay(t *testing.T, dir string) *Reader {
	t.Helper()
	r := NewReader(dir, DefaultConfig(), domain.DefaultConstants())
	nt, np := len(testTimes), len(testLats)*len(testLons)

	// Levels stored top first in hPa, as CDS delivers them.
	levels := []float64{500, 1000}
	temp := make([]float64, 0, nt*2*np)
	geo := make([]float64, 0, nt*2*np)
	for ti := 0; ti < nt; ti++ {
		temp = append(temp, constant(np, 250+float64(ti))...) // 500 hPa
		temp = append(temp, constant(np, 280+float64(ti))...) // 1000 hPa
		geo = append(geo, constant(np, 9.81*5500)...)
		geo = append(geo, constant(np, 981)...)
	}
	pl := ncio.Gridded{Times: testTimes, Levels: levels, Lats: testLats, Lons: testLons}
	tvar, zvar := pl, pl
	tvar.Name, tvar.Units, tvar.Data = "t", "K", temp
	zvar.Name, zvar.Units, zvar.Data = "z", "m**2 s**-2", geo
	require.NoError(t, ncio.WriteDataset(r.PressureFile(testDay), tvar, zvar))

	surface := []struct {
		name string
		val  float64
	}{
		{"t2m", 293.15}, {"d2m", 283.15}, {"sp", 101000}, {"msl", 101325},
		{"stl1", 281}, {"stl2", 282}, {"stl3", 283}, {"stl4", 284},
	}
	vars := make([]ncio.Gridded, 0, len(surface))
	for _, s := range surface {
		vars = append(vars, ncio.Gridded{
			Name: s.name, Times: testTimes, Lats: testLats, Lons: testLons, Data: constant(nt*np, s.val),
		})
	}
	require.NoError(t, ncio.WriteDataset(r.SurfaceFile(testDay), vars...))
	return r
}

// TestReader_PressureLevelsDescending checks that top-first files are returned surface first.
func TestReader_PressureLevelsDescending(t *testing.T) {
	r := writeDay(t, t.TempDir())

	f, err := r.Read(domain.Temperature, testTimes[1])
	require.NoError(t, err)
	assert.Equal(t, "TT", f.Name)
	assert.Equal(t, []float64{100000, 50000}, f.Levels)
	assert.Equal(t, domain.LevelsDescending, f.Order)
	assert.Equal(t, 281.0, f.At(0, 0, 0))
	assert.Equal(t, 251.0, f.At(1, 1, 2))
	assert.Equal(t, 2, f.NLat)
	assert.Equal(t, 3, f.NLon)
}

func TestReader_GeopotentialHeight(t *testing.T) {
	r := writeDay(t, t.TempDir())

	f, err := r.Read(domain.GeopotentialHeight, testDay)
	require.NoError(t, err)
	assert.Equal(t, "GHT", f.Name)
	assert.Equal(t, "m", f.Units)
	assert.InDelta(t, 100.0, f.At(0, 0, 0), 1e-3)
	assert.InDelta(t, 5500.0, f.At(1, 0, 0), 1e-2)
}

func TestReader_Derivations(t *testing.T) {
	r := writeDay(t, t.TempDir())

	rh, err := r.Read(domain.SurfaceRelativeHumidity, testDay)
	require.NoError(t, err)
	assert.InDelta(t, 52.5, rh.Data[0], 0.1)

	soil, err := r.Read(domain.SoilTemperature, testDay)
	require.NoError(t, err)
	assert.Equal(t, "ST", soil.Name)
	assert.Equal(t, 4, soil.NLev)
	assert.Equal(t, domain.DefaultSoilLayers, soil.Layers)
	assert.Equal(t, 284.0, soil.At(3, 1, 1))

	r.SetCodes(domain.SurfacePressure, []string{"msl"})
	ps, err := r.Read(domain.SurfacePressure, testDay)
	require.NoError(t, err)
	assert.Equal(t, 101325.0, ps.Data[0])
	assert.Equal(t, "PSFC", ps.Name)
}

func TestReader_SurfaceAndGrid(t *testing.T) {
	r := writeDay(t, t.TempDir())

	f, err := r.Read(domain.SurfaceTemperature, testDay)
	require.NoError(t, err)
	assert.Equal(t, 1, f.NLev)
	assert.InDelta(t, 293.15, f.Data[0], 1e-4)

	times, err := r.Times(testDay)
	require.NoError(t, err)
	assert.Equal(t, testTimes, times)
	assert.True(t, r.Available(testDay))
	assert.False(t, r.Available(testDay.AddDate(0, 0, 1)))

	g, err := r.Grid(testDay)
	require.NoError(t, err)
	assert.Equal(t, 40.0, g.StartLat)
	assert.InDelta(t, -0.3, g.DLat, 1e-9)
	assert.InDelta(t, 0.3, g.DLon, 1e-9)
}

func TestReader_MissingTime(t *testing.T) {
	r := writeDay(t, t.TempDir())
	_, err := r.Read(domain.SurfaceTemperature, testDay.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrTimeNotFound)

	_, err = r.Read(domain.SurfaceTemperature, testDay.AddDate(0, 0, 2))
	assert.Error(t, err)

	_, err = r.Read(domain.SkinTemperature, testDay)
	assert.ErrorIs(t, err, ncio.ErrVarNotFound)
}
