package usecase

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/pgw4era/internal/adapter/regrid"
	"go.ngs.io/pgw4era/internal/adapter/shell"
	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/domain"
)

var testModels = []models.Model{
	{Name: "MODEL-A", Member: "r1i1p1f1"},
	{Name: "MODEL-B", Member: "r2i1p1f1"},
}

func signalOptions(out string) SignalOptions {
	return SignalOptions{
		Historical:       "historical",
		Future:           "ssp585",
		HistoricalPeriod: Period{Start: 2000, End: 2001},
		FuturePeriod:     Period{Start: 2050, End: 2051},
		Levels:           []float64{100000, 85000, 50000},
		OutputDir:        out,
		Files:            anomaly.FileConfig{Pattern2D: "{var}_signal.nc", Pattern3D: "{var}_signal_pinterp.nc"},
		Workers:          2,
	}
}

// writeSurfaceArchive stores tas with a delta of 3+2k K for model k. The
// historical file also holds a month outside the period.
func writeSurfaceArchive(t *testing.T, root string) {
	for k, m := range testModels {
		offset := float64(2 * k)
		writeCMIP(t, root, "historical", "tas", m, "199912-200112", monthly(1999, time.December, 25), nil,
			func(ts time.Time, _ int) float64 {
				if ts.Year() == 1999 {
					return 1000
				}
				return 280 + float64(ts.Month())
			})
		writeCMIP(t, root, "ssp585", "tas", m, "205001-205112", monthly(2050, time.January, 24), nil,
			func(ts time.Time, _ int) float64 { return 283 + float64(ts.Month()) + offset })
	}
}

func TestSignalBuilder_Surface(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSurfaceArchive(t, root)
	log, _ := test.NewNullLogger()

	b := NewSignalBuilder(models.NewArchive(root), nil, signalOptions(out), log)
	paths, err := b.Run(context.Background(), []domain.VariableKind{domain.SurfaceTemperature}, testModels)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	v := domain.MustLookup(domain.SurfaceTemperature)
	assert.Equal(t, b.SignalPath(v), paths[0])
	assert.FileExists(t, b.DeltaPath(v, testModels[0]))

	sig, err := anomaly.NewStore(out, signalOptions(out).Files, domain.LevelsDescending).LoadField(domain.SurfaceTemperature)
	require.NoError(t, err)
	for _, month := range []int{0, 6, 11} {
		f, err := sig.Sample(month)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, f.Data[0], 1e-5, "month %d", month+1)
	}
	assert.Equal(t, cmipLats, sig.Lats())
}

// TestSignalBuilder_PressureLevels checks masking of invalid values and
// interpolation to the target levels.
func TestSignalBuilder_PressureLevels(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	m := testModels[0]
	levels := []float64{100000, 50000}
	writeCMIP(t, root, "historical", "ta", m, "200001-200112", monthly(2000, time.January, 24), levels,
		func(ts time.Time, k int) float64 {
			if ts.Year() == 2000 && ts.Month() == time.March {
				return 1e3 // Outside the valid range of ta.
			}
			return 250
		})
	writeCMIP(t, root, "ssp585", "ta", m, "205001-205112", monthly(2050, time.January, 24), levels,
		func(_ time.Time, k int) float64 { return 252 + 2*float64(k) })
	log, _ := test.NewNullLogger()

	b := NewSignalBuilder(models.NewArchive(root), nil, signalOptions(out), log)
	path, err := b.Build(context.Background(), domain.Temperature, []models.Model{m})
	require.NoError(t, err)
	assert.Contains(t, path, "ta_signal_pinterp.nc")

	sig, err := anomaly.NewStore(out, signalOptions(out).Files, domain.LevelsDescending).LoadField(domain.Temperature)
	require.NoError(t, err)
	assert.Equal(t, []float64{100000, 85000, 50000}, sig.Levels)

	f, err := sig.Sample(2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, f.At(0, 0, 0), 1e-5)
	assert.InDelta(t, 2.6, f.At(1, 1, 1), 1e-5)
	assert.InDelta(t, 4.0, f.At(2, 2, 0), 1e-5)
}

func TestSignalBuilder_Regrid(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSurfaceArchive(t, root)
	log, _ := test.NewNullLogger()

	rec := &shell.Recorder{Fn: func(c shell.Call) ([]byte, error) {
		data, err := os.ReadFile(c.Args[1])
		if err != nil {
			return nil, err
		}
		return nil, os.WriteFile(c.Args[2], data, 0o600)
	}}
	remap := regrid.NewRemapper("cdo", "era5_grid", rec, log)

	b := NewSignalBuilder(models.NewArchive(root), remap, signalOptions(out), log)
	_, err := b.Build(context.Background(), domain.SurfaceTemperature, testModels)
	require.NoError(t, err)

	require.Len(t, rec.Calls, 2)
	for _, c := range rec.Calls {
		assert.Equal(t, "cdo", c.Name)
		assert.Equal(t, "-remapbil,era5_grid", c.Args[0])
	}
	v := domain.MustLookup(domain.SurfaceTemperature)
	assert.FileExists(t, b.RegridPath(v, testModels[1]))
	assert.Contains(t, b.RegridPath(v, testModels[1]), "tas_2000-2001_2050-2051_historical-ssp585_MODEL-B_r2i1p1f1_delta.nc")

	// The signal file exists now, so nothing is rebuilt.
	_, err = b.Build(context.Background(), domain.SurfaceTemperature, testModels)
	require.NoError(t, err)
	assert.Len(t, rec.Calls, 2)
}

func TestSignalBuilder_Errors(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	log, _ := test.NewNullLogger()
	b := NewSignalBuilder(models.NewArchive(root), nil, signalOptions(out), log)

	_, err := b.Build(context.Background(), domain.SurfaceTemperature, testModels)
	assert.ErrorContains(t, err, "no files")

	_, err = b.Build(context.Background(), domain.SeaSurfaceTemperature, testModels)
	assert.Error(t, err)

	_, err = b.Build(context.Background(), domain.SurfaceTemperature, nil)
	assert.ErrorIs(t, err, domain.ErrNoMembers)

	opts := signalOptions(out)
	opts.FuturePeriod = Period{Start: 2060, End: 2050}
	_, err = NewSignalBuilder(models.NewArchive(root), nil, opts, log).Run(context.Background(), nil, testModels)
	assert.Error(t, err)
}
