package usecase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
)

var (
	cmipLats = []float64{38, 39, 40}
	cmipLons = []float64{0, 1}
)

// monthly returns mid-month timestamps from (y0, m0) for n months.
func monthly(y0 int, m0 time.Month, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(y0, m0+time.Month(i), 15, 0, 0, 0, 0, time.UTC)
	}
	return out
}

// writeCMIP writes one archive file whose values are value(t, level).
func writeCMIP(t *testing.T, root, exp, variable string, m models.Model, name string,
	times []time.Time, levels []float64, value func(t time.Time, k int) float64) {
	t.Helper()
	dir := models.NewArchive(root).Dir(exp, variable, m)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	nlev := len(levels)
	if nlev == 0 {
		nlev = 1
	}
	np := len(cmipLats) * len(cmipLons)
	data := make([]float64, 0, len(times)*nlev*np)
	for _, ts := range times {
		for k := 0; k < nlev; k++ {
			v := value(ts, k)
			for p := 0; p < np; p++ {
				data = append(data, v)
			}
		}
	}
	g := ncio.Gridded{
		Name: variable, Units: "K", Times: times, Levels: levels,
		Lats: cmipLats, Lons: cmipLons, Data: data,
	}
	require.NoError(t, ncio.WriteGridded(filepath.Join(dir, variable+"_"+name+".nc"), g))
}
