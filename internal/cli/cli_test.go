package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/pgw4era/internal/adapter/intermediate"
	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-01-15", time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2021-01-15T06", time.Date(2021, 1, 15, 6, 0, 0, 0, time.UTC)},
		{"2021-01-15T06:30", time.Date(2021, 1, 15, 6, 30, 0, 0, time.UTC)},
		{"2021-01-15T06:00:00+02:00", time.Date(2021, 1, 15, 4, 0, 0, 0, time.UTC)},
		{"2021-03", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := parseTime("15/01/2021")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	s, e, err := parseRange("2021-01-01", "2021-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), s)
	assert.Equal(t, time.Date(2021, 1, 2, 23, 59, 59, 0, time.UTC), e)

	_, e, err = parseRange("2021-01-01", "2021-01-02T06")
	require.NoError(t, err)
	assert.Equal(t, 6, e.Hour())

	_, _, err = parseRange("2021-01-02", "2021-01-01")
	assert.Error(t, err)
	_, _, err = parseRange("", "2021-01-01")
	assert.Error(t, err)
}

func TestVersionAndCalendar(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pgw4era v"+Version+"\n", out)

	out, err = run(t, "midpoints", "--year", "2021")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 14)
	assert.Contains(t, lines[0], "December")
	assert.Contains(t, lines[0], "2020-12-16T12:00:00Z")

	out, err = run(t, "bracket", "--time", "2021-01-15T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "December->January")

	_, err = run(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "pgw4era.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestWPSDryRun(t *testing.T) {
	cfg := writeConfig(t, t.TempDir(), "[run]\nspinup_days = 5\nchunk_days = 15\n")
	out, err := run(t, "--config", cfg, "wps", "--dry-run", "--start", "2012-01", "--end", "2012-02")
	require.NoError(t, err)
	assert.Equal(t, "2011-12-27 2012-01-11\n2012-01-11 2012-01-26\n2012-01-26 2012-02-01\n", out)

	bad := writeConfig(t, t.TempDir(), "[run]\nchunk_dayz = 15\n")
	_, err = run(t, "--config", bad, "wps", "--dry-run", "--start", "2012-01", "--end", "2012-02")
	assert.ErrorContains(t, err, "unknown keys")
}

// TestIntermediate runs the whole chain on a small ERA5 day and signal.
func TestIntermediate(t *testing.T) {
	dir := t.TempDir()
	era5Dir, anomDir, outDir := filepath.Join(dir, "era5"), filepath.Join(dir, "anom"), filepath.Join(dir, "out")
	lats, lons := []float64{40, 39.7}, []float64{0, 0.3, 0.6}
	day := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	times := []time.Time{day, day.Add(6 * time.Hour), day.Add(12 * time.Hour)}
	np := len(lats) * len(lons)

	fill := func(n int, v float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	var temp []float64
	for range times {
		temp = append(temp, fill(np, 250)...) // 500 hPa
		temp = append(temp, fill(np, 280)...) // 1000 hPa
	}
	require.NoError(t, ncio.WriteGridded(filepath.Join(era5Dir, "era5_daily_pl_20210115.nc"), ncio.Gridded{
		Name: "t", Units: "K", Times: times, Levels: []float64{500, 1000}, Lats: lats, Lons: lons, Data: temp,
	}))
	require.NoError(t, ncio.WriteGridded(filepath.Join(era5Dir, "era5_daily_sfc_20210115.nc"), ncio.Gridded{
		Name: "t2m", Units: "K", Times: times, Lats: lats, Lons: lons, Data: fill(len(times)*np, 290),
	}))

	files := anomaly.DefaultConfig()
	months := make([]time.Time, 12)
	for m := range months {
		months[m] = time.Date(2070, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
	}
	require.NoError(t, ncio.WriteGridded(filepath.Join(anomDir, strings.ReplaceAll(files.Pattern3D, "{var}", "ta")), ncio.Gridded{
		Name: "ta", Units: "K", Times: months, Levels: []float64{100000, 50000}, Lats: lats, Lons: lons,
		Data: fill(12*2*np, 1),
	}))
	require.NoError(t, ncio.WriteGridded(filepath.Join(anomDir, strings.ReplaceAll(files.Pattern2D, "{var}", "tas")), ncio.Gridded{
		Name: "tas", Units: "K", Times: months, Lats: lats, Lons: lons, Data: fill(12*np, 2),
	}))

	cfg := writeConfig(t, dir, fmt.Sprintf(`
[paths]
era5_dir = %q
anomaly_dir = %q
output_dir = %q

[run]
variables_3d = ["ta"]
variables_2d = ["tas"]
step_hours = 12

[levels]
pressure_pa = [100000, 50000]
`, era5Dir, anomDir, outDir))

	_, err := run(t, "--config", cfg, "intermediate", "--start", "2021-01-15", "--end", "2021-01-15", "-j", "2")
	require.NoError(t, err)

	written, err := filepath.Glob(filepath.Join(outDir, "ERA5:*"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(outDir, "ERA5:2021-01-15_00"),
		filepath.Join(outDir, "ERA5:2021-01-15_12"),
	}, written)

	rec, err := intermediate.ReadFile(written[1])
	require.NoError(t, err)
	assert.InDelta(t, -0.3, rec.Grid.DLat, 1e-6)
	assert.Equal(t, 40.0, rec.Grid.StartLat)

	tt, ok := rec.Lookup("TT", 100000)
	require.True(t, ok)
	assert.InDelta(t, 281.0, tt.Data[0], 1e-4)
	tt, ok = rec.Lookup("TT", 50000)
	require.True(t, ok)
	assert.InDelta(t, 251.0, tt.Data[5], 1e-4)
	tas, ok := rec.Lookup("TT", domain.SurfaceLevelCode)
	require.True(t, ok)
	assert.InDelta(t, 292.0, tas.Data[3], 1e-4)
}
