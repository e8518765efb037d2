package ncio

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteGridded_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ta.nc")
	times := []time.Time{
		time.Date(2021, 1, 16, 12, 0, 0, 0, time.UTC),
		time.Date(2021, 2, 15, 0, 0, 0, 0, time.UTC),
	}
	g := Gridded{
		Name:   "ta",
		Units:  "K",
		Times:  times,
		Levels: []float64{100000, 50000},
		Lats:   []float64{10, 0},
		Lons:   []float64{100, 101, 102},
		Data:   make([]float64, 2*2*2*3),
	}
	for i := range g.Data {
		g.Data[i] = float64(i)
	}
	g.Data[5] = math.NaN()
	require.NoError(t, WriteGridded(path, g))

	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()

	v, name, err := FindVar(ds, "missing", "ta")
	require.NoError(t, err)
	assert.Equal(t, "ta", name)

	dims, lens, err := Shape(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "plev", "lat", "lon"}, dims)
	assert.Equal(t, []uint64{2, 2, 2, 3}, lens)
	assert.Equal(t, 1, IndexOf(dims, LevelNames...))

	data, err := ReadAll(v)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(data[5]))
	assert.Equal(t, 23.0, data[23])

	slab, err := Slab(v, []uint64{1, 1, 0, 0}, []uint64{1, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{18, 19, 20, 21, 22, 23}, slab)

	units, ok := StringAttr(v, "units")
	require.True(t, ok)
	assert.Equal(t, "K", units)

	axis, err := ReadTimes(ds)
	require.NoError(t, err)
	assert.Equal(t, times, axis.Times)
	assert.Equal(t, CalendarStandard, axis.Calendar)

	lats, err := ReadAxis(ds, LatNames...)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0}, lats)

	_, _, err = FindVar(ds, "nope")
	assert.ErrorIs(t, err, ErrVarNotFound)
}

// TestSlab_PackedShorts checks scale_factor, add_offset and fill handling on int16 data.
func TestSlab_PackedShorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.nc")
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER)
	require.NoError(t, err)
	dim, _ := f.AddDim("x", 3)
	v, _ := f.AddVar("t2m", netcdf.SHORT, []netcdf.Dim{dim})
	require.NoError(t, v.Attr("scale_factor").WriteFloat64s([]float64{0.5}))
	require.NoError(t, v.Attr("add_offset").WriteFloat64s([]float64{250}))
	require.NoError(t, v.Attr("_FillValue").WriteInt16s([]int16{-32767}))
	require.NoError(t, f.EndDef())
	require.NoError(t, v.WriteInt16s([]int16{0, 100, -32767}))
	require.NoError(t, f.Close())

	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	require.NoError(t, err)
	defer func() { _ = ds.Close() }()
	rv, err := ds.Var("t2m")
	require.NoError(t, err)

	data, err := ReadAll(rv)
	require.NoError(t, err)
	assert.Equal(t, 250.0, data[0])
	assert.Equal(t, 300.0, data[1])
	assert.True(t, math.IsNaN(data[2]))
}

func TestDecodeTimes(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		units    string
		calendar string
		want     []time.Time
	}{
		{
			name:   "era5 hours",
			values: []float64{1061100, 1061106},
			units:  "hours since 1900-01-01 00:00:00.0",
			want: []time.Time{
				time.Date(2021, 1, 18, 12, 0, 0, 0, time.UTC),
				time.Date(2021, 1, 18, 18, 0, 0, 0, time.UTC),
			},
		},
		{
			name:     "noleap days",
			values:   []float64{0, 59, 365.5},
			units:    "days since 1850-01-01",
			calendar: "365_day",
			want: []time.Time{
				time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1850, 3, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1851, 1, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		{
			name:     "360 day",
			values:   []float64{15, 359, 360 * 3},
			units:    "days since 2015-01-01 00:00:00",
			calendar: "360_day",
			want: []time.Time{
				time.Date(2015, 1, 16, 0, 0, 0, 0, time.UTC),
				time.Date(2015, 12, 30, 0, 0, 0, 0, time.UTC),
				time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTimes(tt.values, tt.units, tt.calendar)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeTimes([]float64{1}, "fortnights since 2000-01-01", "")
	assert.Error(t, err)
	_, err = DecodeTimes([]float64{1}, "hours after 2000-01-01", "")
	assert.Error(t, err)
}
