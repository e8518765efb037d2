package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocate_MidJanuary checks the reference case of 15 January 00 UTC.
func TestLocate_MidJanuary(t *testing.T) {
	ts := time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC)
	b, err := Locate(Midpoints(2021), ts)
	require.NoError(t, err)

	assert.Equal(t, 11, b.Low, "December")
	assert.Equal(t, 0, b.High, "January")
	assert.InDelta(t, 29.5/31.0, b.Weight, 1e-12)
	assert.False(t, b.Exact)
	assert.Equal(t, time.Date(2020, 12, 16, 12, 0, 0, 0, time.UTC), b.From)
	assert.Equal(t, time.Date(2021, 1, 16, 12, 0, 0, 0, time.UTC), b.To)
}

// TestLocate_AfterNearestMidpoint checks the window that starts at the nearest anchor.
func TestLocate_AfterNearestMidpoint(t *testing.T) {
	ts := time.Date(2021, 6, 20, 0, 0, 0, 0, time.UTC)
	b, err := Locate(Midpoints(2021), ts)
	require.NoError(t, err)

	assert.Equal(t, 5, b.Low, "June")
	assert.Equal(t, 6, b.High, "July")
	assert.InDelta(t, 4.0/30.5, b.Weight, 1e-12)
}

// TestLocate_ExactMidpoint checks that a timestamp on an anchor selects that month alone.
func TestLocate_ExactMidpoint(t *testing.T) {
	ts := time.Date(2021, 3, 16, 12, 0, 0, 0, time.UTC)
	b, err := Locate(Midpoints(2021), ts)
	require.NoError(t, err)

	assert.True(t, b.Exact)
	assert.Equal(t, 2, b.High, "March")
	assert.Equal(t, 1, b.Low)
	assert.Equal(t, 1.0, b.Weight)
}

// TestLocate_YearBoundaries checks the wraparound entries at both ends of the year.
func TestLocate_YearBoundaries(t *testing.T) {
	cal := Midpoints(2021)

	b, err := Locate(cal, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 11, b.Low)
	assert.Equal(t, 0, b.High)
	assert.InDelta(t, 0.5, b.Weight, 1e-12)

	b, err = Locate(cal, time.Date(2021, 12, 31, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 11, b.Low)
	assert.Equal(t, 0, b.High)
	assert.InDelta(t, (15*24+6)/(31.0*24), b.Weight, 1e-12)
}

// TestLocate_Properties sweeps a year in 6-hourly steps.
func TestLocate_Properties(t *testing.T) {
	for _, year := range []int{2020, 2021} {
		cal := Midpoints(year)
		start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)
		for ts := start; ts.Before(end); ts = ts.Add(6 * time.Hour) {
			b, err := Locate(cal, ts)
			require.NoError(t, err, ts)
			require.GreaterOrEqual(t, b.Weight, 0.0, ts)
			require.LessOrEqual(t, b.Weight, 1.0, ts)
			require.Equal(t, (b.Low+1)%12, b.High, ts)
			require.False(t, ts.Before(b.From), ts)
			require.False(t, ts.After(b.To), ts)
		}
	}
}

// TestLocate_NonUTCInput checks that zoned timestamps are normalised to UTC.
func TestLocate_NonUTCInput(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	ts := time.Date(2021, 1, 15, 9, 0, 0, 0, jst)
	b, err := Locate(Midpoints(2021), ts)
	require.NoError(t, err)
	assert.InDelta(t, 29.5/31.0, b.Weight, 1e-12)
}

// TestLocate_OutsideCalendar checks the error for a timestamp of another year.
func TestLocate_OutsideCalendar(t *testing.T) {
	_, err := Locate(Midpoints(2020), time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutsideCalendar))
}

// TestLocate_DegenerateCalendar checks that coinciding anchors are rejected.
func TestLocate_DegenerateCalendar(t *testing.T) {
	cal := Midpoints(2021)
	cal[4] = cal[3]
	ts := cal[3].Add(-time.Hour)
	_, err := Locate(cal, ts)
	require.NoError(t, err)

	_, err = Locate(cal, cal[3].Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateCalendar)
}

func TestLocateTime(t *testing.T) {
	b, err := LocateTime(time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "December->January w=0.951613", b.String())
}
