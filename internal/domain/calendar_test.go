package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMidpoints_StrictlyIncreasing checks the ordering of the 14 anchors for several years.
func TestMidpoints_StrictlyIncreasing(t *testing.T) {
	for _, year := range []int{1900, 1999, 2000, 2020, 2021, 2100} {
		cal := Midpoints(year)
		for i := 1; i < len(cal); i++ {
			assert.Truef(t, cal[i].After(cal[i-1]), "year %d: entry %d (%s) not after %d (%s)",
				year, i, cal[i], i-1, cal[i-1])
		}
	}
}

// TestMidpoints_InsideTheirMonth checks that each interior anchor falls in its own month.
func TestMidpoints_InsideTheirMonth(t *testing.T) {
	cal := Midpoints(2021)
	for i := 1; i <= 12; i++ {
		assert.Equal(t, 2021, cal[i].Year())
		assert.Equal(t, time.Month(i), cal[i].Month())
	}
	assert.Equal(t, time.Date(2020, 12, 16, 12, 0, 0, 0, time.UTC), cal[0])
	assert.Equal(t, time.Date(2022, 1, 16, 12, 0, 0, 0, time.UTC), cal[13])
	assert.Equal(t, 2021, cal.Year())
}

// TestMidpoints_MonthLengths checks centroids for 31-day, 30-day and February months.
func TestMidpoints_MonthLengths(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		entry int
		want  time.Time
	}{
		{"january", 2021, 1, time.Date(2021, 1, 16, 12, 0, 0, 0, time.UTC)},
		{"april", 2021, 4, time.Date(2021, 4, 16, 0, 0, 0, 0, time.UTC)},
		{"february", 2021, 2, time.Date(2021, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"leap february", 2020, 2, time.Date(2020, 2, 15, 12, 0, 0, 0, time.UTC)},
		{"century non-leap", 1900, 2, time.Date(1900, 2, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Midpoints(tt.year)[tt.entry])
		})
	}
}

// TestMonthIndex_Wraparound checks the mapping from calendar entries to anomaly months.
func TestMonthIndex_Wraparound(t *testing.T) {
	require.Equal(t, 11, MonthIndex(0))
	require.Equal(t, 0, MonthIndex(1))
	require.Equal(t, 11, MonthIndex(12))
	require.Equal(t, 0, MonthIndex(13))
	require.Equal(t, 11, mod12(-1))
	require.Equal(t, 0, mod12(12))
}
