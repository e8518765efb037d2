package domain

import "time"

// MidpointCalendar holds the 14 representative instants used as anchors for
// monthly means of one year: mid-December of the previous year, the twelve
// mid-months of the year, and mid-January of the next year.
type MidpointCalendar [14]time.Time

// Midpoints computes the midpoint calendar for a year.
//
// Each midpoint is the exact centroid of its calendar month by elapsed
// seconds, so 31-day months centre on day 16 at 12:00 and February on day 15
// at 00:00 (12:00 in leap years).
func Midpoints(year int) MidpointCalendar {
	var cal MidpointCalendar
	for i := range cal {
		// Month 0 normalizes to December of year-1 and month 13 to January of year+1.
		start := time.Date(year, time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		cal[i] = start.Add(end.Sub(start) / 2)
	}
	return cal
}

// Year returns the calendar's central year.
func (c MidpointCalendar) Year() int {
	return c[1].Year()
}

// MonthIndex maps a calendar entry to its anomaly month index (0 = January).
func MonthIndex(entry int) int {
	return mod12(entry - 1)
}

// Contains reports whether t lies between the first and last anchors.
func (c MidpointCalendar) Contains(t time.Time) bool {
	return !t.Before(c[0]) && !t.After(c[len(c)-1])
}

func mod12(i int) int {
	return ((i % 12) + 12) % 12
}
