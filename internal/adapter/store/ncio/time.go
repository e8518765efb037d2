package ncio

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
)

// Calendar names understood by DecodeTimes.
const (
	CalendarStandard = "standard"
	CalendarNoLeap   = "noleap"
	Calendar360Day   = "360_day"
)

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
}

// TimeAxis is a decoded CF time coordinate.
type TimeAxis struct {
	Units    string
	Calendar string
	Times    []time.Time
}

// ReadTimes reads and decodes the time coordinate of a dataset.
func ReadTimes(ds netcdf.Dataset) (TimeAxis, error) {
	v, name, err := FindVar(ds, TimeNames...)
	if err != nil {
		return TimeAxis{}, err
	}
	values, err := ReadAll(v)
	if err != nil {
		return TimeAxis{}, fmt.Errorf("%s: %w", name, err)
	}
	units, ok := StringAttr(v, "units")
	if !ok {
		return TimeAxis{}, fmt.Errorf("%s: missing units attribute", name)
	}
	cal, _ := StringAttr(v, "calendar")
	times, err := DecodeTimes(values, units, cal)
	if err != nil {
		return TimeAxis{}, fmt.Errorf("%s: %w", name, err)
	}
	return TimeAxis{Units: units, Calendar: NormalizeCalendar(cal), Times: times}, nil
}

// NormalizeCalendar maps CF calendar aliases onto the names supported here.
func NormalizeCalendar(cal string) string {
	switch strings.ToLower(strings.TrimSpace(cal)) {
	case "noleap", "365_day":
		return CalendarNoLeap
	case "360_day":
		return Calendar360Day
	default:
		return CalendarStandard
	}
}

// DecodeTimes converts CF offsets ("hours since 1900-01-01 00:00:00.0") to
// UTC timestamps. Model calendars (noleap, 360_day) are mapped onto civil
// dates with the same year, month and day.
func DecodeTimes(values []float64, units, calendar string) ([]time.Time, error) {
	step, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	cal := NormalizeCalendar(calendar)
	out := make([]time.Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("missing time value at index %d", i)
		}
		offset := time.Duration(math.Round(v * float64(step)))
		switch cal {
		case CalendarStandard:
			out[i] = ref.Add(offset)
		case CalendarNoLeap:
			out[i] = addModelDays(ref, offset, 365)
		case Calendar360Day:
			out[i] = addModelDays(ref, offset, 360)
		}
	}
	return out, nil
}

// ParseTimeUnits splits "<unit> since <date>".
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("invalid time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h", "hrs":
		step = time.Hour
	case "minutes", "minute", "min", "mins":
		step = time.Minute
	case "seconds", "second", "s", "sec", "secs":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	refText := strings.TrimSpace(parts[1])
	refText = strings.TrimSuffix(refText, " UTC")
	refText = strings.TrimSuffix(refText, "Z")
	if i := strings.Index(refText, "."); i > 0 {
		refText = refText[:i]
	}
	for _, layout := range referenceLayouts {
		if ref, err := time.ParseInLocation(layout, refText, time.UTC); err == nil {
			return step, ref, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("invalid reference date %q", parts[1])
}

var noLeapMonthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// addModelDays adds an offset in a calendar of fixed-length years
// (365 without leap days, or 360 with twelve 30-day months).
func addModelDays(ref time.Time, offset time.Duration, yearDays int) time.Time {
	const day = 24 * time.Hour
	dayNum := func(y, m, d int) int {
		n := y * yearDays
		if yearDays == 360 {
			return n + (m-1)*30 + d - 1
		}
		for i := 0; i < m-1; i++ {
			n += noLeapMonthDays[i]
		}
		return n + d - 1
	}

	refDay := ref.Truncate(day)
	sinceMidnight := ref.Sub(refDay) + offset
	days := int(math.Floor(float64(sinceMidnight) / float64(day)))
	rest := sinceMidnight - time.Duration(days)*day

	total := dayNum(ref.Year(), int(ref.Month()), ref.Day()) + days
	year := total / yearDays
	doy := total % yearDays
	if doy < 0 {
		doy += yearDays
		year--
	}

	month, dom := 1, doy+1
	if yearDays == 360 {
		month, dom = doy/30+1, doy%30+1
	} else {
		for month <= 12 && dom > noLeapMonthDays[month-1] {
			dom -= noLeapMonthDays[month-1]
			month++
		}
	}
	return time.Date(year, time.Month(month), dom, 0, 0, 0, 0, time.UTC).Add(rest)
}

// EncodeHours converts timestamps to "hours since ref" offsets.
func EncodeHours(times []time.Time, ref time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(ref).Hours()
	}
	return out
}
