package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutsideCalendar is returned when a timestamp is not covered by a midpoint calendar.
	ErrOutsideCalendar = errors.New("timestamp outside midpoint calendar")
	// ErrDegenerateCalendar is returned when two bracketing anchors coincide.
	ErrDegenerateCalendar = errors.New("zero elapsed time between calendar anchors")
)

// Bracket identifies the two monthly signals surrounding a timestamp and the
// linear weight of the later one:
//
//	anomaly = signal[Low] + (signal[High] - signal[Low]) * Weight
//
// Month indices are 0-based (0 = January) and High == (Low+1) mod 12.
type Bracket struct {
	Low    int
	High   int
	Weight float64
	// Exact is set when the timestamp coincides with the midpoint of High.
	Exact bool
	// From and To are the anchors of Low and High.
	From time.Time
	To   time.Time
}

func (b Bracket) String() string {
	return fmt.Sprintf("%s->%s w=%.6f", time.Month(b.Low+1), time.Month(b.High+1), b.Weight)
}

// Locate finds the bracketing months of t in the calendar.
//
// The nearest anchor decides the window: when it lies before t the window is
// (nearest, nearest+1), otherwise (nearest-1, nearest). Calendar entry e maps
// to anomaly month (e-1) mod 12, which wraps December of the previous year
// and January of the next one onto the 12-month signal.
func Locate(cal MidpointCalendar, t time.Time) (Bracket, error) {
	t = t.UTC()
	if !cal.Contains(t) {
		return Bracket{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrOutsideCalendar,
			t.Format(time.RFC3339), cal[0].Format(time.RFC3339), cal[len(cal)-1].Format(time.RFC3339))
	}

	nearest := 0
	best := absDuration(cal[0].Sub(t))
	for i := 1; i < len(cal); i++ {
		if d := absDuration(cal[i].Sub(t)); d < best {
			nearest, best = i, d
		}
	}

	delta := cal[nearest].Sub(t)
	if delta == 0 {
		month := MonthIndex(nearest)
		return Bracket{
			Low:    mod12(month - 1),
			High:   month,
			Weight: 1,
			Exact:  true,
			From:   cal[nearest],
			To:     cal[nearest],
		}, nil
	}

	lo, hi := nearest-1, nearest
	if delta < 0 {
		lo, hi = nearest, nearest+1
	}

	span := cal[hi].Sub(cal[lo])
	if span <= 0 {
		return Bracket{}, fmt.Errorf("%w: %s and %s", ErrDegenerateCalendar,
			cal[lo].Format(time.RFC3339), cal[hi].Format(time.RFC3339))
	}

	weight := t.Sub(cal[lo]).Seconds() / span.Seconds()
	weight = clampUnit(weight)

	return Bracket{
		Low:    MonthIndex(lo),
		High:   MonthIndex(hi),
		Weight: weight,
		From:   cal[lo],
		To:     cal[hi],
	}, nil
}

// LocateTime builds the calendar of t's year and locates t in it.
func LocateTime(t time.Time) (Bracket, error) {
	t = t.UTC()
	return Locate(Midpoints(t.Year()), t)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func clampUnit(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
