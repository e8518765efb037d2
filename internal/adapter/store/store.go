package store

import (
	"time"

	"go.ngs.io/pgw4era/internal/domain"
)

// SignalLoader is the interface for loading monthly climate-change signals.
type SignalLoader interface {
	// Load returns the 12-month signal of a variable, reading it on first use.
	Load(kind domain.VariableKind) (MonthlySignal, error)
}

// MonthlySignal is a loaded 12-month signal of one variable.
type MonthlySignal interface {
	// Sample returns the field of one month (0 = January).
	Sample(month int) (domain.Field, error)
	// Lats returns the latitude axis of the signal.
	Lats() []float64
	// Lons returns the longitude axis of the signal.
	Lons() []float64
}

// BaseReader is the interface for reading reanalysis base fields.
type BaseReader interface {
	// Read returns the base field of a variable at a timestamp.
	Read(kind domain.VariableKind, t time.Time) (domain.Field, error)
	// Times lists the timestamps available on a day.
	Times(day time.Time) ([]time.Time, error)
	// Grid returns the horizontal grid of the base fields.
	Grid(day time.Time) (domain.Grid, error)
}
