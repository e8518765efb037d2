package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/pgw4era/internal/adapter/intermediate"
	"go.ngs.io/pgw4era/internal/adapter/store"
	"go.ngs.io/pgw4era/internal/domain"
)

// ProcessorOptions configures intermediate file generation.
type ProcessorOptions struct {
	OutputDir string
	Prefix    string
	Overwrite bool
	Workers   int
	// StepHours keeps only timesteps whose hour is a multiple of it; 0 keeps all.
	StepHours     int
	PressureKinds []domain.VariableKind
	SurfaceKinds  []domain.VariableKind
	// Levels are the pressure levels (Pa) written for 3-D fields, in order.
	// Every base field must provide all of them; empty keeps the base levels.
	Levels []float64
	// Grid fixes the written grid; when nil it is read from the base files.
	Grid *domain.Grid
}

// TimestepResult reports one processed timestep.
type TimestepResult struct {
	Time    time.Time
	Path    string
	Written bool
	Bracket domain.Bracket
}

// Processor blends ERA5 base fields with the climate-change signal and
// writes one intermediate file per timestep.
type Processor struct {
	base    store.BaseReader
	signals store.SignalLoader
	opts    ProcessorOptions
	log     logrus.FieldLogger

	calMu     sync.Mutex
	calendars map[int]domain.MidpointCalendar
}

// NewProcessor creates a processor.
func NewProcessor(base store.BaseReader, signals store.SignalLoader, opts ProcessorOptions, log logrus.FieldLogger) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Prefix == "" {
		opts.Prefix = intermediate.DefaultSource
	}
	return &Processor{
		base:      base,
		signals:   signals,
		opts:      opts,
		log:       log,
		calendars: make(map[int]domain.MidpointCalendar),
	}
}

// Calendar returns the midpoint calendar of a year, building it once.
func (p *Processor) Calendar(year int) domain.MidpointCalendar {
	p.calMu.Lock()
	defer p.calMu.Unlock()
	cal, ok := p.calendars[year]
	if !ok {
		cal = domain.Midpoints(year)
		p.calendars[year] = cal
	}
	return cal
}

// Timesteps lists the base timestamps within [start, end], day by day.
func (p *Processor) Timesteps(start, end time.Time) ([]time.Time, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	var out []time.Time
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(end) {
		times, err := p.base.Times(day)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			if t.Before(start) || t.After(end) {
				continue
			}
			if p.opts.StepHours > 0 && t.UTC().Hour()%p.opts.StepHours != 0 {
				continue
			}
			out = append(out, t.UTC())
		}
		day = day.AddDate(0, 0, 1)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Run processes every timestep in [start, end] with a bounded worker pool.
// The first error cancels the remaining work.
func (p *Processor) Run(ctx context.Context, start, end time.Time) ([]TimestepResult, error) {
	times, err := p.Timesteps(start, end)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("no base timesteps between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	p.log.WithFields(logrus.Fields{
		"start":     times[0].Format(time.RFC3339),
		"end":       times[len(times)-1].Format(time.RFC3339),
		"timesteps": len(times),
		"workers":   p.opts.Workers,
	}).Info("processing timesteps")

	results := make([]TimestepResult, len(times))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, t := range times {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.ProcessTimestep(ctx, t)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessTimestep builds and writes the intermediate file of one timestamp.
// An existing file is kept unless overwrite is set.
func (p *Processor) ProcessTimestep(ctx context.Context, t time.Time) (TimestepResult, error) {
	t = t.UTC()
	res := TimestepResult{Time: t, Path: filepath.Join(p.opts.OutputDir, intermediate.FileName(p.opts.Prefix, t))}
	log := p.log.WithField("time", t.Format(time.RFC3339))

	if !p.opts.Overwrite {
		if _, err := os.Stat(res.Path); err == nil {
			log.WithField("file", res.Path).Debug("intermediate file exists, skipping")
			return res, nil
		}
	}

	b, err := domain.Locate(p.Calendar(t.Year()), t)
	if err != nil {
		return res, err
	}
	res.Bracket = b
	log = log.WithField("bracket", b.String())

	g, err := p.grid(t)
	if err != nil {
		return res, err
	}
	rec := intermediate.NewRecord(t, g)

	kinds := append(append([]domain.VariableKind(nil), p.opts.PressureKinds...), p.opts.SurfaceKinds...)
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		v := domain.MustLookup(kind)
		f, err := p.Field(kind, t, b, g)
		if err != nil {
			return res, err
		}
		if !g.Matches(f) {
			return res, fmt.Errorf("%s at %s: field %dx%d does not match grid %dx%d: %w",
				v.Output, t.Format(time.RFC3339), f.NLat, f.NLon, g.NLat, g.NLon, domain.ErrShapeMismatch)
		}
		if err := rec.Add(v, f); err != nil {
			return res, fmt.Errorf("%s at %s: %w", v.Output, t.Format(time.RFC3339), err)
		}
		log.WithField("var", v.Output).Debug("field ready")
	}

	path, written, err := intermediate.WriteFile(p.opts.OutputDir, p.opts.Prefix, *rec, p.opts.Overwrite)
	if err != nil {
		return res, err
	}
	res.Path, res.Written = path, written
	log.WithFields(logrus.Fields{"file": path, "slabs": len(rec.Slabs)}).Info("intermediate file written")
	return res, nil
}

// Field returns the base field of a variable at t with the time-interpolated
// signal added. Variables without a signal are returned unchanged. g is the
// grid of the base field.
func (p *Processor) Field(kind domain.VariableKind, t time.Time, b domain.Bracket, g domain.Grid) (domain.Field, error) {
	v := domain.MustLookup(kind)
	base, err := p.base.Read(kind, t)
	if err != nil {
		return domain.Field{}, err
	}
	if v.ThreeD && len(p.opts.Levels) > 0 {
		if base, err = base.SelectLevels(p.opts.Levels); err != nil {
			return domain.Field{}, fmt.Errorf("%s at %s: %w", v.Output, t.Format(time.RFC3339), err)
		}
	}
	if !v.Perturbed() {
		return base, nil
	}

	low, high, err := p.SignalPair(kind, b, g, base)
	if err != nil {
		return domain.Field{}, fmt.Errorf("%s at %s: %w", v.Signal, t.Format(time.RFC3339), err)
	}
	out, err := domain.BlendBracket(base, low, high, b, kind)
	if err != nil {
		return domain.Field{}, fmt.Errorf("%s at %s: %w", v.Output, t.Format(time.RFC3339), err)
	}
	out.Name = v.Output
	out.Units = v.Units
	return out, nil
}

// SignalPair samples the two bracketing months of a variable's signal,
// aligned with like: latitude rows flipped to its direction and pressure
// levels interpolated to its levels when they differ.
func (p *Processor) SignalPair(kind domain.VariableKind, b domain.Bracket, g domain.Grid, like domain.Field) (domain.Field, domain.Field, error) {
	sig, err := p.signals.Load(kind)
	if err != nil {
		return domain.Field{}, domain.Field{}, err
	}
	var pair [2]domain.Field
	for i, month := range []int{b.Low, b.High} {
		f, err := sig.Sample(month)
		if err != nil {
			return domain.Field{}, domain.Field{}, err
		}
		if f, err = align(f, sig.Lats(), g, like); err != nil {
			return domain.Field{}, domain.Field{}, err
		}
		pair[i] = f
	}
	return pair[0], pair[1], nil
}

func align(f domain.Field, lats []float64, g domain.Grid, like domain.Field) (domain.Field, error) {
	if len(lats) > 1 && (lats[len(lats)-1]-lats[0])*g.DLat < 0 {
		f = domain.FlipRows(f)
	}
	if len(like.Levels) > 0 && !sameLevels(f.Levels, like.Levels) {
		var err error
		if f, err = domain.InterpolatePressure(f, like.Levels); err != nil {
			return domain.Field{}, err
		}
	}
	return f, nil
}

func sameLevels(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (p *Processor) grid(t time.Time) (domain.Grid, error) {
	if p.opts.Grid != nil {
		return *p.opts.Grid, nil
	}
	g, err := p.base.Grid(t)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("base grid: %w", err)
	}
	return g, nil
}

// ErrNoKinds is returned when a processor has no variables to write.
var ErrNoKinds = errors.New("no variables configured")

// Validate checks the options before a run.
func (o ProcessorOptions) Validate() error {
	if len(o.PressureKinds)+len(o.SurfaceKinds) == 0 {
		return ErrNoKinds
	}
	if o.OutputDir == "" {
		return errors.New("output directory is not set")
	}
	return nil
}
