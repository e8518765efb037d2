package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

// Remapper regrids a file onto the base grid. It reports whether work was done.
type Remapper interface {
	Remap(ctx context.Context, in, out string) (bool, error)
}

// Period is an inclusive range of years.
type Period struct {
	Start, End int
}

func (p Period) String() string { return fmt.Sprintf("%d-%d", p.Start, p.End) }

// Bounds returns the first and last instants of the period.
func (p Period) Bounds() (time.Time, time.Time) {
	from := time.Date(p.Start, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(p.End+1, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	return from, to
}

// SignalOptions configures the climate-change signal builder.
type SignalOptions struct {
	Historical       string // Experiment of the reference climate, e.g. "historical".
	Future           string // Scenario, e.g. "ssp585".
	HistoricalPeriod Period
	FuturePeriod     Period
	// Levels are the target pressure levels (Pa) of 3-D signals.
	Levels []float64
	// OutputDir holds deltas/, regrid_ERA5/ and the final signal files.
	OutputDir string
	Files     anomaly.FileConfig
	Overwrite bool
	Workers   int
}

// Validate checks the options.
func (o SignalOptions) Validate() error {
	var errs []error
	if o.Historical == "" || o.Future == "" {
		errs = append(errs, errors.New("signal needs a historical and a future experiment"))
	}
	for _, p := range []Period{o.HistoricalPeriod, o.FuturePeriod} {
		if p.Start == 0 || p.End < p.Start {
			errs = append(errs, fmt.Errorf("invalid period %s", p))
		}
	}
	if o.OutputDir == "" {
		errs = append(errs, errors.New("signal output directory is not set"))
	}
	return errors.Join(errs...)
}

// SignalBuilder derives the monthly climate-change signal of each variable
// from a CMIP6 archive: per-model annual cycles over the two periods, their
// difference regridded to the base grid, and the ensemble mean.
type SignalBuilder struct {
	archive *models.Archive
	remap   Remapper // Nil keeps the deltas on the model grids.
	opts    SignalOptions
	log     logrus.FieldLogger
}

// NewSignalBuilder creates a builder.
func NewSignalBuilder(archive *models.Archive, remap Remapper, opts SignalOptions, log logrus.FieldLogger) *SignalBuilder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Files.Pattern2D == "" && opts.Files.Pattern3D == "" {
		opts.Files = anomaly.DefaultConfig()
	}
	return &SignalBuilder{archive: archive, remap: remap, opts: opts, log: log}
}

// DeltaPath returns the per-model delta file on the model grid.
func (b *SignalBuilder) DeltaPath(v domain.Variable, m models.Model) string {
	return filepath.Join(b.opts.OutputDir, "deltas", m.ID(), b.deltaName(v)+"_delta.nc")
}

// RegridPath returns the per-model delta file on the base grid.
func (b *SignalBuilder) RegridPath(v domain.Variable, m models.Model) string {
	return filepath.Join(b.opts.OutputDir, "regrid_ERA5", b.deltaName(v)+"_"+m.ID()+"_delta.nc")
}

// SignalPath returns the ensemble signal file, named as the anomaly store reads it.
func (b *SignalBuilder) SignalPath(v domain.Variable) string {
	pattern := b.opts.Files.Pattern2D
	if v.ThreeD {
		pattern = b.opts.Files.Pattern3D
	}
	return filepath.Join(b.opts.OutputDir, strings.ReplaceAll(pattern, "{var}", v.Signal))
}

func (b *SignalBuilder) deltaName(v domain.Variable) string {
	return fmt.Sprintf("%s_%s_%s_%s-%s", v.Signal, b.opts.HistoricalPeriod, b.opts.FuturePeriod,
		b.opts.Historical, b.opts.Future)
}

// Run builds the signal of every kind and returns the written files.
func (b *SignalBuilder) Run(ctx context.Context, kinds []domain.VariableKind, ms []models.Model) ([]string, error) {
	if err := b.opts.Validate(); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		p, err := b.Build(ctx, kind, ms)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Build writes the ensemble-mean signal of one variable. Models are
// processed in parallel; an existing signal file is kept unless overwrite
// is set.
func (b *SignalBuilder) Build(ctx context.Context, kind domain.VariableKind, ms []models.Model) (string, error) {
	v, ok := domain.Lookup(kind)
	if !ok || !v.Perturbed() {
		return "", fmt.Errorf("no climate-change signal for variable kind %d", kind)
	}
	if len(ms) == 0 {
		return "", fmt.Errorf("signal %s: %w", v.Signal, domain.ErrNoMembers)
	}
	out := b.SignalPath(v)
	log := b.log.WithFields(logrus.Fields{"var": v.Signal, "file": out})
	if !b.opts.Overwrite {
		if _, err := os.Stat(out); err == nil {
			log.Info("signal file exists, skipping")
			return out, nil
		}
	}

	deltas := make([]string, len(ms))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, m := range ms {
		g.Go(func() error {
			p, err := b.ModelDelta(gctx, v, m)
			if err != nil {
				return err
			}
			deltas[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if err := b.writeEnsemble(v, deltas, out); err != nil {
		return "", fmt.Errorf("signal %s: %w", v.Signal, err)
	}
	log.WithField("models", len(ms)).Info("signal written")
	return out, nil
}

// ModelDelta writes the future minus historical annual cycle of one model
// and regrids it. It returns the file the ensemble is built from.
func (b *SignalBuilder) ModelDelta(ctx context.Context, v domain.Variable, m models.Model) (string, error) {
	log := b.log.WithFields(logrus.Fields{"var": v.Signal, "model": m.ID()})
	path := b.DeltaPath(v, m)

	if _, err := os.Stat(path); err != nil || b.opts.Overwrite {
		hist, axes, err := b.Cycle(b.opts.Historical, v, m, b.opts.HistoricalPeriod)
		if err != nil {
			return "", err
		}
		fut, futAxes, err := b.Cycle(b.opts.Future, v, m, b.opts.FuturePeriod)
		if err != nil {
			return "", err
		}
		if len(axes.Lats) != len(futAxes.Lats) || len(axes.Lons) != len(futAxes.Lons) ||
			len(axes.Levels) != len(futAxes.Levels) {
			return "", fmt.Errorf("%s %s: experiments are on different grids: %w", v.Signal, m.ID(), domain.ErrShapeMismatch)
		}
		delta, err := domain.Delta(fut, hist)
		if err != nil {
			return "", fmt.Errorf("%s %s: %w", v.Signal, m.ID(), err)
		}
		if err := ncio.WriteGridded(path, cycleGridded(v, axes, b.opts.FuturePeriod.Start, delta)); err != nil {
			return "", err
		}
		log.WithField("file", path).Info("model delta written")
	}

	if b.remap == nil {
		return path, nil
	}
	out := b.RegridPath(v, m)
	if b.opts.Overwrite {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	if _, err := b.remap.Remap(ctx, path, out); err != nil {
		return "", fmt.Errorf("%s %s: %w", v.Signal, m.ID(), err)
	}
	return out, nil
}

// Cycle returns the monthly annual cycle of one model and experiment over
// a period, masking values outside the variable's valid range. The returned
// Gridded carries the axes only.
func (b *SignalBuilder) Cycle(exp string, v domain.Variable, m models.Model, p Period) (domain.AnnualCycle, ncio.Gridded, error) {
	files, err := b.archive.Files(exp, v.Signal, m)
	if err != nil {
		return domain.AnnualCycle{}, ncio.Gridded{}, err
	}
	if len(files) == 0 {
		return domain.AnnualCycle{}, ncio.Gridded{}, fmt.Errorf("%s %s %s: no files in %s",
			exp, v.Signal, m.ID(), b.archive.Dir(exp, v.Signal, m))
	}

	from, to := p.Bounds()
	var axes ncio.Gridded
	var times []time.Time
	var steps [][]float64
	for i, f := range files {
		g, err := ncio.ReadGridded(f, v.Signal)
		if err != nil {
			return domain.AnnualCycle{}, ncio.Gridded{}, err
		}
		if i == 0 {
			axes = ncio.Gridded{Name: g.Name, Units: g.Units, LongName: g.LongName, Levels: g.Levels, Lats: g.Lats, Lons: g.Lons}
		} else if g.StepSize() != axes.StepSize() {
			return domain.AnnualCycle{}, ncio.Gridded{}, fmt.Errorf("%s: %w", f, domain.ErrShapeMismatch)
		}
		ts, ss := g.Select(from, to)
		times = append(times, ts...)
		steps = append(steps, ss...)
	}
	if len(times) == 0 {
		return domain.AnnualCycle{}, ncio.Gridded{}, fmt.Errorf("%s %s %s: no timesteps in %s", exp, v.Signal, m.ID(), p)
	}

	cycle, err := domain.MonthlyMeans(times, steps, v.Valid)
	if err != nil {
		return domain.AnnualCycle{}, ncio.Gridded{}, fmt.Errorf("%s %s %s: %w", exp, v.Signal, m.ID(), err)
	}
	b.log.WithFields(logrus.Fields{
		"var": v.Signal, "model": m.ID(), "experiment": exp, "period": p.String(), "timesteps": len(times),
	}).Debug("annual cycle computed")
	return cycle, axes, nil
}

// writeEnsemble averages the member deltas and, for pressure-level
// variables, interpolates the mean to the target levels.
func (b *SignalBuilder) writeEnsemble(v domain.Variable, deltas []string, out string) error {
	var axes ncio.Gridded
	members := make([]domain.AnnualCycle, 0, len(deltas))
	for i, p := range deltas {
		g, err := ncio.ReadGridded(p, v.Signal)
		if err != nil {
			return err
		}
		if len(g.Times) != 12 {
			return fmt.Errorf("%s: %d months, expected 12", p, len(g.Times))
		}
		if i == 0 {
			axes = g
		} else if len(g.Lats) != len(axes.Lats) || len(g.Lons) != len(axes.Lons) || len(g.Levels) != len(axes.Levels) {
			return fmt.Errorf("%s: member grid differs from %s: %w", p, deltas[0], domain.ErrShapeMismatch)
		}
		var c domain.AnnualCycle
		for m := range c {
			c[m] = g.Step(m)
		}
		members = append(members, c)
	}

	mean, err := domain.EnsembleMeanCycle(members)
	if err != nil {
		return err
	}
	if v.ThreeD && len(b.opts.Levels) > 0 {
		for m := range mean {
			f := domain.NewPressureField(axes.Levels, len(axes.Lats), len(axes.Lons), mean[m])
			pf, err := domain.InterpolatePressure(f, b.opts.Levels)
			if err != nil {
				return fmt.Errorf("month %d: %w", m+1, err)
			}
			mean[m] = pf.Data
		}
		axes.Levels = b.opts.Levels
	}
	return ncio.WriteGridded(out, cycleGridded(v, axes, b.opts.FuturePeriod.Start, mean))
}

// cycleGridded lays an annual cycle out as 12 monthly timesteps of year.
func cycleGridded(v domain.Variable, axes ncio.Gridded, year int, c domain.AnnualCycle) ncio.Gridded {
	g := ncio.Gridded{
		Name:     v.Signal,
		Units:    axes.Units,
		LongName: axes.LongName,
		Levels:   axes.Levels,
		Lats:     axes.Lats,
		Lons:     axes.Lons,
		Times:    make([]time.Time, 12),
	}
	for m := range c {
		g.Times[m] = time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC)
		g.Data = append(g.Data, c[m]...)
	}
	return g
}
