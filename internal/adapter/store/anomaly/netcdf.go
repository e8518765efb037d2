// Package anomaly provides access to monthly climate-change signal NetCDF files.
package anomaly

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/pgw4era/internal/adapter/store"
	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

// ErrMonthCount is returned for signal files that are not 12 or 14 months long.
var ErrMonthCount = errors.New("signal file must hold 12 or 14 months")

// FileConfig defines the expected signal file naming.
type FileConfig struct {
	// Pattern2D names single-level signal files, e.g. "{var}_CC_signal_ssp585_2070-2099_1985-2014.nc".
	Pattern2D string
	// Pattern3D names pressure-level signal files (vertically interpolated to the ERA5 levels).
	Pattern3D string
}

// DefaultConfig returns the file naming used by the signal builder.
func DefaultConfig() FileConfig {
	return FileConfig{
		Pattern2D: "{var}_CC_signal_ssp585_2070-2099_1985-2014.nc",
		Pattern3D: "{var}_CC_signal_ssp585_2070-2099_1985-2014_pinterp.nc",
	}
}

// Store provides cached access to monthly climate-change signals.
type Store struct {
	dataDir string
	files   FileConfig
	order   domain.LevelOrder // Vertical order of returned samples.
	cache   map[domain.VariableKind]*MonthlyField
	mu      sync.RWMutex // Protect cache.
}

// NewStore creates a signal store. Pressure-level samples are returned in
// the given vertical order.
func NewStore(dataDir string, files FileConfig, order domain.LevelOrder) *Store {
	if order == domain.LevelsNone {
		order = domain.LevelsDescending
	}
	return &Store{
		dataDir: dataDir,
		files:   files,
		order:   order,
		cache:   make(map[domain.VariableKind]*MonthlyField),
	}
}

// Load returns the signal of a variable. Metadata is read on first use; month
// data is read the first time each month is sampled.
func (s *Store) Load(kind domain.VariableKind) (store.MonthlySignal, error) {
	return s.LoadField(kind)
}

// LoadField is Load returning the concrete type.
func (s *Store) LoadField(kind domain.VariableKind) (*MonthlyField, error) {
	// Check cache first.
	s.mu.RLock()
	if mf, ok := s.cache[kind]; ok {
		s.mu.RUnlock()
		return mf, nil
	}
	s.mu.RUnlock()

	v, ok := domain.Lookup(kind)
	if !ok || !v.Perturbed() {
		return nil, fmt.Errorf("no climate-change signal for variable kind %d", kind)
	}

	path, err := s.Path(v)
	if err != nil {
		return nil, err
	}
	mf, err := openMonthly(path, v, s.order)
	if err != nil {
		return nil, fmt.Errorf("signal %s (%s): %w", v.Signal, path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[kind]; ok {
		return cached, nil
	}
	s.cache[kind] = mf
	return mf, nil
}

// Path resolves the signal file of a variable: first directly under the data
// directory, then anywhere below it.
func (s *Store) Path(v domain.Variable) (string, error) {
	pattern := s.files.Pattern2D
	if v.ThreeD {
		pattern = s.files.Pattern3D
	}
	name := strings.ReplaceAll(pattern, "{var}", v.Signal)

	direct := filepath.Join(s.dataDir, name)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	var match string
	errFound := errors.New("found")
	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			match = path
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return match, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to search signal directory %s: %w", s.dataDir, err)
	}
	return "", fmt.Errorf("signal file %s not found under %s", name, s.dataDir)
}

// MonthlyField is the 12-month signal of one variable. It is safe for
// concurrent use; samples are read-only once loaded.
type MonthlyField struct {
	Kind   domain.VariableKind
	Name   string
	Units  string
	Path   string
	Levels []float64         // Pa, in file order.
	Order  domain.LevelOrder // File order.
	Target domain.LevelOrder // Order of returned samples.
	NLev   int
	NLat   int
	NLon   int

	lats, lons []float64
	monthShift int // 1 when the file carries the December/January wraparound entries.
	dims       int // Rank of the data variable.

	once   [12]sync.Once
	months [12][]float32
	errs   [12]error
}

func openMonthly(path string, v domain.Variable, target domain.LevelOrder) (*MonthlyField, error) {
	mf := &MonthlyField{
		Kind:   v.Kind,
		Name:   v.Signal,
		Path:   path,
		Target: target,
		NLev:   1,
	}
	err := ncio.WithFile(path, func(ds netcdf.Dataset) error {
		dv, name, err := ncio.FindVar(ds, v.Signal, v.Signal+"_anom", "signal")
		if err != nil {
			return err
		}
		mf.Name = name
		mf.Units, _ = ncio.StringAttr(dv, "units")

		dims, lens, err := ncio.Shape(dv)
		if err != nil {
			return err
		}
		mf.dims = len(dims)

		want := 3
		if v.ThreeD {
			want = 4
		}
		if len(dims) != want {
			return fmt.Errorf("expected %dD variable, got %dD %v", want, len(dims), dims)
		}

		switch lens[0] {
		case 12:
		case 14:
			mf.monthShift = 1
		default:
			return fmt.Errorf("%w: got %d", ErrMonthCount, lens[0])
		}

		if mf.lats, err = ncio.ReadAxis(ds, append([]string{dims[len(dims)-2]}, ncio.LatNames...)...); err != nil {
			return err
		}
		if mf.lons, err = ncio.ReadAxis(ds, append([]string{dims[len(dims)-1]}, ncio.LonNames...)...); err != nil {
			return err
		}
		mf.NLat, mf.NLon = len(mf.lats), len(mf.lons)
		if uint64(mf.NLat) != lens[len(lens)-2] || uint64(mf.NLon) != lens[len(lens)-1] {
			return fmt.Errorf("coordinate axes %dx%d do not match data %v", mf.NLat, mf.NLon, lens)
		}

		if v.ThreeD {
			levels, err := ncio.ReadAxis(ds, append([]string{dims[1]}, ncio.LevelNames...)...)
			if err != nil {
				return err
			}
			if uint64(len(levels)) != lens[1] {
				return fmt.Errorf("level axis has %d values, data has %d", len(levels), lens[1])
			}
			mf.Levels = ncio.ToPascal(levels)
			mf.Order = domain.OrderOf(mf.Levels)
			mf.NLev = len(levels)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mf, nil
}

// Lats returns the latitude axis.
func (m *MonthlyField) Lats() []float64 { return m.lats }

// Lons returns the longitude axis.
func (m *MonthlyField) Lons() []float64 { return m.lons }

// Sample returns a copy of one month's signal (0 = January; other values wrap
// modulo 12). Pressure-level samples are returned in the store's target order.
func (m *MonthlyField) Sample(month int) (domain.Field, error) {
	month = ((month % 12) + 12) % 12
	data, err := m.month(month)
	if err != nil {
		return domain.Field{}, err
	}

	values := make([]float64, len(data))
	for i, v := range data {
		values[i] = float64(v)
	}

	var f domain.Field
	if m.NLev > 1 || len(m.Levels) > 0 {
		f = domain.NewPressureField(m.Levels, m.NLat, m.NLon, values)
		f.Order = m.Order
		f = f.Reorder(m.Target)
	} else {
		f = domain.NewSurfaceField(m.NLat, m.NLon, values)
	}
	f.Name = m.Name
	f.Units = m.Units
	return f, nil
}

// month reads one month once. Missing values are stored as 0.
func (m *MonthlyField) month(month int) ([]float32, error) {
	m.once[month].Do(func() {
		start := make([]uint64, m.dims)
		count := make([]uint64, m.dims)
		start[0] = uint64(month + m.monthShift)
		count[0] = 1
		i := 1
		if m.dims == 4 {
			count[1] = uint64(m.NLev)
			i = 2
		}
		count[i], count[i+1] = uint64(m.NLat), uint64(m.NLon)

		var raw []float64
		err := ncio.WithFile(m.Path, func(ds netcdf.Dataset) error {
			v, err := ds.Var(m.Name)
			if err != nil {
				return err
			}
			raw, err = ncio.Slab(v, start, count)
			return err
		})
		if err != nil {
			m.errs[month] = fmt.Errorf("signal %s month %d (%s): %w", m.Name, month+1, m.Path, err)
			return
		}

		out := make([]float32, len(raw))
		for j, v := range raw {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out[j] = float32(v)
		}
		m.months[month] = out
	})
	return m.months[month], m.errs[month]
}
