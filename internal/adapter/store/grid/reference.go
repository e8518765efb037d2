// Package grid derives the horizontal grid descriptor written to intermediate
// files from a reference NetCDF file.
package grid

import (
	"fmt"
	"sync"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/pgw4era/internal/adapter/store/ncio"
	"go.ngs.io/pgw4era/internal/domain"
)

// axisTolerance is the largest spacing irregularity accepted, in degrees.
const axisTolerance = 1e-4

// Store provides the grid of a reference file, loaded on first access.
type Store struct {
	refPath string // Path to a reference NetCDF file (e.g., an ERA5 daily file).
	grid    *domain.Grid
	mu      sync.RWMutex
}

// NewStore creates a reference grid store.
func NewStore(refPath string) *Store {
	return &Store{refPath: refPath}
}

// Grid returns the reference grid.
func (s *Store) Grid() (domain.Grid, error) {
	s.mu.RLock()
	if s.grid != nil {
		g := *s.grid
		s.mu.RUnlock()
		return g, nil
	}
	s.mu.RUnlock()

	g, err := FromFile(s.refPath)
	if err != nil {
		return domain.Grid{}, err
	}

	s.mu.Lock()
	s.grid = &g
	s.mu.Unlock()
	return g, nil
}

// Override fixes the grid instead of reading the reference file.
func (s *Store) Override(g domain.Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = &g
}

// FromFile derives the grid of any NetCDF file with lat/lon coordinates.
// The latitude step keeps the sign of the stored axis, so north-to-south
// files yield a negative DLat.
func FromFile(path string) (domain.Grid, error) {
	var g domain.Grid
	err := ncio.WithFile(path, func(ds netcdf.Dataset) error {
		lats, err := ncio.ReadAxis(ds, ncio.LatNames...)
		if err != nil {
			return err
		}
		lons, err := ncio.ReadAxis(ds, ncio.LonNames...)
		if err != nil {
			return err
		}
		g, err = domain.GridFromAxes(lats, lons, axisTolerance)
		return err
	})
	if err != nil {
		return domain.Grid{}, fmt.Errorf("grid of %s: %w", path, err)
	}
	return g, nil
}
