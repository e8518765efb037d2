// Package regrid remaps climate-signal files onto the ERA5 grid with cdo.
package regrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"go.ngs.io/pgw4era/internal/adapter/shell"
)

// DefaultCommand is the cdo executable looked up in PATH.
const DefaultCommand = "cdo"

// Remapper runs `cdo -remapbil,<grid> in out`.
type Remapper struct {
	command string
	grid    string // cdo grid description file or reference NetCDF file.
	runner  shell.Runner
	log     logrus.FieldLogger
}

// NewRemapper creates a bilinear remapper onto the given target grid.
func NewRemapper(command, grid string, runner shell.Runner, log logrus.FieldLogger) *Remapper {
	if command == "" {
		command = DefaultCommand
	}
	return &Remapper{command: command, grid: grid, runner: runner, log: log}
}

// Remap writes out from in unless out already exists. It reports whether
// cdo was run.
func (r *Remapper) Remap(ctx context.Context, in, out string) (bool, error) {
	if _, err := os.Stat(out); err == nil {
		r.log.WithField("file", out).Debug("regridded file exists, skipping")
		return false, nil
	}
	if _, err := os.Stat(in); err != nil {
		return false, fmt.Errorf("regrid input: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return false, fmt.Errorf("regrid output dir: %w", err)
	}
	if _, err := r.runner.Run(ctx, "", r.command, "-remapbil,"+r.grid, in, out); err != nil {
		return false, fmt.Errorf("regrid %s: %w", in, err)
	}
	r.log.WithFields(logrus.Fields{"in": in, "out": out}).Info("regridded to ERA5 grid")
	return true, nil
}
