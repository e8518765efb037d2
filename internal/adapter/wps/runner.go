package wps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go.ngs.io/pgw4era/internal/adapter/shell"
)

// Completion messages searched for in the program logs.
const (
	WPSSuccess  = "Successful completion"
	RealSuccess = "SUCCESS COMPLETE REAL_EM INIT"

	logTailLines = 4
)

// ErrProgramFailed is returned when a program log lacks its completion message.
var ErrProgramFailed = errors.New("program did not finish successfully")

// Config locates the WPS and WRF installations and the decks.
type Config struct {
	WPSDir       string `toml:"wps_dir"`
	WRFDir       string `toml:"wrf_dir"`
	BoundaryDir  string `toml:"boundary_dir"`
	GribDir      string `toml:"grib_dir"`
	Intermediate string `toml:"intermediate_dir"`
	Prefix       string `toml:"prefix"` // Intermediate file prefix, e.g. "ERA5".
	WPSDeck      string `toml:"wps_deck"`
	WRFDeck      string `toml:"wrf_deck"`
	SoilFile     string `toml:"soil_file"`
	Geogrid      bool   `toml:"geogrid"`
	Ungrib       bool   `toml:"ungrib"`
	Metgrid      bool   `toml:"metgrid"`
	Real         bool   `toml:"real"`
}

// Runner drives one chunk of WPS and real.exe.
type Runner struct {
	cfg   Config
	shell shell.Runner
	log   logrus.FieldLogger
}

// NewRunner creates a runner.
func NewRunner(cfg Config, sh shell.Runner, log logrus.FieldLogger) *Runner {
	return &Runner{cfg: cfg, shell: sh, log: log}
}

// Prepare renders namelist.wps into the WPS directory and namelist.input
// into the WRF run directory.
func (r *Runner) Prepare(start, end time.Time) error {
	v := DeckVars{Start: start, End: end, SoilFile: r.cfg.SoilFile}
	if r.cfg.WPSDeck != "" {
		if err := RenderDeckFile(r.cfg.WPSDeck, filepath.Join(r.cfg.WPSDir, "namelist.wps"), v); err != nil {
			return err
		}
	}
	if r.cfg.WRFDeck != "" {
		if err := RenderDeckFile(r.cfg.WRFDeck, filepath.Join(r.cfg.WRFDir, "namelist.input"), v); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the enabled steps for [start, end]. Geogrid runs only when
// first is set.
func (r *Runner) Run(ctx context.Context, start, end time.Time, first bool) error {
	log := r.log.WithFields(logrus.Fields{"start": start.Format("2006-01-02"), "end": end.Format("2006-01-02")})
	if err := r.Prepare(start, end); err != nil {
		return err
	}
	if r.cfg.Geogrid && first {
		if err := r.program(ctx, log, r.cfg.WPSDir, "geogrid"); err != nil {
			return err
		}
	}
	if r.cfg.Ungrib {
		if err := r.ungrib(ctx, log, start, end); err != nil {
			return err
		}
	}
	if r.cfg.Metgrid {
		if err := r.metgrid(ctx, log, start, end); err != nil {
			return err
		}
	}
	if r.cfg.Real {
		if err := r.real(ctx, log, start); err != nil {
			return err
		}
	}
	return nil
}

// program runs ./<name>.exe in dir, writes its output to <name>.log and
// checks the completion message.
func (r *Runner) program(ctx context.Context, log logrus.FieldLogger, dir, name string) error {
	log.Infof("running %s.exe", name)
	out, runErr := r.shell.Run(ctx, dir, "./"+name+".exe")
	logPath := filepath.Join(dir, name+".log")
	if err := os.WriteFile(logPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", logPath, err)
	}
	if err := checkCompletion(name, logPath, WPSSuccess, runErr); err != nil {
		return err
	}
	log.Infof("%s completed successfully", name)
	return nil
}

func checkCompletion(name, logPath, message string, runErr error) error {
	ok, err := CheckLog(logPath, logTailLines, message)
	if err != nil {
		return fmt.Errorf("%s: %w", name, errors.Join(err, runErr))
	}
	if ok {
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w, check %s: %v", name, ErrProgramFailed, logPath, runErr)
	}
	return fmt.Errorf("%s: %w, check %s", name, ErrProgramFailed, logPath)
}

func (r *Runner) ungrib(ctx context.Context, log logrus.FieldLogger, start, end time.Time) error {
	files, err := filepath.Glob(filepath.Join(r.cfg.GribDir, "era5_daily_*.grb"))
	if err != nil {
		return err
	}
	files = SelectDaily(files, start, end)
	if len(files) == 0 {
		return fmt.Errorf("ungrib: no GRIB files between %s and %s in %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"), r.cfg.GribDir)
	}
	if _, err := r.shell.Run(ctx, r.cfg.WPSDir, "./link_grib.csh", files...); err != nil {
		return fmt.Errorf("link_grib: %w", err)
	}
	if err := r.program(ctx, log, r.cfg.WPSDir, "ungrib"); err != nil {
		return err
	}
	return removeGlob(r.cfg.WPSDir, "PFILE:*", "GRIBFILE*")
}

func (r *Runner) metgrid(ctx context.Context, log logrus.FieldLogger, start, end time.Time) error {
	prefix := r.cfg.Prefix
	if prefix == "" {
		prefix = "ERA5"
	}
	files, err := filepath.Glob(filepath.Join(r.cfg.Intermediate, prefix+":*"))
	if err != nil {
		return err
	}
	files = SelectIntermediate(files, start, end)
	if len(files) == 0 {
		return fmt.Errorf("metgrid: no %s intermediate files between %s and %s",
			prefix, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	for _, f := range files {
		if err := forceSymlink(f, filepath.Join(r.cfg.WPSDir, filepath.Base(f))); err != nil {
			return err
		}
	}
	if err := r.program(ctx, log, r.cfg.WPSDir, "metgrid"); err != nil {
		return err
	}
	return removeGlob(r.cfg.WPSDir, prefix+":*")
}

func (r *Runner) real(ctx context.Context, log logrus.FieldLogger, start time.Time) error {
	metFiles, err := filepath.Glob(filepath.Join(r.cfg.WPSDir, "met_em.d0?.*.nc"))
	if err != nil {
		return err
	}
	for _, f := range metFiles {
		if err := forceSymlink(f, filepath.Join(r.cfg.WRFDir, filepath.Base(f))); err != nil {
			return err
		}
	}

	log.Info("running real.exe")
	_, runErr := r.shell.Run(ctx, r.cfg.WRFDir, "./real.exe")
	logPath := filepath.Join(r.cfg.WRFDir, "rsl.out.0000")
	if err := checkCompletion("real", logPath, RealSuccess, runErr); err != nil {
		return err
	}

	outputs, err := filepath.Glob(filepath.Join(r.cfg.WRFDir, "wrf*_d0?"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cfg.BoundaryDir, 0o755); err != nil {
		return err
	}
	suffix := start.Format("2006-01-02")
	for _, f := range outputs {
		dst := filepath.Join(r.cfg.BoundaryDir, filepath.Base(f)+"_"+suffix)
		if err := os.Rename(f, dst); err != nil {
			return fmt.Errorf("move %s: %w", f, err)
		}
		log.WithField("file", dst).Info("boundary file stored")
	}
	if err := removeGlob(r.cfg.WRFDir, "met_em.d0?.*.nc"); err != nil {
		return err
	}
	return removeGlob(r.cfg.WPSDir, "met_em.d0?.*.nc")
}

func forceSymlink(target, link string) error {
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, link)
}

func removeGlob(dir string, patterns ...string) error {
	var errs []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup: %s", strings.Join(errs, "; "))
	}
	return nil
}
