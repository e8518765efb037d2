package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/adapter/store/era5"
	"go.ngs.io/pgw4era/internal/adapter/store/grid"
	"go.ngs.io/pgw4era/internal/domain"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) intermediateCmd() *cobra.Command {
	var start, end, outDir string
	var workers int
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "intermediate",
		Short: "Write perturbed WPS intermediate files",
		Long: `intermediate reads the ERA5 daily files between --start and --end, adds
the time-interpolated climate-change signal to every perturbed variable and
writes one WPS intermediate file per timestep. Existing files are kept
unless --overwrite is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Run.Workers = workers
			}
			if cmd.Flags().Changed("overwrite") {
				a.cfg.Run.Overwrite = overwrite
			}
			if outDir != "" {
				a.cfg.Paths.OutputDir = outDir
			}

			p, err := a.processor()
			if err != nil {
				return err
			}
			results, err := p.Run(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			written := 0
			for _, r := range results {
				if r.Written {
					written++
				}
			}
			a.log.WithFields(logrus.Fields{
				"timesteps": len(results),
				"written":   written,
				"skipped":   len(results) - written,
			}).Info("intermediate files done")
			return nil
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	addRangeFlags(f, &start, &end, "timestep")
	f.StringVar(&outDir, "output", "", "output directory (overrides paths.output_dir)")
	f.IntVarP(&workers, "workers", "j", 1, "timesteps processed in parallel")
	f.BoolVar(&overwrite, "overwrite", false, "replace existing intermediate files")
	return cmd
}

// processor wires the ERA5 reader, the signal store and the grid into a
// usecase.Processor.
func (a *app) processor() (*usecase.Processor, error) {
	pressure, err := a.cfg.PressureKinds()
	if err != nil {
		return nil, err
	}
	surface, err := a.cfg.SurfaceKinds()
	if err != nil {
		return nil, err
	}
	overrides, err := a.cfg.CodeOverrides()
	if err != nil {
		return nil, err
	}

	base := era5.NewReader(a.cfg.Paths.ERA5Dir, a.cfg.ERA5Files(), a.cfg.Constants)
	for kind, codes := range overrides {
		base.SetCodes(kind, codes)
	}
	signals := anomaly.NewStore(a.cfg.Paths.AnomalyDir, a.cfg.AnomalyFiles(), domain.LevelsDescending)

	opts := usecase.ProcessorOptions{
		OutputDir:     a.cfg.Paths.OutputDir,
		Prefix:        a.cfg.Run.Prefix,
		Overwrite:     a.cfg.Run.Overwrite,
		Workers:       a.cfg.Run.Workers,
		StepHours:     a.cfg.Run.StepHours,
		Levels:        a.cfg.Levels.PressurePa,
		PressureKinds: pressure,
		SurfaceKinds:  surface,
	}
	switch {
	case a.cfg.Grid != nil:
		g := *a.cfg.Grid
		opts.Grid = &g
	case a.cfg.Paths.ReferenceFile != "":
		g, err := grid.NewStore(a.cfg.Paths.ReferenceFile).Grid()
		if err != nil {
			return nil, fmt.Errorf("reference grid: %w", err)
		}
		opts.Grid = &g
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return usecase.NewProcessor(base, signals, opts, a.log), nil
}
