package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/regrid"
	"go.ngs.io/pgw4era/internal/adapter/shell"
	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/domain"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) signalCmd() *cobra.Command {
	var modelList string
	var vars []string
	var workers int
	var overwrite, onlyComplete bool

	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Build the monthly CMIP6 climate-change signal",
		Long: `signal computes, for every model, the monthly annual cycle of the
historical and future periods, regrids their difference to the ERA5 grid
with cdo and writes the ensemble mean as the signal files read by
'intermediate'. Pressure-level signals are interpolated to levels.pressure_pa.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := a.models(modelList)
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				vars = a.cfg.Signal.Variables
			}
			kinds, err := domain.ParseKinds(vars)
			if err != nil {
				return err
			}
			opts, err := a.signalOptions()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			opts.Overwrite = overwrite

			archive := models.NewArchive(a.cfg.Signal.InputDir)
			if onlyComplete {
				checker := usecase.NewCompletenessChecker(archive, nil, a.log)
				cov, err := checker.Check(ms, []string{opts.Historical, opts.Future}, vars)
				if err != nil {
					return err
				}
				ms = usecase.CompleteModels(ms, cov)
				a.log.WithField("models", len(ms)).Info("using complete models only")
			}

			var remap usecase.Remapper
			if a.cfg.Signal.RegridGrid != "" {
				remap = regrid.NewRemapper(a.cfg.Signal.CDOCommand, a.cfg.Signal.RegridGrid, shell.ExecRunner{}, a.log)
			}
			b := usecase.NewSignalBuilder(archive, remap, opts, a.log)
			paths, err := b.Run(cmd.Context(), kinds, ms)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.out, p)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	f.StringVar(&modelList, "models", "", "comma separated model ids (default: signal.models_file)")
	f.StringSliceVar(&vars, "vars", nil, "variables to build (default: signal.variables)")
	f.IntVarP(&workers, "workers", "j", 1, "models processed in parallel")
	f.BoolVar(&overwrite, "overwrite", false, "rebuild existing delta and signal files")
	f.BoolVar(&onlyComplete, "complete-only", false, "skip models failing the completeness check")
	return cmd
}

// models returns the --models list or the configured model list file.
func (a *app) models(list string) ([]models.Model, error) {
	if list != "" {
		return models.ParseModels(list)
	}
	path := a.cfg.Signal.ModelsFile
	if path == "" {
		path = models.DefaultListFile
	}
	return models.LoadList(path)
}

// signalOptions maps the [signal] table onto the builder options.
func (a *app) signalOptions() (usecase.SignalOptions, error) {
	s := a.cfg.Signal
	if len(s.Experiments) != 2 || len(s.Periods) != 2 {
		return usecase.SignalOptions{}, fmt.Errorf("signal needs two experiments and two periods, got %v and %v",
			s.Experiments, s.Periods)
	}
	for _, p := range s.Periods {
		if len(p) != 2 {
			return usecase.SignalOptions{}, fmt.Errorf("signal period %v: want [start, end]", p)
		}
	}
	opts := usecase.SignalOptions{
		Historical:       s.Experiments[0],
		Future:           s.Experiments[1],
		HistoricalPeriod: usecase.Period{Start: s.Periods[0][0], End: s.Periods[0][1]},
		FuturePeriod:     usecase.Period{Start: s.Periods[1][0], End: s.Periods[1][1]},
		Levels:           a.cfg.Levels.PressurePa,
		OutputDir:        s.OutputDir,
		Files:            a.cfg.AnomalyFiles(),
		Workers:          1,
	}
	return opts, opts.Validate()
}
