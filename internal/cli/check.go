package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/store/models"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) checkCmd() *cobra.Command {
	var modelList string
	var vars, experiments []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the CMIP6 archive covers every model, experiment and variable",
		Long: `check reads the time axis of every CMIP6 file below signal.input_dir and
reports the models whose files do not span the scenario periods
(historical 1850-2014, ssp585 2015-2100). It fails when any model is
incomplete.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := a.models(modelList)
			if err != nil {
				return err
			}
			if len(vars) == 0 {
				vars = a.cfg.Signal.Variables
			}
			if len(experiments) == 0 {
				experiments = a.cfg.Signal.Experiments
			}

			checker := usecase.NewCompletenessChecker(models.NewArchive(a.cfg.Signal.InputDir), nil, a.log)
			cov, err := checker.Check(ms, experiments, vars)
			if err != nil {
				return err
			}

			summary := usecase.IncompleteSummary(cov)
			ids := make([]string, 0, len(summary))
			for id := range summary {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tMISSING")
			for _, id := range ids {
				for _, reason := range summary[id] {
					fmt.Fprintf(w, "%s\t%s\n", id, reason)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			complete := usecase.CompleteModels(ms, cov)
			fmt.Fprintf(a.out, "%d of %d models complete\n", len(complete), len(ms))
			if len(ids) > 0 {
				return fmt.Errorf("%d incomplete models", len(ids))
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	f.StringVar(&modelList, "models", "", "comma separated model ids (default: signal.models_file)")
	f.StringSliceVar(&vars, "vars", nil, "variables to check (default: signal.variables)")
	f.StringSliceVar(&experiments, "experiments", nil, "experiments to check (default: signal.experiments)")
	return cmd
}
