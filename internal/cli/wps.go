package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/shell"
	"go.ngs.io/pgw4era/internal/adapter/wps"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) wpsCmd() *cobra.Command {
	var start, end string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "wps",
		Short: "Run WPS and real.exe in chunks to produce WRF boundary conditions",
		Long: `wps simulates the months from --start up to (not including) --end in
chunks of run.chunk_days, starting run.spinup_days before --start. For each
chunk it renders the namelist decks and runs the WPS programs and real.exe
enabled in the [wps] table, checking their logs for successful completion.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseTime(start)
			if err != nil {
				return err
			}
			to, err := parseTime(end)
			if err != nil {
				return err
			}
			chunks, err := usecase.PlanChunks(from, to, a.cfg.Run.SpinupDays, a.cfg.Run.ChunkDays)
			if err != nil {
				return err
			}
			if dryRun {
				for _, c := range chunks {
					fmt.Fprintf(a.out, "%s %s\n", c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
				}
				return nil
			}
			runner := wps.NewRunner(a.cfg.WPS, shell.ExecRunner{}, a.log)
			return usecase.NewBoundary(runner, a.log).Run(cmd.Context(), chunks)
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "first simulated month (e.g. 2012-01)")
	f.StringVar(&end, "end", "", "month after the last simulated one")
	f.BoolVar(&dryRun, "dry-run", false, "print the chunks without running anything")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
