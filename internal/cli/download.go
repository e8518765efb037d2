package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/cds"
	"go.ngs.io/pgw4era/internal/adapter/store/era5"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) downloadCmd() *cobra.Command {
	var start, end string
	var workers int

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download ERA5 daily files from the Copernicus Climate Data Store",
		Long: `download requests the ERA5 pressure-level and single-level fields of
every day between --start and --end and stores them under paths.era5_dir
with the names 'intermediate' reads. Existing files are skipped. The API
key is read from cds.key or CDSAPI_KEY.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			if a.cfg.CDS.Key == "" {
				return errors.New("no CDS API key: set cds.key or CDSAPI_KEY")
			}
			client := cds.NewClient(a.cfg.CDS.URL, a.cfg.CDS.Key, a.log)
			files := era5.NewReader(a.cfg.Paths.ERA5Dir, a.cfg.ERA5Files(), a.cfg.Constants)
			return usecase.NewDownload(client, files, a.cfg.CDSOptions(), workers, a.log).Run(cmd.Context(), from, to)
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	addRangeFlags(f, &start, &end, "day")
	f.IntVarP(&workers, "workers", "j", 1, "concurrent CDS requests")
	return cmd
}
