package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/domain"
	"go.ngs.io/pgw4era/internal/usecase"
)

func (a *app) midpointsCmd() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "midpoints",
		Short: "Print the monthly midpoint calendar of a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if year < 1 || year > 9998 {
				return fmt.Errorf("invalid --year %d", year)
			}
			for i, t := range domain.Midpoints(year) {
				fmt.Fprintf(a.out, "%2d  %-9s  %s\n", i, time.Month(domain.MonthIndex(i)+1), t.Format(time.RFC3339))
			}
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().IntVar(&year, "year", time.Now().UTC().Year(), "calendar year")
	return cmd
}

func (a *app) bracketCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "bracket",
		Short: "Print the bracketing months and weight of a timestamp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseTime(at)
			if err != nil {
				return err
			}
			b, err := domain.LocateTime(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s  %s\n", t.Format(time.RFC3339), b)
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVar(&at, "time", "", "timestamp (e.g. 2021-01-15T06:00:00Z)")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	var variable, at string
	var lat, lon, level float64
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the time-interpolated signal at a point as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseKind(variable)
			if err != nil {
				return err
			}
			t, err := parseTime(at)
			if err != nil {
				return err
			}
			signals := anomaly.NewStore(a.cfg.Paths.AnomalyDir, a.cfg.AnomalyFiles(), domain.LevelsDescending)
			res, err := usecase.NewInspector(signals).Anomaly(usecase.PointRequest{
				Kind: kind, Time: t, Lat: lat, Lon: lon, Level: level,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
		DisableAutoGenTag: true,
	}
	f := cmd.Flags()
	f.StringVar(&variable, "var", "", "CMIP6 variable name (e.g. tas, ta)")
	f.StringVar(&at, "time", "", "timestamp")
	f.Float64Var(&lat, "lat", 0, "latitude")
	f.Float64Var(&lon, "lon", 0, "longitude")
	f.Float64Var(&level, "level", 0, "pressure level in Pa for 3-D variables")
	_ = cmd.MarkFlagRequired("var")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
