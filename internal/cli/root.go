// Package cli implements the pgw4era command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.ngs.io/pgw4era/internal/config"
)

// Version is the release of the command-line tool.
const Version = "0.1.0"

// app holds the state shared by the subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg config.Config
	log *logrus.Logger
	out io.Writer
}

// NewRoot builds the command tree. Output of informational commands goes to out.
func NewRoot(out io.Writer) *cobra.Command {
	a := &app{out: out, log: logrus.New()}

	root := &cobra.Command{
		Use:   "pgw4era",
		Short: "Pseudo-global-warming boundary conditions from ERA5 and CMIP6.",
		Long: `pgw4era perturbs ERA5 reanalysis with a monthly CMIP6 climate-change
signal and writes WPS intermediate files for WRF.

Configuration is read from a TOML file given with --config; flags given on
the command line override it. Use the subcommands below to build the
signal, write intermediate files and drive WPS.`,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv("PGW4ERA_CONFIG"), "TOML configuration file")
	flags.StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	root.AddCommand(
		a.versionCmd(),
		a.intermediateCmd(),
		a.signalCmd(),
		a.checkCmd(),
		a.downloadCmd(),
		a.wpsCmd(),
		a.midpointsCmd(),
		a.bracketCmd(),
		a.inspectCmd(),
	)
	return root
}

// setup configures logging and loads the configuration.
func (a *app) setup() error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	a.log.SetLevel(level)
	a.log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "pgw4era v%s\n", Version)
		},
		DisableAutoGenTag: true,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// timeLayouts are the accepted --start/--end/--time formats.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02T15", "2006-01-02", "2006-01"}

// parseTime reads a UTC date or timestamp.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date (e.g. 2021-01-15 or 2021-01-15T06:00:00Z)", s)
}

// parseRange reads --start/--end. An end given as a plain day covers the
// whole day.
func parseRange(start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --end are required")
	}
	s, err := parseTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(strings.TrimSpace(end)) == len("2006-01-02") {
		e = e.Add(24*time.Hour - time.Second)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s before start %s", end, start)
	}
	return s, e, nil
}

// addRangeFlags registers --start and --end.
func addRangeFlags(f *pflag.FlagSet, start, end *string, what string) {
	f.StringVar(start, "start", "", "first "+what+" (e.g. 2021-01-01)")
	f.StringVar(end, "end", "", "last "+what+"; a plain day includes all its hours")
}
