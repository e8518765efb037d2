// Package config loads the pipeline configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"go.ngs.io/pgw4era/internal/adapter/cds"
	"go.ngs.io/pgw4era/internal/adapter/store/anomaly"
	"go.ngs.io/pgw4era/internal/adapter/store/era5"
	"go.ngs.io/pgw4era/internal/adapter/wps"
	"go.ngs.io/pgw4era/internal/domain"
)

// Config is the full pipeline configuration. It is not modified after Load.
type Config struct {
	Paths     Paths               `toml:"paths"`
	Run       Run                 `toml:"run"`
	Grid      *domain.Grid        `toml:"grid"`
	Levels    Levels              `toml:"levels"`
	Constants domain.Constants    `toml:"constants"`
	Variables map[string][]string `toml:"variables"` // Signal name -> ERA5 codes.
	Signal    Signal              `toml:"signal"`
	WPS       wps.Config          `toml:"wps"`
	CDS       CDS                 `toml:"cds"`
}

// Paths locates inputs and outputs.
type Paths struct {
	ERA5Dir          string `toml:"era5_dir"`
	AnomalyDir       string `toml:"anomaly_dir"`
	OutputDir        string `toml:"output_dir"`
	ReferenceFile    string `toml:"reference_file"`
	AnomalyPattern2D string `toml:"anomaly_pattern_2d"`
	AnomalyPattern3D string `toml:"anomaly_pattern_3d"`
	ERA5Pressure     string `toml:"era5_pressure_pattern"`
	ERA5Surface      string `toml:"era5_surface_pattern"`
}

// Run controls intermediate file generation.
type Run struct {
	Prefix      string   `toml:"prefix"`
	Overwrite   bool     `toml:"overwrite"`
	Workers     int      `toml:"workers"`
	StepHours   int      `toml:"step_hours"`
	Variables3D []string `toml:"variables_3d"`
	Variables2D []string `toml:"variables_2d"`
	SST         bool     `toml:"sst"`
	Soil        bool     `toml:"soil"`
	SpinupDays  int      `toml:"spinup_days"`
	ChunkDays   int      `toml:"chunk_days"`
}

// Levels is the vertical axis of the output.
type Levels struct {
	PressurePa []float64 `toml:"pressure_pa"`
}

// Signal configures the climate-change signal builder.
type Signal struct {
	ModelsFile  string   `toml:"models_file"`
	InputDir    string   `toml:"input_dir"`
	OutputDir   string   `toml:"output_dir"`
	Experiments []string `toml:"experiments"`
	Periods     [][]int  `toml:"periods"`
	Variables   []string `toml:"variables"`
	RegridGrid  string   `toml:"regrid_grid"`
	CDOCommand  string   `toml:"cdo_command"`
}

// CDS configures ERA5 downloads.
type CDS struct {
	URL        string    `toml:"url"`
	Key        string    `toml:"key"`
	Hours      []int     `toml:"hours"`
	Resolution float64   `toml:"resolution"`
	Area       []float64 `toml:"area"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	a := anomaly.DefaultConfig()
	e := era5.DefaultConfig()
	return Config{
		Paths: Paths{
			ERA5Dir:          "./ERA5",
			AnomalyDir:       "./CMIP6anom",
			OutputDir:        "./WRF-Intermediate",
			AnomalyPattern2D: a.Pattern2D,
			AnomalyPattern3D: a.Pattern3D,
			ERA5Pressure:     e.PressurePattern,
			ERA5Surface:      e.SurfacePattern,
		},
		Run: Run{
			Prefix:      "ERA5",
			Workers:     1,
			StepHours:   6,
			Variables3D: []string{"hur", "ta", "ua", "va", "zg"},
			Variables2D: []string{"uas", "vas", "hurs", "ps", "psl", "tas", "ts"},
			SpinupDays:  10,
			ChunkDays:   10,
		},
		Levels:    Levels{PressurePa: append([]float64(nil), domain.ERA5PressureLevels...)},
		Constants: domain.DefaultConstants(),
		Signal: Signal{
			ModelsFile:  "list_CMIP6.txt",
			InputDir:    "./CMIP6",
			OutputDir:   "./CMIP6anom",
			Experiments: []string{"historical", "ssp585"},
			Periods:     [][]int{{1985, 2014}, {2070, 2099}},
			Variables:   []string{"hurs", "tas", "ps", "ts", "vas", "uas", "psl", "ta", "hur", "ua", "va", "zg"},
			RegridGrid:  "era5_grid",
			CDOCommand:  "cdo",
		},
		WPS: wps.Config{Prefix: "ERA5", Metgrid: true, Real: true},
		CDS: CDS{
			URL:        cds.DefaultURL,
			Hours:      append([]int(nil), cds.DefaultHours...),
			Resolution: cds.DefaultResolution,
		},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.CDS.Key = os.Getenv("CDSAPI_KEY")
		return cfg, cfg.Validate()
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if cfg.CDS.Key == "" {
		cfg.CDS.Key = os.Getenv("CDSAPI_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c Config) Validate() error {
	var errs []error
	if c.Run.Workers < 1 {
		errs = append(errs, fmt.Errorf("run.workers must be >= 1, got %d", c.Run.Workers))
	}
	if c.Run.StepHours < 0 || (c.Run.StepHours > 0 && 24%c.Run.StepHours != 0) {
		errs = append(errs, fmt.Errorf("run.step_hours must be 0 or divide 24, got %d", c.Run.StepHours))
	}
	if c.Run.Prefix == "" || strings.ContainsAny(c.Run.Prefix, ":/") {
		errs = append(errs, fmt.Errorf("run.prefix %q is not a valid file prefix", c.Run.Prefix))
	}
	if c.Constants.Gravity <= 0 {
		errs = append(errs, errors.New("constants.gravity must be positive"))
	}
	if len(c.Levels.PressurePa) == 0 {
		errs = append(errs, errors.New("levels.pressure_pa is empty"))
	}
	if _, err := c.PressureKinds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SurfaceKinds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CodeOverrides(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Signal.Periods {
		if len(p) != 2 || p[0] > p[1] {
			errs = append(errs, fmt.Errorf("signal.periods entry %v must be [start, end]", p))
		}
	}
	if c.Grid != nil && (c.Grid.NLat < 2 || c.Grid.NLon < 2 || c.Grid.DLat == 0 || c.Grid.DLon == 0) {
		errs = append(errs, fmt.Errorf("grid %+v is incomplete", *c.Grid))
	}
	return errors.Join(errs...)
}

// PressureKinds resolves run.variables_3d.
func (c Config) PressureKinds() ([]domain.VariableKind, error) {
	kinds, err := domain.ParseKinds(c.Run.Variables3D)
	if err != nil {
		return nil, fmt.Errorf("run.variables_3d: %w", err)
	}
	for _, k := range kinds {
		if !domain.MustLookup(k).ThreeD {
			return nil, fmt.Errorf("run.variables_3d: %s is a single-level variable", domain.MustLookup(k).Signal)
		}
	}
	return kinds, nil
}

// SurfaceKinds resolves run.variables_2d plus the optional SST and soil fields.
func (c Config) SurfaceKinds() ([]domain.VariableKind, error) {
	kinds, err := domain.ParseKinds(c.Run.Variables2D)
	if err != nil {
		return nil, fmt.Errorf("run.variables_2d: %w", err)
	}
	for _, k := range kinds {
		if domain.MustLookup(k).ThreeD {
			return nil, fmt.Errorf("run.variables_2d: %s is a pressure-level variable", domain.MustLookup(k).Signal)
		}
	}
	if c.Run.SST {
		kinds = append(kinds, domain.SeaSurfaceTemperature)
	}
	if c.Run.Soil {
		kinds = append(kinds, domain.SoilTemperature, domain.SoilMoisture)
	}
	return kinds, nil
}

// CodeOverrides resolves the [variables] table.
func (c Config) CodeOverrides() (map[domain.VariableKind][]string, error) {
	out := make(map[domain.VariableKind][]string, len(c.Variables))
	for name, codes := range c.Variables {
		k, err := domain.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("variables: %w", err)
		}
		if len(codes) == 0 {
			return nil, fmt.Errorf("variables.%s: no ERA5 codes", name)
		}
		out[k] = codes
	}
	return out, nil
}

// AnomalyFiles returns the signal file naming.
func (c Config) AnomalyFiles() anomaly.FileConfig {
	return anomaly.FileConfig{Pattern2D: c.Paths.AnomalyPattern2D, Pattern3D: c.Paths.AnomalyPattern3D}
}

// ERA5Files returns the ERA5 daily file naming.
func (c Config) ERA5Files() era5.FileConfig {
	return era5.FileConfig{PressurePattern: c.Paths.ERA5Pressure, SurfacePattern: c.Paths.ERA5Surface}
}

// CDSOptions returns the daily request options.
func (c Config) CDSOptions() cds.Options {
	return cds.Options{Hours: c.CDS.Hours, Resolution: c.CDS.Resolution, Area: c.CDS.Area}
}
