// Package config holds the run configuration for one staging invocation.
//
// Resolution order, lowest to highest precedence: built-in defaults, the YAML
// config file, an optional .env file, process environment variables. The
// environment names mirror the ones the batch scheduler exports for each job
// (JOB_NAME, wrfv, build_path, ...), so a config file is optional on the
// cluster path.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wrfstage/internal/namelist"
)

// Config is the immutable configuration of one run. It is resolved once at
// startup and passed explicitly into every staging step; no staging function
// reads ambient process state.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Run     RunConfig     `yaml:"run"`
	Procs   ProcsConfig   `yaml:"procs"`
	Patcher PatcherConfig `yaml:"patcher"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
}

// PathsConfig locates the compiled WRF build and the run directories.
type PathsConfig struct {
	// BuildPath is the directory holding compiled WRF versions.
	BuildPath string `yaml:"build_path"`

	// WRFVersion is the build subdirectory to use (e.g. "WRF-4.3_mpi").
	WRFVersion string `yaml:"wrf_version"`

	// RunPath is where per-run directories are created.
	RunPath string `yaml:"run_path"`
}

// RunConfig identifies the run and its case-specific inputs.
type RunConfig struct {
	// ID names the run; the run directory is <run_path>/WRF_<ID>.
	// Defaults to JOB_NAME from the environment, else a generated id.
	ID string `yaml:"id"`

	// IdealCase is the idealized test case subdirectory under test/.
	IdealCase string `yaml:"ideal_case"`

	// IOFile is the optional iofields file copied next to the namelist.
	IOFile string `yaml:"io_file"`

	// InputSounding selects the sounding variant: the staged source file is
	// input_sounding_<variant>. Empty selects the canonical input_sounding.
	InputSounding string `yaml:"input_sounding"`

	// WRFArgs are the namelist parameters of the first patch pass, in order.
	WRFArgs []namelist.Pair `yaml:"wrf_args"`

	// SleepSeconds desynchronizes concurrently scheduled instances before
	// the preprocessor runs. Advisory, cluster mode only.
	SleepSeconds int `yaml:"sleep_seconds"`

	// Exist picks the policy for a pre-existing run directory:
	// "s" skip (when already initialized), "o" overwrite, "b" backup.
	Exist string `yaml:"exist"`

	// Cluster enables cluster behavior: the desync sleep and batch logging.
	Cluster bool `yaml:"cluster"`

	// ModuleLoad is an opaque shell fragment establishing the runtime
	// environment (library paths, MPI setup) before executables run.
	ModuleLoad string `yaml:"module_load"`
}

// ProcsConfig controls the processor grid. NX/NY may be set directly (the
// scheduler already decided) or derived beforehand with `wrfstage nproc`.
type ProcsConfig struct {
	NX int `yaml:"nx"`
	NY int `yaml:"ny"`

	// MinPerProc and EvenSplit feed the nproc derivation.
	MinPerProc int  `yaml:"min_per_proc"`
	EvenSplit  bool `yaml:"even_split"`
	MaxNX      int  `yaml:"max_nx"`
	MaxNY      int  `yaml:"max_ny"`
}

// PatcherConfig configures the external namelist substitution helper.
type PatcherConfig struct {
	Binary string `yaml:"binary"`
}

// LoggingConfig configures the stage logger.
type LoggingConfig struct {
	// Mode is "interactive" (console + run log file) or "batch" (file only).
	Mode string `yaml:"mode"`

	Level string `yaml:"level"` // debug, info, warn, error
}

// HistoryConfig configures the local run-history index.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty: <run_path>/.wrfstage/history.db
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Exist: "s",
		},
		Procs: ProcsConfig{
			NX:         -1,
			NY:         -1,
			MinPerProc: 25,
		},
		Patcher: PatcherConfig{
			Binary: namelist.DefaultPatcherBinary,
		},
		Logging: LoggingConfig{
			Mode:  "interactive",
			Level: "info",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// Load reads the YAML file at path (a missing file yields defaults), loads a
// .env file next to it if present, then applies environment overrides and
// fills derived defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults plus environment is a valid configuration.
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}

		envFile := filepath.Join(filepath.Dir(path), ".env")
		if _, err := os.Stat(envFile); err == nil {
			// godotenv never overwrites variables already exported.
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if cfg.Run.ID == "" {
		cfg.Run.ID = "run-" + uuid.NewString()[:8]
	}
	if cfg.Run.Cluster {
		cfg.Logging.Mode = "batch"
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for fatal inconsistencies.
func (c *Config) Validate() error {
	if c.Paths.BuildPath == "" {
		return fmt.Errorf("paths.build_path is required")
	}
	if c.Paths.WRFVersion == "" {
		return fmt.Errorf("paths.wrf_version is required")
	}
	if c.Paths.RunPath == "" {
		return fmt.Errorf("paths.run_path is required")
	}
	if c.Run.IdealCase == "" {
		return fmt.Errorf("run.ideal_case is required")
	}
	switch c.Run.Exist {
	case "s", "o", "b":
	default:
		return fmt.Errorf("run.exist must be one of s, o, b (got %q)", c.Run.Exist)
	}
	switch c.Logging.Mode {
	case "interactive", "batch":
	default:
		return fmt.Errorf("logging.mode must be interactive or batch (got %q)", c.Logging.Mode)
	}
	if c.Procs.NX == 0 || c.Procs.NY == 0 {
		return fmt.Errorf("procs.nx/procs.ny must be -1 (serial) or positive, not zero")
	}
	return nil
}

// RunDir is the per-invocation working directory.
func (c *Config) RunDir() string {
	return filepath.Join(c.Paths.RunPath, "WRF_"+c.Run.ID)
}

// BuildDir is the root of the selected WRF build.
func (c *Config) BuildDir() string {
	return filepath.Join(c.Paths.BuildPath, c.Paths.WRFVersion)
}

// SharedDataDir holds the static run-time data files (lookup tables,
// radiation data) that are symlinked into every run directory.
func (c *Config) SharedDataDir() string {
	return filepath.Join(c.BuildDir(), "run")
}

// CaseDir holds the case-specific inputs (namelist, soundings, io file).
func (c *Config) CaseDir() string {
	return filepath.Join(c.BuildDir(), "test", c.Run.IdealCase)
}

// MainDir holds the compiled executables.
func (c *Config) MainDir() string {
	return filepath.Join(c.BuildDir(), "main")
}

// HistoryPath is the run-history database location.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.Paths.RunPath, ".wrfstage", "history.db")
}

// Slots is the total MPI slot count implied by the processor grid.
func (c *Config) Slots() int {
	if c.Procs.NX < 1 || c.Procs.NY < 1 {
		return 1
	}
	return c.Procs.NX * c.Procs.NY
}
