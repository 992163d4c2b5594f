package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wrfstage/internal/config"
	"wrfstage/internal/decomp"
	"wrfstage/internal/history"
	"wrfstage/internal/namelist"
	"wrfstage/internal/stage"
)

var (
	initRunID     string
	initCase      string
	initSounding  string
	initIOFile    string
	initWRFArgs   string
	initExist     string
	initNX        int
	initNY        int
	initAutoProcs bool
	initSleep     int
	initCluster   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Stage a run directory and execute the ideal-case preprocessor",
	Long: `init builds the run directory <run_path>/WRF_<id>, stages shared data,
case inputs and executables, patches the namelist and runs ideal.exe. The
process exit status equals the preprocessor's exit status.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initRunID, "id", "", "run identifier (default: config, JOB_NAME, or generated)")
	f.StringVar(&initCase, "case", "", "idealized test case under test/")
	f.StringVar(&initSounding, "sounding", "", "input sounding variant")
	f.StringVar(&initIOFile, "io-file", "", "iofields file copied from the case directory")
	f.StringVar(&initWRFArgs, "wrf-args", "", "namelist parameters as space-separated key value pairs")
	f.StringVar(&initExist, "exist", "", "policy for an existing run directory: s(kip), o(verwrite), b(ackup)")
	f.IntVar(&initNX, "nx", 0, "processors in x (-1 for serial)")
	f.IntVar(&initNY, "ny", 0, "processors in y (-1 for serial)")
	f.BoolVar(&initAutoProcs, "auto-procs", false, "derive the processor grid from the case namelist")
	f.IntVar(&initSleep, "sleep", -1, "cluster desync sleep in seconds")
	f.BoolVar(&initCluster, "cluster", false, "cluster mode: desync sleep, batch logging")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := applyInitFlags(cmd); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if initAutoProcs {
		if err := deriveProcs(); err != nil {
			return err
		}
	}

	logger.Info("staging run",
		zap.String("run_id", cfg.Run.ID),
		zap.String("case", cfg.Run.IdealCase),
		zap.String("version", cfg.Paths.WRFVersion),
		zap.Int("nx", cfg.Procs.NX),
		zap.Int("ny", cfg.Procs.NY))

	patcher := &namelist.ExecPatcher{Binary: cfg.Patcher.Binary}
	stager := stage.New(cfg, patcher, logger)

	started := time.Now()
	res, err := stager.Run(cmd.Context())
	recordHistory(res, started, err)
	if err != nil {
		return err
	}
	if res.Skipped {
		return nil
	}

	exitCode = res.ExitCode
	if res.ExitCode != 0 {
		logger.Error("initialization failed",
			zap.Error(&stage.SubprocessFailure{Name: stage.PreprocName, ExitCode: res.ExitCode}),
			zap.String("err_log", res.ErrLogPath))
	}
	return nil
}

// applyInitFlags folds explicitly set flags over the loaded configuration.
func applyInitFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("id") {
		cfg.Run.ID = initRunID
	}
	if f.Changed("case") {
		cfg.Run.IdealCase = initCase
	}
	if f.Changed("sounding") {
		cfg.Run.InputSounding = initSounding
	}
	if f.Changed("io-file") {
		cfg.Run.IOFile = initIOFile
	}
	if f.Changed("exist") {
		cfg.Run.Exist = initExist
	}
	if f.Changed("nx") {
		cfg.Procs.NX = initNX
	}
	if f.Changed("ny") {
		cfg.Procs.NY = initNY
	}
	if f.Changed("sleep") {
		cfg.Run.SleepSeconds = initSleep
	}
	if f.Changed("cluster") {
		cfg.Run.Cluster = initCluster
		if initCluster {
			cfg.Logging.Mode = "batch"
		}
	}
	if f.Changed("wrf-args") {
		pairs, err := config.ParseWRFArgs(initWRFArgs)
		if err != nil {
			return err
		}
		cfg.Run.WRFArgs = pairs
	}
	return nil
}

// deriveProcs reads the case namelist's grid dimensions and decomposes them
// into a processor grid.
func deriveProcs() error {
	nml := filepath.Join(cfg.CaseDir(), stage.NamelistName)
	eWE, err := namelist.ReadIntKey(nml, "e_we")
	if err != nil {
		return fmt.Errorf("cannot derive processor grid: %w", err)
	}
	eSN, err := namelist.ReadIntKey(nml, "e_sn")
	if err != nil {
		return fmt.Errorf("cannot derive processor grid: %w", err)
	}
	cfg.Procs.NX, cfg.Procs.NY = decomp.Decompose(eWE, eSN, decomp.Options{
		MinPerProc: cfg.Procs.MinPerProc,
		EvenSplit:  cfg.Procs.EvenSplit,
		MaxNX:      cfg.Procs.MaxNX,
		MaxNY:      cfg.Procs.MaxNY,
	})
	logger.Info("derived processor grid",
		zap.Int("e_we", eWE), zap.Int("e_sn", eSN),
		zap.Int("nx", cfg.Procs.NX), zap.Int("ny", cfg.Procs.NY))
	return nil
}

// recordHistory indexes the outcome in the local history database. Failures
// here never affect the run outcome.
func recordHistory(res *stage.Result, started time.Time, runErr error) {
	if !cfg.History.Enabled || res == nil {
		return
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Warn("history database unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	state := res.State.String()
	if res.Skipped {
		state = "Skipped"
	}
	code := res.ExitCode
	if runErr != nil && code == 0 {
		code = 1
	}
	rec := history.Record{
		RunID:      "WRF_" + cfg.Run.ID,
		State:      state,
		ExitCode:   code,
		LogPath:    res.LogPath,
		ErrLogPath: res.ErrLogPath,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := store.Record(rec); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}
