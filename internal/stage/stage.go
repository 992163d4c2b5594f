// Package stage implements the run-directory staging workflow for idealized
// WRF experiments.
//
// One invocation stages exactly one run: it recreates the run directory,
// links shared data, copies case inputs and executables, resolves the input
// sounding, patches the namelist through the external substitution helper,
// executes the preprocessing binary (ideal.exe) with captured logs, and
// finally records the processor grid in the namelist. Every run is disposable
// and idempotent-by-recreation; there are no retries and no resume.
package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"wrfstage/internal/config"
	"wrfstage/internal/executil"
	"wrfstage/internal/logging"
	"wrfstage/internal/namelist"
)

// Fixed file names of the WRF build convention.
const (
	NamelistName  = "namelist.input"
	SoundingName  = "input_sounding"
	MainExeName   = "wrf.exe"
	PreprocName   = "ideal.exe"
	InitLogName   = "init.log"
	InitErrName   = "init.err"
	RSLOutName    = "rsl.out.0000"
	RSLErrorName  = "rsl.error.0000"
	InitDoneName  = "wrfinput_d01"
	successMarker = "wrf: SUCCESS COMPLETE IDEAL INIT"
)

// State is the position of a run in the staging state machine. Any
// precondition failure is terminal; there is no backward transition.
type State int

const (
	StateInit State = iota
	StateDirectoryPrepared
	StateInputsStaged
	StateNamelistWritten
	StateExecuted
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateDirectoryPrepared:
		return "DirectoryPrepared"
	case StateInputsStaged:
		return "InputsStaged"
	case StateNamelistWritten:
		return "NamelistWritten"
	case StateExecuted:
		return "Executed"
	case StateFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Result is the terminal outcome of one invocation.
type Result struct {
	RunDir     string
	ExitCode   int
	LogPath    string
	ErrLogPath string
	State      State

	// Skipped means the exist policy found a completed initialization and
	// left it untouched.
	Skipped bool
}

// Stager executes the staging workflow for one run. Not reusable: create a
// new Stager per invocation.
type Stager struct {
	cfg     *config.Config
	patcher namelist.Patcher
	logger  *zap.Logger

	state    State
	closeLog func()
}

// New returns a Stager for the given configuration. The logger is the
// bootstrap logger; once the run directory exists the Stager switches to the
// persistent run log.
func New(cfg *config.Config, patcher namelist.Patcher, logger *zap.Logger) *Stager {
	return &Stager{
		cfg:     cfg,
		patcher: patcher,
		logger:  logger,
		state:   StateInit,
	}
}

// Run executes the full workflow and returns its terminal result. The
// returned error is nil for a completed workflow even when the preprocessor
// exited non-zero: that outcome lives in Result.ExitCode.
func (s *Stager) Run(ctx context.Context) (*Result, error) {
	runDir := s.cfg.RunDir()
	res := &Result{
		RunDir:     runDir,
		LogPath:    filepath.Join(runDir, InitLogName),
		ErrLogPath: filepath.Join(runDir, InitErrName),
	}
	defer func() {
		res.State = s.state
		if s.closeLog != nil {
			s.closeLog()
		}
	}()

	skipped, err := s.prepare()
	if err != nil {
		return res, err
	}
	if skipped {
		res.Skipped = true
		return res, nil
	}
	s.state = StateDirectoryPrepared

	// From here on, log into the run directory.
	mode := logging.Mode(s.cfg.Logging.Mode)
	if runLogger, closeFn, err := logging.OpenRunLog(runDir, mode, s.cfg.Logging.Level); err == nil {
		s.logger = runLogger
		s.closeLog = closeFn
	} else {
		s.logger.Warn("failed to open run log, keeping console logger", zap.Error(err))
	}

	if err := s.populateSharedData(); err != nil {
		return res, err
	}
	if err := s.populateCaseInputs(); err != nil {
		return res, err
	}
	if err := s.resolveInputSounding(); err != nil {
		return res, err
	}
	if err := s.stageExecutables(); err != nil {
		return res, err
	}
	if err := s.verifyStaged(); err != nil {
		return res, err
	}
	s.state = StateInputsStaged

	if err := s.patchNamelist(ctx); err != nil {
		return res, err
	}
	s.state = StateNamelistWritten

	execRes, err := s.runPreprocessor(ctx)
	if err != nil {
		return res, err
	}
	s.state = StateExecuted
	res.ExitCode = execRes.ExitCode

	if err := s.finalize(ctx); err != nil {
		return res, err
	}
	s.state = StateFinalized

	if res.ExitCode != 0 {
		s.logger.Error("preprocessing failed",
			zap.Int("exit_code", res.ExitCode),
			zap.String("err_log", res.ErrLogPath))
	} else {
		s.logger.Info("run staged and initialized",
			zap.String("run_dir", runDir),
			zap.Duration("preprocessor_time", execRes.Duration))
	}
	return res, nil
}

// prepare applies the exist policy, then destroys and recreates the run
// directory. Prior contents are unrecoverable except under the backup policy.
func (s *Stager) prepare() (skipped bool, err error) {
	runDir := s.cfg.RunDir()

	if _, statErr := os.Stat(runDir); statErr == nil {
		switch s.cfg.Run.Exist {
		case "s":
			if _, doneErr := os.Stat(filepath.Join(runDir, InitDoneName)); doneErr == nil {
				s.logger.Info("run directory exists and initialization was complete, skipping",
					zap.String("run_dir", runDir))
				return true, nil
			}
			s.logger.Info("run directory exists but initialization was incomplete, redoing",
				zap.String("run_dir", runDir))
		case "o":
			s.logger.Info("overwriting existing run directory", zap.String("run_dir", runDir))
		case "b":
			bakDir := filepath.Join(s.cfg.Paths.RunPath, "bak")
			if err := os.MkdirAll(bakDir, 0755); err != nil {
				return false, &FilesystemError{Op: "mkdir", Path: bakDir, Err: err}
			}
			target := nextFreeSuffix(filepath.Join(bakDir, "WRF_"+s.cfg.Run.ID+"_bak_"))
			if err := os.Rename(runDir, target); err != nil {
				return false, &FilesystemError{Op: "backup", Path: runDir, Err: err}
			}
			s.logger.Info("backed up existing run directory", zap.String("backup", target))
		}
	}

	if err := os.RemoveAll(runDir); err != nil {
		return false, &FilesystemError{Op: "remove", Path: runDir, Err: err}
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return false, &FilesystemError{Op: "mkdir", Path: runDir, Err: err}
	}
	return false, nil
}

// populateSharedData links every shared data file from the build's run/
// directory into the run directory. Stale simulation outputs are deleted
// first so a reused directory name can never leak state into a new run.
func (s *Stager) populateSharedData() error {
	runDir := s.cfg.RunDir()

	for _, pattern := range []string{"wrfinput_d??", "rsl.*"} {
		matches, err := filepath.Glob(filepath.Join(runDir, pattern))
		if err != nil {
			return &FilesystemError{Op: "glob", Path: pattern, Err: err}
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				return &FilesystemError{Op: "remove", Path: m, Err: err}
			}
		}
	}

	shared := s.cfg.SharedDataDir()
	entries, err := os.ReadDir(shared)
	if err != nil {
		return &FilesystemError{Op: "read", Path: shared, Err: err}
	}
	for _, e := range entries {
		src := filepath.Join(shared, e.Name())
		dst := filepath.Join(runDir, e.Name())
		if err := os.Symlink(src, dst); err != nil {
			return &FilesystemError{Op: "symlink", Path: dst, Err: err}
		}
	}
	s.logger.Debug("linked shared data", zap.Int("files", len(entries)))
	return nil
}

// populateCaseInputs copies the namelist and the optional iofields file from
// the case directory, replacing the symlinks staged from run/.
func (s *Stager) populateCaseInputs() error {
	runDir := s.cfg.RunDir()
	caseDir := s.cfg.CaseDir()

	if err := replaceFile(filepath.Join(caseDir, NamelistName), filepath.Join(runDir, NamelistName)); err != nil {
		return err
	}
	if io := s.cfg.Run.IOFile; io != "" {
		if err := replaceFile(filepath.Join(caseDir, io), filepath.Join(runDir, io)); err != nil {
			return err
		}
	}
	return nil
}

// resolveInputSounding stages the configured sounding variant under the
// canonical name. A missing source is a hard precondition failure.
func (s *Stager) resolveInputSounding() error {
	runDir := s.cfg.RunDir()
	caseDir := s.cfg.CaseDir()

	srcName := SoundingName
	if v := s.cfg.Run.InputSounding; v != "" {
		srcName = SoundingName + "_" + v
	}
	src := filepath.Join(caseDir, srcName)

	if _, err := os.Stat(src); err != nil {
		s.logger.Error("input sounding not found", zap.String("path", src))
		return &MissingInputError{Path: src}
	}

	if err := replaceFile(src, filepath.Join(runDir, SoundingName)); err != nil {
		return err
	}
	s.logger.Debug("resolved input sounding", zap.String("source", srcName))
	return nil
}

// stageExecutables copies wrf.exe and ideal.exe into the run directory.
func (s *Stager) stageExecutables() error {
	runDir := s.cfg.RunDir()
	mainDir := s.cfg.MainDir()

	for _, exe := range []string{MainExeName, PreprocName} {
		if err := backupThenCopy(filepath.Join(mainDir, exe), filepath.Join(runDir, exe)); err != nil {
			return err
		}
	}
	return nil
}

// verifyStaged checks the staging invariant: exactly one namelist, one
// canonical sounding and both executables must be present before the
// preprocessor is invoked.
func (s *Stager) verifyStaged() error {
	runDir := s.cfg.RunDir()
	for _, name := range []string{NamelistName, SoundingName, MainExeName, PreprocName} {
		path := filepath.Join(runDir, name)
		if _, err := os.Stat(path); err != nil {
			return &FilesystemError{Op: "verify", Path: path, Err: err}
		}
	}
	return nil
}

// patchNamelist performs the first substitution pass: a full rewrite of the
// run's namelist with the configured parameters.
func (s *Stager) patchNamelist(ctx context.Context) error {
	pairs := s.cfg.Run.WRFArgs
	if len(pairs) == 0 {
		s.logger.Debug("no namelist parameters configured, skipping patch pass")
		return nil
	}
	nml := filepath.Join(s.cfg.RunDir(), NamelistName)
	if err := s.patcher.Patch(ctx, nml, nml, namelist.Full, pairs); err != nil {
		return fmt.Errorf("namelist patch pass 1: %w", err)
	}
	s.logger.Debug("namelist written", zap.Int("parameters", len(pairs)))
	return nil
}

// runPreprocessor executes ideal.exe with stdout/stderr captured into
// init.log/init.err, then emits the per-rank diagnostic log.
func (s *Stager) runPreprocessor(ctx context.Context) (executil.Result, error) {
	runDir := s.cfg.RunDir()

	if err := s.desyncSleep(ctx); err != nil {
		return executil.Result{}, err
	}

	if w, err := newRSLWatcher(s.logger); err == nil {
		if err := w.Start(runDir); err == nil {
			defer w.Stop()
		} else {
			s.logger.Warn("cannot watch run directory", zap.Error(err))
		}
	}

	logF, err := os.Create(filepath.Join(runDir, InitLogName))
	if err != nil {
		return executil.Result{}, &FilesystemError{Op: "create", Path: InitLogName, Err: err}
	}
	defer logF.Close()
	errF, err := os.Create(filepath.Join(runDir, InitErrName))
	if err != nil {
		return executil.Result{}, &FilesystemError{Op: "create", Path: InitErrName, Err: err}
	}
	defer errF.Close()

	s.logger.Info("running preprocessor", zap.String("binary", PreprocName))
	res, err := executil.RunAndCaptureStatus(ctx, executil.Command{
		Path:       "./" + PreprocName,
		Dir:        runDir,
		ModuleLoad: s.cfg.Run.ModuleLoad,
		Stdout:     logF,
		Stderr:     errF,
	})
	if err != nil {
		return res, fmt.Errorf("preprocessor: %w", err)
	}

	s.emitDiagnostics(res.ExitCode)
	return res, nil
}

// desyncSleep delays the preprocessor start on the cluster so concurrently
// scheduled instances do not hit shared storage at the same instant.
// Advisory only; not a lock.
func (s *Stager) desyncSleep(ctx context.Context) error {
	if !s.cfg.Run.Cluster || s.cfg.Run.SleepSeconds <= 0 {
		return nil
	}
	d := time.Duration(s.cfg.Run.SleepSeconds) * time.Second
	s.logger.Debug("desynchronizing start", zap.Duration("sleep", d))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// emitDiagnostics surfaces the per-rank WRF log after the run: the error log
// on failure, the output log on success. Also checks the init log for the
// success marker ideal.exe prints; its absence with a zero exit status is
// suspicious enough to log, but the exit status stays authoritative.
func (s *Stager) emitDiagnostics(exitCode int) {
	runDir := s.cfg.RunDir()

	name := RSLOutName
	if exitCode != 0 {
		name = RSLErrorName
	}
	if data, err := os.ReadFile(filepath.Join(runDir, name)); err == nil {
		content := strings.TrimSpace(string(data))
		if exitCode != 0 {
			s.logger.Error("preprocessor diagnostics",
				zap.String("file", name), zap.String("content", content))
		} else {
			s.logger.Info("preprocessor diagnostics",
				zap.String("file", name), zap.String("content", content))
		}
	}

	if exitCode == 0 {
		if data, err := os.ReadFile(filepath.Join(runDir, InitLogName)); err == nil {
			if !strings.Contains(string(data), successMarker) {
				s.logger.Warn("preprocessor exited 0 but init log lacks the success marker",
					zap.String("marker", successMarker))
			}
		}
	}
}

// finalize records the processor grid in the namelist when a multi-processor
// run was requested. The merge pass preserves everything pass 1 wrote.
func (s *Stager) finalize(ctx context.Context) error {
	nx, ny := s.cfg.Procs.NX, s.cfg.Procs.NY
	if nx*ny <= 1 {
		return nil
	}
	nml := filepath.Join(s.cfg.RunDir(), NamelistName)
	pairs := []namelist.Pair{
		{Key: "nproc_x", Value: strconv.Itoa(nx)},
		{Key: "nproc_y", Value: strconv.Itoa(ny)},
	}
	if err := s.patcher.Patch(ctx, nml, nml, namelist.Merge, pairs); err != nil {
		return fmt.Errorf("namelist patch pass 2: %w", err)
	}
	s.logger.Debug("processor grid recorded", zap.Int("nproc_x", nx), zap.Int("nproc_y", ny))
	return nil
}
