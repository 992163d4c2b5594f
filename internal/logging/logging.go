// Package logging builds the zap loggers used by the staging workflow.
//
// Two named modes cover the two historical invocation paths: interactive runs
// tee every message to the console and to a persistent log file in the run
// directory, batch (scheduler) runs write the file only. Errors always reach
// stderr in both modes so scheduler .err files stay useful.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode names a logging sink configuration.
type Mode string

const (
	// ModeInteractive writes to the console and, once a run directory
	// exists, to its persistent log file.
	ModeInteractive Mode = "interactive"

	// ModeBatch writes to the persistent log file only; the scheduler owns
	// the console streams.
	ModeBatch Mode = "batch"
)

// RunLogName is the stage log file created inside each run directory. It is
// distinct from init.log/init.err, which capture the preprocessor's own
// output streams.
const RunLogName = "stage.log"

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeInteractive, ModeBatch:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown logging mode %q", s)
	}
}

// New returns a console-only bootstrap logger. It is used before the run
// directory exists; OpenRunLog supersedes it afterwards.
func New(mode Mode, level string) *zap.Logger {
	lvl := parseLevel(level)
	if mode == ModeBatch {
		// Until the run log exists, batch runs only surface warnings.
		if lvl < zapcore.WarnLevel {
			lvl = zapcore.WarnLevel
		}
	}
	core := zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}

// OpenRunLog returns a logger writing to <runDir>/stage.log, teed to the
// console in interactive mode. The returned close function flushes and
// releases the file.
func OpenRunLog(runDir string, mode Mode, level string) (*zap.Logger, func(), error) {
	path := filepath.Join(runDir, RunLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run log: %w", err)
	}

	lvl := parseLevel(level)
	fileCore := zapcore.NewCore(fileEncoder(), zapcore.Lock(f), lvl)

	var core zapcore.Core
	if mode == ModeInteractive {
		consoleCore := zapcore.NewCore(consoleEncoder(), zapcore.Lock(os.Stderr), lvl)
		core = zapcore.NewTee(fileCore, consoleCore)
	} else {
		core = fileCore
	}

	logger := zap.New(core)
	closeFn := func() {
		_ = logger.Sync()
		_ = f.Close()
	}
	return logger, closeFn, nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}
