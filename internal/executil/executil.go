// Package executil runs external binaries with captured output and explicit
// exit status handling.
package executil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Command describes one external invocation.
type Command struct {
	// Path is the binary, absolute or relative to Dir.
	Path string
	Args []string

	// Dir is the working directory; empty inherits the process directory.
	Dir string

	// Env entries are appended to the inherited environment.
	Env []string

	// ModuleLoad is a shell fragment (typically `module load ...`) evaluated
	// before the binary. When set, the invocation runs through bash so the
	// fragment can mutate the environment the binary sees.
	ModuleLoad string

	Stdout io.Writer
	Stderr io.Writer
}

// Result reports a completed invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// RunAndCaptureStatus runs cmd to completion. A non-zero exit status is a
// normal result, not an error: the error return covers only failures to
// start the process (or context cancellation killing it).
func RunAndCaptureStatus(ctx context.Context, cmd Command) (Result, error) {
	c := build(ctx, cmd)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	start := time.Now()
	err := c.Run()
	res := Result{Duration: time.Since(start)}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to run %s: %w", cmd.Path, err)
	}
	return res, nil
}

func build(ctx context.Context, cmd Command) *exec.Cmd {
	if cmd.ModuleLoad == "" {
		return exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	}

	var sb strings.Builder
	sb.WriteString(cmd.ModuleLoad)
	sb.WriteString(" && exec ")
	sb.WriteString(strconv.Quote(cmd.Path))
	for _, a := range cmd.Args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(a))
	}
	return exec.CommandContext(ctx, "bash", "-c", sb.String())
}
