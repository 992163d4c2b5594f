package stage

import "fmt"

// MissingInputError reports a required input file that does not exist. It is
// raised before any executable runs: starting WRF without correct initial
// conditions would silently produce invalid physics, so absence is a hard
// precondition failure, never a warning.
type MissingInputError struct {
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("required input file missing: %s", e.Path)
}

// FilesystemError reports a failed filesystem operation during staging.
// Always fatal; the run aborts immediately.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// SubprocessFailure reports a non-zero exit from one of the simulation
// binaries. It is captured (diagnostics emitted) and propagated as the
// process exit status, but never retried.
type SubprocessFailure struct {
	Name     string
	ExitCode int
}

func (e *SubprocessFailure) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.ExitCode)
}
