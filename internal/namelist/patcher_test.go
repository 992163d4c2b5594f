package namelist

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// writeFakeHelper creates a shell script standing in for search_replace. It
// appends its arguments, one per line, to capturePath.
func writeFakeHelper(t *testing.T, exitCode int) (binary, capturePath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake helper requires a POSIX shell")
	}

	dir := t.TempDir()
	binary = filepath.Join(dir, "search_replace")
	capturePath = filepath.Join(dir, "capture.txt")

	script := "#!/bin/sh\nfor arg in \"$@\"; do echo \"$arg\" >> " + capturePath + "\ndone\n"
	if exitCode != 0 {
		script += "echo 'substitution failed' >&2\nexit " + strconv.Itoa(exitCode) + "\n"
	}
	if err := os.WriteFile(binary, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return binary, capturePath
}

func TestExecPatcher_ArgumentOrder(t *testing.T) {
	binary, capture := writeFakeHelper(t, 0)
	p := &ExecPatcher{Binary: binary}

	pairs := []Pair{
		{Key: "run_hours", Value: "12"},
		{Key: "e_we", Value: "201"},
	}
	if err := p.Patch(context.Background(), "src.input", "dst.input", Full, pairs); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("helper was not invoked: %v", err)
	}
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"src.input", "dst.input", "1", "run_hours", "12", "e_we", "201"}
	if len(got) != len(want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecPatcher_MergeMode(t *testing.T) {
	binary, capture := writeFakeHelper(t, 0)
	p := &ExecPatcher{Binary: binary}

	pairs := []Pair{{Key: "nproc_x", Value: "2"}}
	if err := p.Patch(context.Background(), "n.input", "n.input", Merge, pairs); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Split(strings.TrimSpace(string(data)), "\n")
	if args[2] != "0" {
		t.Errorf("merge mode argument = %q, want \"0\"", args[2])
	}
}

func TestExecPatcher_HelperFailure(t *testing.T) {
	binary, _ := writeFakeHelper(t, 2)
	p := &ExecPatcher{Binary: binary}

	err := p.Patch(context.Background(), "a", "b", Merge, nil)
	if err == nil {
		t.Fatal("expected an error from a failing helper")
	}
	if !strings.Contains(err.Error(), "substitution failed") {
		t.Errorf("error should carry the helper output: %v", err)
	}
}

func TestExecPatcher_MissingBinary(t *testing.T) {
	p := &ExecPatcher{Binary: filepath.Join(t.TempDir(), "no_such_helper")}

	if err := p.Patch(context.Background(), "a", "b", Full, nil); err == nil {
		t.Fatal("expected an error for a missing helper binary")
	}
}
