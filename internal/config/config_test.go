package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"wrfstage/internal/namelist"
)

// clearRunEnv blanks every variable of the scheduler env contract so tests
// are independent of the surrounding environment.
func clearRunEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JOB_NAME", "wrfv", "build_path", "run_path", "ideal_case",
		"iofile", "input_sounding", "module_load", "sleep", "nx", "ny",
		"cluster", "wrf_args",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Run.Exist != "s" {
		t.Errorf("expected Exist=s, got %s", cfg.Run.Exist)
	}
	if cfg.Procs.NX != -1 || cfg.Procs.NY != -1 {
		t.Errorf("expected serial sentinel (-1, -1), got (%d, %d)", cfg.Procs.NX, cfg.Procs.NY)
	}
	if cfg.Patcher.Binary != namelist.DefaultPatcherBinary {
		t.Errorf("expected patcher binary %s, got %s", namelist.DefaultPatcherBinary, cfg.Patcher.Binary)
	}
	if cfg.Logging.Mode != "interactive" {
		t.Errorf("expected interactive logging, got %s", cfg.Logging.Mode)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearRunEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "wrfstage.yaml")

	cfg := DefaultConfig()
	cfg.Paths = PathsConfig{BuildPath: "/wrf/builds", WRFVersion: "WRF-4.3_mpi", RunPath: "/wrf/runs"}
	cfg.Run.ID = "pytest_lin_0"
	cfg.Run.IdealCase = "em_les"
	cfg.Run.InputSounding = "meanwind"
	cfg.Run.WRFArgs = []namelist.Pair{{Key: "mp_physics", Value: "2"}, {Key: "e_we", Value: "201"}}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearRunEnv(t)
	t.Setenv("JOB_NAME", "pytest_kessler_0")
	t.Setenv("build_path", "/env/builds")
	t.Setenv("wrfv", "WRF-env")
	t.Setenv("run_path", "/env/runs")
	t.Setenv("ideal_case", "em_les")
	t.Setenv("nx", "2")
	t.Setenv("ny", "1")
	t.Setenv("sleep", "7")
	t.Setenv("cluster", "1")
	t.Setenv("wrf_args", "mp_physics 2 dx 500")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Run.ID != "pytest_kessler_0" {
		t.Errorf("expected ID from JOB_NAME, got %s", cfg.Run.ID)
	}
	if cfg.Paths.BuildPath != "/env/builds" || cfg.Paths.WRFVersion != "WRF-env" {
		t.Errorf("env paths not applied: %+v", cfg.Paths)
	}
	if cfg.Procs.NX != 2 || cfg.Procs.NY != 1 {
		t.Errorf("expected (2, 1), got (%d, %d)", cfg.Procs.NX, cfg.Procs.NY)
	}
	if cfg.Run.SleepSeconds != 7 {
		t.Errorf("expected sleep 7, got %d", cfg.Run.SleepSeconds)
	}
	if !cfg.Run.Cluster {
		t.Error("cluster=1 not applied")
	}
	if cfg.Logging.Mode != "batch" {
		t.Errorf("cluster mode must force batch logging, got %s", cfg.Logging.Mode)
	}
	want := []namelist.Pair{{Key: "mp_physics", Value: "2"}, {Key: "dx", Value: "500"}}
	if diff := cmp.Diff(want, cfg.Run.WRFArgs); diff != "" {
		t.Errorf("wrf_args mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_GeneratedRunID(t *testing.T) {
	clearRunEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.HasPrefix(cfg.Run.ID, "run-") || len(cfg.Run.ID) != len("run-")+8 {
		t.Errorf("expected generated run id, got %q", cfg.Run.ID)
	}
}

func TestConfig_DotEnv(t *testing.T) {
	clearRunEnv(t)
	os.Unsetenv("ideal_case")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "wrfstage.yaml")
	if err := os.WriteFile(path, []byte("run:\n  id: fromfile\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("ideal_case=em_hill\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.IdealCase != "em_hill" {
		t.Errorf("expected ideal_case from .env, got %q", cfg.Run.IdealCase)
	}
	if cfg.Run.ID != "fromfile" {
		t.Errorf("expected id from yaml, got %q", cfg.Run.ID)
	}
}

func TestParseWRFArgs(t *testing.T) {
	pairs, err := ParseWRFArgs("a 1 b 2.5 c text")
	if err != nil {
		t.Fatalf("ParseWRFArgs failed: %v", err)
	}
	if len(pairs) != 3 || pairs[2].Key != "c" || pairs[2].Value != "text" {
		t.Errorf("unexpected pairs: %v", pairs)
	}

	if _, err := ParseWRFArgs("a 1 b"); err == nil {
		t.Error("expected an error for an odd field count")
	}

	pairs, err = ParseWRFArgs("   ")
	if err != nil || pairs != nil {
		t.Errorf("blank wrf_args should yield nil, got %v, %v", pairs, err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing paths")
	}

	cfg.Paths = PathsConfig{BuildPath: "/b", WRFVersion: "v", RunPath: "/r"}
	cfg.Run.IdealCase = "em_les"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}

	cfg.Run.Exist = "x"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad exist policy")
	}
	cfg.Run.Exist = "b"

	cfg.Procs.NX = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for nx=0")
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths = PathsConfig{BuildPath: "/b", WRFVersion: "WRF-4.3", RunPath: "/r"}
	cfg.Run.ID = "17"
	cfg.Run.IdealCase = "em_les"

	if got := cfg.RunDir(); got != filepath.Join("/r", "WRF_17") {
		t.Errorf("RunDir = %s", got)
	}
	if got := cfg.SharedDataDir(); got != filepath.Join("/b", "WRF-4.3", "run") {
		t.Errorf("SharedDataDir = %s", got)
	}
	if got := cfg.CaseDir(); got != filepath.Join("/b", "WRF-4.3", "test", "em_les") {
		t.Errorf("CaseDir = %s", got)
	}
	if got := cfg.MainDir(); got != filepath.Join("/b", "WRF-4.3", "main") {
		t.Errorf("MainDir = %s", got)
	}
}
