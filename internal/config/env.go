package config

import (
	"os"
	"strconv"
	"strings"

	"wrfstage/internal/namelist"
)

// applyEnvOverrides applies the environment contract the batch scheduler
// exports into each job. Variable names are historical and therefore mostly
// lowercase.
func (c *Config) applyEnvOverrides() {
	setString(&c.Run.ID, "JOB_NAME")
	setString(&c.Paths.WRFVersion, "wrfv")
	setString(&c.Paths.BuildPath, "build_path")
	setString(&c.Paths.RunPath, "run_path")
	setString(&c.Run.IdealCase, "ideal_case")
	setString(&c.Run.IOFile, "iofile")
	setString(&c.Run.InputSounding, "input_sounding")
	setString(&c.Run.ModuleLoad, "module_load")

	setInt(&c.Run.SleepSeconds, "sleep")
	setInt(&c.Procs.NX, "nx")
	setInt(&c.Procs.NY, "ny")

	if v, ok := os.LookupEnv("cluster"); ok {
		c.Run.Cluster = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv("wrf_args"); ok {
		if pairs, err := ParseWRFArgs(v); err == nil {
			c.Run.WRFArgs = pairs
		}
	}
}

// ParseWRFArgs parses the space-separated "key value key value ..." form the
// scheduler passes in wrf_args. Order is preserved. A trailing key without a
// value is an error.
func ParseWRFArgs(s string) ([]namelist.Pair, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields)%2 != 0 {
		return nil, errOddWRFArgs(len(fields))
	}
	pairs := make([]namelist.Pair, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		pairs = append(pairs, namelist.Pair{Key: fields[i], Value: fields[i+1]})
	}
	return pairs, nil
}

type errOddWRFArgs int

func (e errOddWRFArgs) Error() string {
	return "wrf_args must contain key/value pairs, got " + strconv.Itoa(int(e)) + " fields"
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
