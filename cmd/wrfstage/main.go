// wrfstage stages and initializes idealized WRF runs: it builds the run
// directory from a compiled WRF build, patches the namelist, executes the
// ideal-case preprocessor and records the outcome.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wrfstage/internal/config"
	"wrfstage/internal/logging"
)

var version = "0.3.0"

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger

	// exitCode is the process exit status. The init command sets it to the
	// preprocessor's own exit code so schedulers see failures directly.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "wrfstage",
	Short: "Stage and initialize idealized WRF runs",
	Long: `wrfstage prepares a disposable run directory for an idealized WRF
experiment: shared data is symlinked from the build, case inputs and
executables are copied in, the namelist is patched and ideal.exe is executed
with its output captured. One invocation stages exactly one run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger = logging.New(logging.Mode(cfg.Logging.Mode), cfg.Logging.Level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the wrfstage version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("wrfstage " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "wrfstage.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(nprocCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			cobra.WriteStringAndCheck(os.Stderr, "error: "+err.Error()+"\n")
		}
		if exitCode == 0 {
			exitCode = 1
		}
	}
	stop()
	os.Exit(exitCode)
}
