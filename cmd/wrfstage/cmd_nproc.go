package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wrfstage/internal/decomp"
	"wrfstage/internal/namelist"
)

var (
	nprocEWE      int
	nprocESN      int
	nprocNamelist string
)

var nprocCmd = &cobra.Command{
	Use:   "nproc",
	Short: "Derive the MPI processor grid for a domain",
	Long: `nproc decomposes the horizontal grid into nproc_x by nproc_y patches,
keeping a minimum number of grid points per processor. Dimensions come from
--e-we/--e-sn or are read from a namelist file. The slot count is what the
scheduler request should ask for.`,
	Args: cobra.NoArgs,
	RunE: runNproc,
}

func init() {
	f := nprocCmd.Flags()
	f.IntVar(&nprocEWE, "e-we", 0, "grid points in west-east (staggered)")
	f.IntVar(&nprocESN, "e-sn", 0, "grid points in south-north (staggered)")
	f.StringVar(&nprocNamelist, "namelist", "", "read e_we/e_sn from this namelist file")
}

func runNproc(cmd *cobra.Command, args []string) error {
	eWE, eSN := nprocEWE, nprocESN
	if nprocNamelist != "" {
		var err error
		if eWE, err = namelist.ReadIntKey(nprocNamelist, "e_we"); err != nil {
			return err
		}
		if eSN, err = namelist.ReadIntKey(nprocNamelist, "e_sn"); err != nil {
			return err
		}
	}
	if eWE <= 1 || eSN <= 1 {
		return fmt.Errorf("grid dimensions required: pass --e-we/--e-sn or --namelist")
	}

	nx, ny := decomp.Decompose(eWE, eSN, decomp.Options{
		MinPerProc: cfg.Procs.MinPerProc,
		EvenSplit:  cfg.Procs.EvenSplit,
		MaxNX:      cfg.Procs.MaxNX,
		MaxNY:      cfg.Procs.MaxNY,
	})
	cmd.Printf("nx=%d ny=%d slots=%d\n", nx, ny, decomp.Slots(nx, ny))
	return nil
}
