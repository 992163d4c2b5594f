package main

import (
	"github.com/spf13/cobra"

	"wrfstage/internal/namelist"
)

var checkCmd = &cobra.Command{
	Use:   "check-namelist <file>",
	Short: "Check a namelist for resolution and physics inconsistencies",
	Long: `check-namelist parses the given namelist and applies the best-practice
checks: time step stability, PBL scheme versus resolution, LES closure,
cumulus parameterization, advection order and prescribed surface fluxes.
Critical findings fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	nml, err := namelist.ParseFile(args[0])
	if err != nil {
		return err
	}

	res := namelist.Check(nml)
	for _, w := range res.Warnings {
		cmd.Printf("warning: %s\n", w)
	}
	for _, c := range res.Critical {
		cmd.Printf("critical: %s\n", c)
	}
	if len(res.Warnings) == 0 && len(res.Critical) == 0 {
		cmd.Println("namelist ok")
	}
	return res.Err()
}
