package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/check"
)

func newVerifyCmd(a *app) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "verify <trace>...",
		Short: "Check the banner, process record and chunk framing of trace files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				workers = a.conf.Workers
			}
			checks, err := check.NewChecker(workers, a.log).RunAll(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, c := range checks {
				fmt.Fprintln(cmd.OutOrStdout(), c.Line())
			}
			if check.ExitCode(checks) != 0 {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "files verified at once (0: GOMAXPROCS)")
	return cmd
}
