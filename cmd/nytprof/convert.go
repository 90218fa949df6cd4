package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/convert"
	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/output"
	"github.com/danpilch/gonytprof/pkg/reader"
)

func newSpeedscopeCmd(_ *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "speedscope <trace>",
		Short: "Convert a trace to speedscope evented JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTo(cmd, args[0], out, convert.WriteSpeedscope)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newFoldedCmd(_ *app) *cobra.Command {
	var (
		out  string
		opts convert.FoldedOptions
	)
	cmd := &cobra.Command{
		Use:   "folded <trace>",
		Short: "Convert a trace to folded stacks for flame graph tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTo(cmd, args[0], out, func(w io.Writer, m *format.TraceModel) error {
				return convert.WriteFolded(w, m, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.Lines, "lines", false, "add a file:line frame below each subroutine")
	return cmd
}

func newPprofCmd(_ *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pprof <trace>",
		Short: "Convert a trace to a gzipped pprof profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTo(cmd, args[0], out, convert.WritePprof)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newSummaryCmd(_ *app) *cobra.Command {
	var (
		formatName string
		top        int
		profile    bool
	)
	cmd := &cobra.Command{
		Use:   "summary <trace>",
		Short: "Report the hottest lines, subroutines and files of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(formatName)
			if err != nil {
				return err
			}
			m, err := reader.Read(args[0])
			if err != nil {
				return err
			}
			fm := output.NewFormatter(f, cmd.OutOrStdout())
			fm.SetShowProfile(profile)
			fm.SetTracePath(args[0])
			return fm.Render(output.Summarize(m, top))
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "table", "table, json, md or tsv")
	cmd.Flags().IntVarP(&top, "top", "n", output.DefaultTop, "rows per ranking (-1: all)")
	cmd.Flags().BoolVar(&profile, "profile", false, "show a per-file sparkline of line times")
	return cmd
}
