package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/baseline"
	"github.com/danpilch/gonytprof/pkg/benchmark"
	"github.com/danpilch/gonytprof/pkg/convert"
	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
	"github.com/danpilch/gonytprof/pkg/writer"
)

func newFlameGraphCmd(_ *app) *cobra.Command {
	var (
		out  string
		opts = convert.DefaultSVGOptions()
	)
	opts.Title = ""
	cmd := &cobra.Command{
		Use:   "flamegraph <trace>",
		Short: "Render a trace as an SVG flame graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertTo(cmd, args[0], out, func(w io.Writer, m *format.TraceModel) error {
				return convert.WriteFlameGraph(w, m, opts)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "graph title (default from the application name)")
	cmd.Flags().StringVar(&opts.ColorScheme, "color", opts.ColorScheme, "hot, cold or mem")
	cmd.Flags().IntVar(&opts.Width, "width", opts.Width, "image width in pixels")
	cmd.Flags().BoolVar(&opts.Folded.Lines, "lines", false, "add a file:line frame below each subroutine")
	return cmd
}

func newRewriteCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "rewrite <trace>",
		Short: "Re-encode a trace with the configured writer settings",
		Long: "Rewrite parses a trace and writes it again, so compression, " +
			"timestamp width and process-start framing can be changed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := reader.Read(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = a.conf.Output
			}
			wc, err := a.conf.WriterConfig(a.log)
			if err != nil {
				return err
			}
			if wc.Application == "" {
				wc.Application = m.Header.Attributes[format.AttrApplication]
			}
			wc.PID, wc.PPID = m.Process.PID, m.Process.PPID

			w, err := writer.Open(out, wc)
			if err != nil {
				return err
			}
			if err := writer.CopyModel(w, m); err != nil {
				w.Close()
				return fmt.Errorf("rewrite %s: %w", args[0], err)
			}
			if err := w.Close(); err != nil {
				return err
			}
			a.log.WithField("records", len(m.Records)).Debug("trace rewritten")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s encoder)\n", out, w.Backend())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "trace file (default from config, nytprof.out)")
	return cmd
}

func newDiffCmd(_ *app) *cobra.Command {
	var failOnRegression bool
	cmd := &cobra.Command{
		Use:   "diff <baseline> <trace>",
		Short: "Compare subroutine times against a baseline trace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := reader.Read(args[0])
			if err != nil {
				return err
			}
			cur, err := reader.Read(args[1])
			if err != nil {
				return err
			}
			comparisons := baseline.Compare(base, cur)
			baseline.RenderComparison(cmd.OutOrStdout(), args[0], comparisons)
			if failOnRegression && baseline.Regressions(comparisons) > 0 {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnRegression, "fail", false, "exit non-zero when a regression is detected")
	return cmd
}

func newBenchCmd(a *app) *cobra.Command {
	opts := benchmark.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "bench <trace>",
		Short: "Time encoding, parsing and verifying a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Iterations < 1 {
				return fmt.Errorf("iterations must be positive, got %d", opts.Iterations)
			}
			m, err := reader.Read(args[0])
			if err != nil {
				return err
			}
			opts.Logger = a.log
			if !cmd.Flags().Changed("compress-threshold") {
				opts.CompressThreshold = a.conf.CompressThreshold
			}
			a.log.WithField("records", humanize.Comma(int64(len(m.Records)))).Debug("benchmarking trace")

			results, err := benchmark.Run(m, opts)
			if err != nil {
				return err
			}
			benchmark.RenderResults(cmd.OutOrStdout(), results, benchmark.MeasureOverhead())
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "i", opts.Iterations, "timed runs per stage")
	cmd.Flags().IntVar(&opts.Warmup, "warmup", opts.Warmup, "untimed runs per stage")
	cmd.Flags().IntVar(&opts.CompressThreshold, "compress-threshold", 0, "compress chunks at least this large (default from config)")
	return cmd
}
