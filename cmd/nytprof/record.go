package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/debug"
	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/tracer"
	"github.com/danpilch/gonytprof/pkg/writer"
)

func newRecordCmd(a *app) *cobra.Command {
	var (
		out    string
		timing bool
	)
	cmd := &cobra.Command{
		Use:   "record <script.yaml>",
		Short: "Replay a YAML event script into a trace file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return &format.IOError{Op: "open", Path: args[0], Err: err}
			}
			script, err := tracer.LoadScript(f)
			f.Close()
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
				wc.Application = filepath.Base(args[0])
			}
			var timed *debug.TimedEncoder
			if timing {
				wc.WrapEncoder = func(e writer.Encoder) writer.Encoder {
					timed = debug.NewTimedEncoder(e)
					return timed
				}
			}

			w, err := writer.Open(out, wc)
			if err != nil {
				return err
			}
			if err := tracer.Replay(script, w, tracer.WithLogger(a.log)); err != nil {
				w.Close()
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			if err := w.Close(); err != nil {
				return err
			}

			if st, err := os.Stat(out); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %s encoder)\n",
					out, humanize.IBytes(uint64(st.Size())), w.Backend())
			}
			if timed != nil {
				debug.TimingReport(cmd.OutOrStdout(), timed.Timings())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "trace file (default from config, nytprof.out)")
	cmd.Flags().BoolVar(&timing, "timing", false, "print how long each chunk write took")
	return cmd
}
