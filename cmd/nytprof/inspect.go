package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/debug"
	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
)

func readTrace(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &format.IOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

func newHeaderCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "header <trace>",
		Short: "Print the banner lines with their offsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readTrace(args[0])
			if err != nil {
				return err
			}
			info, err := reader.ParseHeader(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			off := 0
			for _, line := range bytes.SplitAfter(data[:info.HeaderLen], []byte("\n")) {
				if len(line) == 0 {
					continue
				}
				fmt.Fprintf(out, "%08x  %s\n", off, bytes.TrimSuffix(line, []byte("\n")))
				off += len(line)
			}
			fmt.Fprintf(out, "%08x  P record, %d bytes\n", info.ProcessOffset, info.ProcessLen())
			fmt.Fprintf(out, "%08x  first chunk\n", info.FirstChunkOffset)
			fmt.Fprintln(out, info)
			return nil
		},
	}
}

func newDumpCmd(a *app) *cobra.Command {
	var (
		chunks bool
		full   bool
		at     int64
	)
	cmd := &cobra.Command{
		Use:   "dump <trace>",
		Short: "Show the chunk layout of a trace, hexdumping around any corruption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readTrace(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tl := debug.NewTraceLogger(cmd.ErrOrStderr())

			fail := func(stage string, err error) error {
				tl.Log(stage, args[0], err.Error())
				if off := format.OffsetOf(err); off >= 0 {
					tl.HexdumpAround(data, off)
				}
				return err
			}

			if chunks {
				list, err := reader.ScanChunks(data)
				if err != nil {
					return fail("scan", err)
				}
				for _, c := range list {
					fmt.Fprintf(out, "%s 0x%08x %d\n", c.Tag, c.Offset, c.Len)
				}
			} else {
				res, err := reader.Verify(bytes.NewReader(data))
				if err != nil {
					return fail("verify", err)
				}
				debug.DumpChunks(out, res)
			}
			if _, err := reader.Parse(data); err != nil {
				return fail("parse", err)
			}
			a.log.WithField("path", args[0]).Debug("trace decoded")

			if at >= 0 {
				fmt.Fprint(out, debug.HexdumpAround(data, at, debug.HexdumpContext))
			}
			if full {
				fmt.Fprint(out, debug.Hexdump(data, 0))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chunks, "chunks", false, "list chunks as plain 'tag offset length' lines")
	cmd.Flags().BoolVar(&full, "hex", false, "hexdump the whole file")
	cmd.Flags().Int64Var(&at, "at", -1, "hexdump the bytes around this offset")
	return cmd
}
