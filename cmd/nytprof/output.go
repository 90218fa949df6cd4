package main

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/format"
	"github.com/danpilch/gonytprof/pkg/reader"
)

// createOutput opens path for writing, or returns the command's stdout
// when path is empty or "-". The returned close function flushes.
func createOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &format.IOError{Op: "create", Path: path, Err: err}
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return &format.IOError{Op: "write", Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			return &format.IOError{Op: "close", Path: path, Err: err}
		}
		return nil
	}, nil
}

// convertTo reads the trace at src and passes its model to write with
// the destination selected by out.
func convertTo(cmd *cobra.Command, src, out string, write func(io.Writer, *format.TraceModel) error) error {
	m, err := reader.Read(src)
	if err != nil {
		return err
	}
	w, closeOut, err := createOutput(cmd, out)
	if err != nil {
		return err
	}
	if err := write(w, m); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
