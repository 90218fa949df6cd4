// Command nytprof writes, verifies, inspects and converts NYTProf
// version 5 trace files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danpilch/gonytprof/pkg/config"
	"github.com/danpilch/gonytprof/pkg/debug"
	"github.com/danpilch/gonytprof/pkg/writer"
)

// errFailed reports a failure whose diagnostics were already printed.
var errFailed = errors.New("failed")

type app struct {
	configPath string
	debug      bool
	pprofAddr  string
	lookupEnv  func(string) (string, bool)

	conf  config.Config
	log   *logrus.Logger
	pprof *debug.PprofServer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "nytprof",
		Short:         "Write, verify and convert NYTProf trace files",
		Version:       writer.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.BoolVar(&a.debug, "debug", false, "log at debug level")
	flags.StringVar(&a.pprofAddr, "pprof-addr", "", "serve runtime profiles of this tool at the given address")

	root.AddCommand(
		newVerifyCmd(a),
		newHeaderCmd(a),
		newDumpCmd(a),
		newSummaryCmd(a),
		newSpeedscopeCmd(a),
		newFoldedCmd(a),
		newPprofCmd(a),
		newFlameGraphCmd(a),
		newRecordCmd(a),
		newRewriteCmd(a),
		newDiffCmd(a),
		newBenchCmd(a),
	)
	return root
}

// setup resolves configuration in increasing precedence: defaults, the
// config file, the environment and finally flags.
func (a *app) setup(cmd *cobra.Command) error {
	conf := config.Default()
	if a.configPath != "" {
		var err error
		if conf, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if err := conf.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	if cmd.Flags().Changed("debug") {
		conf.Debug = a.debug
	}
	if a.pprofAddr != "" {
		conf.PprofAddr = a.pprofAddr
	}
	a.conf = conf

	a.log = conf.Logger()
	a.log.SetOutput(cmd.ErrOrStderr())

	if conf.PprofAddr != "" {
		s, err := debug.StartPprofServer(conf.PprofAddr, a.log)
		if err != nil {
			return err
		}
		a.pprof = s
	}
	return nil
}

// run executes the command line and returns the process exit status.
func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	return (&app{lookupEnv: lookupEnv}).execute(args, stdout, stderr)
}

func (a *app) execute(args []string, stdout, stderr io.Writer) int {
	defer a.stopPprof()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(stderr, diagnostic(err))
		}
		return 1
	}
	return 0
}

// stopPprof shuts down the profiling server, if one was started. It
// runs whether or not the command failed.
func (a *app) stopPprof() {
	if a.pprof != nil {
		a.pprof.Stop()
	}
}

// diagnostic renders err as one line prefixed with the program name.
func diagnostic(err error) string {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	if strings.HasPrefix(msg, "nytprof: ") {
		return msg
	}
	return "nytprof: " + msg
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}
