// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type app struct {
	cfgPath  string
	logLevel string
	cfg      config.Config
	log      *slog.Logger
	stdin    io.Reader
}

func newRootCmd() *cobra.Command {
	a := new(app)
	root := &cobra.Command{
		Use:   "hazsim",
		Short: "Race condition and hazard analyzer for combinational circuits",
		Long: `hazsim builds gate-level circuits from boolean expressions or JSON
descriptions, evaluates them, and detects race conditions and static or
dynamic hazards.

Examples:
  hazsim parse "A AND NOT A"
  hazsim simulate "A & B | C" --set a=1 --set c=0
  hazsim detect circuit.json --json
  hazsim serve --config hazsim.yaml`,
		Version:       "1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.parseCmd(),
		a.simulateCmd(),
		a.detectCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.stdin = cmd.InOrStdin()
	a.log = cfg.Log.Logger(cmd.ErrOrStderr())
	slog.SetDefault(a.log)
	return nil
}

// loadCircuit returns the circuit named by arg: a JSON description file, "-"
// for a description on standard input, or else an expression.
//
func (a *app) loadCircuit(arg string) (*hazsim.Circuit, error) {
	if arg == "-" {
		return a.decode(a.stdin, "stdin")
	}
	if fi, err := os.Stat(arg); err == nil && !fi.IsDir() {
		f, err := os.Open(arg)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer f.Close()
		return a.decode(f, arg)
	}
	if strings.HasSuffix(arg, ".json") {
		return nil, errors.Errorf("%s: no such file", arg)
	}
	return hazsim.Parse(arg)
}

func (a *app) decode(r io.Reader, name string) (*hazsim.Circuit, error) {
	d, err := hazsim.DecodeDescription(r)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	d.InferPorts()
	c, err := hazsim.FromDescription(d)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	a.log.Debug("circuit loaded", "file", name, "circuit", c.String())
	return c, nil
}
