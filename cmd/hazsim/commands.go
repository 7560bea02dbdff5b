// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/detect"
	"github.com/db47h/hazsim/server"
	"github.com/db47h/hazsim/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}

func (a *app) parseCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <expression>",
		Short: "Parse an expression into a circuit",
		Long: `Parse a boolean expression into a gate-level circuit and print it.

Operators are ! (NOT), & (AND) and | (OR), in decreasing order of
precedence. The keywords NOT, AND and OR are accepted in any case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := hazsim.Parse(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c.Description())
			}
			renderCircuit(cmd.OutOrStdout(), c)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the JSON circuit description")
	return cmd
}

// inputValues returns the initial input values of c overridden by set. Keys
// of set are matched against input ids, then case insensitively against ids
// and names. Unmatched keys are kept as is for Compute to reject.
//
func inputValues(c *hazsim.Circuit, set map[string]int) map[string]int {
	vals := make(map[string]int, len(c.Inputs()))
	for _, in := range c.Inputs() {
		vals[in.ID] = in.Initial
	}
	for k, v := range set {
		id := k
		if !c.IsInput(id) {
			for _, in := range c.Inputs() {
				if strings.EqualFold(in.ID, k) || strings.EqualFold(in.Name, k) {
					id = in.ID
					break
				}
			}
		}
		vals[id] = v
	}
	return vals
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		asJSON bool
		set    map[string]int
	)
	cmd := &cobra.Command{
		Use:   "simulate <expression|file>",
		Short: "Evaluate a circuit for an input assignment",
		Long: `Evaluate a circuit and print the value of every node.

Inputs not given with --set keep their initial value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadCircuit(args[0])
			if err != nil {
				return err
			}
			vals, err := c.Compute(inputValues(c, set))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), vals)
			}
			renderValues(cmd.OutOrStdout(), c, vals)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print values as JSON")
	cmd.Flags().StringToIntVar(&set, "set", nil, "input value as id=0|1, repeatable")
	return cmd
}

func (a *app) detectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect <expression|file>",
		Short: "Detect race conditions and hazards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadCircuit(args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			d := &a.cfg.Detect
			if f.Changed("threshold") {
				d.RaceThreshold, _ = f.GetFloat64("threshold")
			}
			if f.Changed("workers") {
				d.Workers, _ = f.GetInt("workers")
			}
			if f.Changed("max-depth") {
				d.MaxDepth, _ = f.GetInt("max-depth")
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			rep, err := detect.New(c, a.cfg.DetectOptions(a.log)).Detect(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			renderReport(cmd.OutOrStdout(), c, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().Float64("threshold", detect.DefaultRaceThreshold, "race threshold in ns")
	cmd.Flags().Int("workers", 0, "concurrent simulations, 0 for one per CPU")
	cmd.Flags().Int("max-depth", detect.DefaultMaxDepth, "path search depth ceiling")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			cfg := &a.cfg
			if f.Changed("addr") {
				cfg.Server.Addr, _ = f.GetString("addr")
			}
			if f.Changed("db") {
				cfg.Store.Path, _ = f.GetString("db")
			}
			if f.Changed("memory") {
				cfg.Store.InMemory, _ = f.GetBool("memory")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			st, err := store.Open(store.Config{
				Path:       cfg.Store.Path,
				InMemory:   cfg.Store.InMemory,
				SyncWrites: cfg.Store.SyncWrites,
				Logger:     a.log.With("component", "store"),
			})
			if err != nil {
				return err
			}
			defer st.Close()

			srv := server.New(st, server.Options{
				Logger:      a.log,
				CORSOrigins: cfg.Server.CORSOrigins,
				Detect:      *cfg.DetectOptions(a.log),
			})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from config, :5000)")
	cmd.Flags().String("db", "", "database directory")
	cmd.Flags().Bool("memory", false, "use a throw-away in-memory database")
	return cmd
}
