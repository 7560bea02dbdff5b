// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package detect finds timing defects in combinational circuits.

Two kinds of defects are reported:

Races are pairs of inputs of the same gate whose signals arrive within a
small delay of each other (see Race).

Hazards are gates where a variable and its complement reconverge, which may
glitch the output during a transition of that variable (see Hazard). They are
found by exhaustive symbolic simulation: the analyzed variable is carried as
a literal through the circuit while every assignment of the other inputs is
tried. When simulation finds nothing, gates where the original and negated
paths of the variable converge are reported instead.

Detection is best effort: a failure while analyzing one variable is logged
and yields no finding for that variable. Only a cyclic circuit is fatal.
*/
package detect

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/db47h/hazsim"
	"github.com/pkg/errors"
)

// DefaultMaxInputs is the default maximum number of circuit inputs for
// exhaustive symbolic simulation.
//
const DefaultMaxInputs = 20

// MaxInputsLimit is the largest accepted MaxInputs. Larger values are
// lowered to it.
//
const MaxInputsLimit = 24

// Options configures a Detector. Zero fields select defaults.
//
type Options struct {
	Logger        *slog.Logger
	RaceThreshold float64 // ns, DefaultRaceThreshold if <= 0
	MaxDepth      int     // path search depth ceiling, DefaultMaxDepth
	MaxInputs     int     // DefaultMaxInputs, at most MaxInputsLimit
	Workers       int     // concurrent simulations, runtime.GOMAXPROCS(0)
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RaceThreshold <= 0 {
		o.RaceThreshold = DefaultRaceThreshold
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxInputs <= 0 {
		o.MaxInputs = DefaultMaxInputs
	}
	if o.MaxInputs > MaxInputsLimit {
		o.MaxInputs = MaxInputsLimit
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// Report is the result of a detection sweep. Both slices are non-nil.
//
type Report struct {
	RaceConditions []Race   `json:"race_conditions"`
	Hazards        []Hazard `json:"hazards"`
}

// A Detector analyzes a single circuit. The circuit must not be modified
// while the detector is in use.
//
type Detector struct {
	c    *hazsim.Circuit
	ex   *Explorer
	opts Options
	log  *slog.Logger
}

// New returns a new Detector for c. opts may be nil.
//
func New(c *hazsim.Circuit, opts *Options) *Detector {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.defaults()
	log := o.Logger.With("circuit", c.Name)
	return &Detector{
		c:    c,
		ex:   NewExplorer(c, o.MaxDepth, log),
		opts: o,
		log:  log,
	}
}

// Explorer returns the detector's path explorer.
//
func (d *Detector) Explorer() *Explorer { return d.ex }

// Detect runs race and hazard detection.
//
// The returned error is a *hazsim.CycleError if the circuit is cyclic, or the
// context error if ctx is done before the sweep completes. Failures of
// individual sub-checks are logged and degrade to empty results.
//
func (d *Detector) Detect(ctx context.Context) (Report, error) {
	rep := Report{RaceConditions: []Race{}, Hazards: []Hazard{}}
	order, err := d.c.TopoOrder()
	if err != nil {
		return rep, err
	}
	d.warnUnsupported()

	rep.RaceConditions = d.safeRaces()
	for _, v := range d.candidates() {
		rep.Hazards = append(rep.Hazards, d.analyze(ctx, v, order)...)
		if err = ctx.Err(); err != nil {
			return rep, errors.WithStack(err)
		}
	}
	return rep, nil
}

// Symbolic runs exhaustive symbolic simulation only, for every candidate
// variable, without the convergence point fallback.
//
func (d *Detector) Symbolic(ctx context.Context) ([]Hazard, error) {
	order, err := d.c.TopoOrder()
	if err != nil {
		return nil, err
	}
	hs := make([]Hazard, 0)
	for _, v := range d.candidates() {
		found, err := d.simulate(ctx, v, order)
		if err != nil {
			return nil, err
		}
		hs = append(hs, found...)
	}
	return hs, nil
}

// Convergence classifies the convergence points of every candidate variable
// by gate kind, without simulation.
//
func (d *Detector) Convergence() ([]Hazard, error) {
	rorder, err := d.c.ReverseTopoOrder()
	if err != nil {
		return nil, err
	}
	hs := make([]Hazard, 0)
	for _, v := range d.candidates() {
		hs = append(hs, d.classify(v, d.convergencePoints(v, rorder))...)
	}
	return hs, nil
}

func (d *Detector) safeRaces() (races []Race) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("race detection failed", "error", r)
			races = []Race{}
		}
	}()
	return d.Races()
}

// analyze runs the hazard sub-check for one variable: symbolic simulation
// first, convergence points if it yields nothing.
//
func (d *Detector) analyze(ctx context.Context, v candidate, order []string) (hs []Hazard) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("hazard analysis failed", "variable", v.in.Name, "error", r)
			hs = nil
		}
	}()

	hs, err := d.simulate(ctx, v, order)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		d.log.Warn("symbolic simulation failed, using convergence points", "variable", v.in.Name, "error", err)
		hs = nil
	}
	if len(hs) > 0 {
		return hs
	}
	rorder := append([]string(nil), order...)
	for i, j := 0, len(rorder)-1; i < j; i, j = i+1, j-1 {
		rorder[i], rorder[j] = rorder[j], rorder[i]
	}
	return d.classify(v, d.convergencePoints(v, rorder))
}

func (d *Detector) warnUnsupported() {
	for _, g := range d.c.Gates() {
		if !g.Kind.Known() {
			d.log.Warn("gate kind not supported by symbolic simulation, evaluated as constant 0", "gate", g.ID, "kind", string(g.Kind))
		}
	}
}
