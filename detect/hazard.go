// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package detect

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/db47h/hazsim"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Kind is a hazard kind.
//
type Kind string

// Hazard kinds.
//
const (
	Static0 Kind = "static-0" // AND convergence
	Static1 Kind = "static-1" // OR convergence
	Dynamic Kind = "dynamic"  // any other gate kind
)

// KindOf returns the kind of hazard a reconvergence at a gate of kind k causes.
//
func KindOf(k hazsim.GateKind) Kind {
	switch k {
	case hazsim.And:
		return Static0
	case hazsim.Or:
		return Static1
	}
	return Dynamic
}

// Method tells how a hazard was found.
//
type Method string

// Detection methods.
//
const (
	MethodSymbolic    Method = "symbolic"
	MethodConvergence Method = "convergence"
)

// A Hazard is a gate where a variable and its complement reconverge.
//
// For hazards found by simulation, OtherInputs holds the first assignment of
// the other inputs that exposes the hazard.
//
type Hazard struct {
	Variable    string          `json:"variable"`
	VariableID  string          `json:"variable_id"`
	Kind        Kind            `json:"hazard_type"`
	GateID      string          `json:"gate_id"`
	GateType    hazsim.GateKind `json:"gate_type"`
	GateInputs  []string        `json:"gate_inputs"`
	OtherInputs map[string]int  `json:"other_inputs,omitempty"`
	Method      Method          `json:"method"`
	Description string          `json:"description"`
}

func newHazard(v candidate, g *hazsim.Gate, m Method) Hazard {
	return Hazard{
		Variable:   v.in.Name,
		VariableID: v.in.ID,
		Kind:       KindOf(g.Kind),
		GateID:     g.ID,
		GateType:   g.Kind,
		GateInputs: append([]string{}, g.Inputs...),
		Method:     m,
	}
}

// candidate is a primary input feeding at least one NOT gate directly.
//
type candidate struct {
	in   hazsim.Input
	nots map[string]bool // direct NOT gates
}

// candidates returns the hazard candidates in input order. Inputs without a
// direct NOT fan-out cannot reconverge with their complement.
//
func (d *Detector) candidates() []candidate {
	var cs []candidate
	for _, in := range d.c.Inputs() {
		var nots map[string]bool
		for _, cn := range d.c.Outgoing(in.ID) {
			if g, ok := d.c.Gate(cn.To); ok && g.Kind == hazsim.Not {
				if nots == nil {
					nots = make(map[string]bool)
				}
				nots[g.ID] = true
			}
		}
		if nots != nil {
			cs = append(cs, candidate{in: in, nots: nots})
		}
	}
	return cs
}

// convergencePoints returns the gates reached by both an original path of v
// (one not entering a direct NOT gate of v first) and a negated path of v,
// ordered output to input according to rorder.
//
func (d *Detector) convergencePoints(v candidate, rorder []string) []string {
	orig := make(map[string]bool)
	neg := make(map[string]bool)
	for _, o := range d.c.Outputs() {
		for _, p := range d.ex.PathsTo(o.Source) {
			if len(p) < 2 || p[0] != v.in.ID {
				continue
			}
			set := orig
			if v.nots[p[1]] {
				set = neg
			}
			for _, id := range p[1:] {
				if !v.nots[id] && d.c.IsGate(id) {
					set[id] = true
				}
			}
		}
	}
	var pts []string
	for _, id := range rorder {
		if orig[id] && neg[id] {
			pts = append(pts, id)
		}
	}
	return pts
}

// classify reports every convergence point as a hazard, by gate kind.
//
func (d *Detector) classify(v candidate, points []string) []Hazard {
	hs := make([]Hazard, 0, len(points))
	for _, id := range points {
		g, _ := d.c.Gate(id)
		h := newHazard(v, g, MethodConvergence)
		h.Description = "possible " + string(h.Kind) + " hazard on " + v.in.Name + " at gate " + g.ID +
			" (" + string(g.Kind) + "): original and negated paths converge"
		hs = append(hs, h)
	}
	return hs
}

// simulate runs the symbolic simulation of variable v for every assignment of
// the other inputs. Gates are evaluated in topological order. Each gate is
// reported once, with the first assignment, in index order, that flags it.
//
func (d *Detector) simulate(ctx context.Context, v candidate, order []string) ([]Hazard, error) {
	ins := d.c.Inputs()
	if len(ins) > d.opts.MaxInputs {
		return nil, errors.Errorf("%d inputs exceed the exhaustive simulation limit of %d", len(ins), d.opts.MaxInputs)
	}
	others := make([]string, 0, len(ins)-1)
	for _, in := range ins {
		if in.ID != v.in.ID {
			others = append(others, in.ID)
		}
	}

	n := 1 << uint(len(others))
	flagged := make([][]*hazsim.Gate, n)
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(d.opts.Workers)
	for m := 0; m < n; m++ {
		if gctx.Err() != nil {
			break
		}
		m := m
		grp.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("symbolic pass %d panicked: %v", m, r)
				}
			}()
			if err = gctx.Err(); err != nil {
				return err
			}
			flagged[m] = d.pass(v, order, others, m)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	hs := make([]Hazard, 0)
	seen := make(map[string]bool)
	for m, gates := range flagged {
		for _, g := range gates {
			if seen[g.ID] {
				continue
			}
			seen[g.ID] = true
			h := newHazard(v, g, MethodSymbolic)
			if len(others) > 0 {
				h.OtherInputs = assignment(others, m)
			}
			h.Description = describe(h, others)
			hs = append(hs, h)
		}
	}
	return hs, nil
}

// assignment returns the m-th assignment of ids, ids[0] being the most
// significant bit.
//
func assignment(ids []string, m int) map[string]int {
	a := make(map[string]int, len(ids))
	for i, id := range ids {
		a[id] = (m >> uint(len(ids)-1-i)) & 1
	}
	return a
}

func describe(h Hazard, others []string) string {
	var b strings.Builder
	b.WriteString(string(h.Kind))
	b.WriteString(" hazard on ")
	b.WriteString(h.Variable)
	b.WriteString(" at gate ")
	b.WriteString(h.GateID)
	b.WriteString(" (")
	b.WriteString(string(h.GateType))
	b.WriteString("): ")
	b.WriteString(h.Variable)
	b.WriteString(" and its complement reconverge")
	if len(others) > 0 {
		ids := append([]string(nil), others...)
		sort.Strings(ids)
		b.WriteString(" when ")
		for i, id := range ids {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(id)
			b.WriteByte('=')
			b.WriteString(strconv.Itoa(h.OtherInputs[id]))
		}
	}
	return b.String()
}

// pass runs one symbolic simulation of v with the other inputs set to the
// m-th assignment and returns the flagged gates in evaluation order.
//
func (d *Detector) pass(v candidate, order []string, others []string, m int) []*hazsim.Gate {
	vals := make(map[string]Value, len(others)+1+len(order))
	vals[v.in.ID] = Literal{ID: v.in.ID, Name: v.in.Name}
	for i, id := range others {
		vals[id] = Constant((m >> uint(len(others)-1-i)) & 1)
	}

	var sites []*hazsim.Gate
	ins := make([]Value, 0, 4)
	for _, id := range order {
		g, _ := d.c.Gate(id)
		ins = ins[:0]
		for _, p := range g.Inputs {
			val, ok := vals[p]
			if !ok {
				d.log.Debug("no symbolic value for gate input, using 0", "gate", g.ID, "node", p)
				val = Constant(0)
			}
			ins = append(ins, val)
		}
		out, clash := Eval(g.Kind, ins)
		if clash {
			sites = append(sites, g)
		}
		vals[id] = out
	}
	return sites
}

// Eval computes the symbolic output of a gate of kind k. clash reports that a
// literal and its complement reconverge at the gate. Gate kinds other than
// AND, OR and NOT evaluate to Constant(0).
//
func Eval(k hazsim.GateKind, ins []Value) (out Value, clash bool) {
	switch k {
	case hazsim.And:
		return And(ins)
	case hazsim.Or:
		return Or(ins)
	case hazsim.Not:
		if len(ins) != 1 {
			return Constant(0), false
		}
		return Not(ins[0]), false
	}
	return Constant(0), Clash(ins)
}
