// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import "strconv"

// GateKind identifies the logic function of a gate.
//
// The set of kinds known to the evaluator is closed (And, Or, Not), but
// circuits may carry other kinds: they are rejected when evaluated and
// reported as dynamic hazard sites by the detector.
//
type GateKind string

// Known gate kinds.
//
const (
	And GateKind = "AND"
	Or  GateKind = "OR"
	Not GateKind = "NOT"
)

// Known reports whether k is one of And, Or or Not.
//
func (k GateKind) Known() bool {
	switch k {
	case And, Or, Not:
		return true
	}
	return false
}

// A Gate is a logic gate in a circuit.
//
type Gate struct {
	ID    string
	Kind  GateKind
	Delay float64 // propagation delay in ns
	// Inputs lists the ids of the upstream nodes (primary inputs or gates)
	// feeding this gate, one per input port.
	Inputs []string
	// Output identifier, by convention equal to ID.
	Output string
}

// Eval computes the gate output given the values of upstream nodes.
//
//	AND: 1 if all inputs are 1
//	OR:  1 if any input is 1
//	NOT: 1 - in
//
func (g *Gate) Eval(values map[string]int) (int, error) {
	for _, in := range g.Inputs {
		if _, ok := values[in]; !ok {
			return 0, evalError(g.ID, "no value for input "+in)
		}
	}
	switch g.Kind {
	case And:
		for _, in := range g.Inputs {
			if values[in] != 1 {
				return 0, nil
			}
		}
		return 1, nil
	case Or:
		for _, in := range g.Inputs {
			if values[in] == 1 {
				return 1, nil
			}
		}
		return 0, nil
	case Not:
		if len(g.Inputs) != 1 {
			return 0, evalError(g.ID, "NOT gate must have exactly one input, got "+strconv.Itoa(len(g.Inputs)))
		}
		return 1 - values[g.Inputs[0]], nil
	}
	return 0, evalError(g.ID, "unsupported gate type "+strconv.Quote(string(g.Kind)))
}

// Ports returns the distinct input ports of g in declaration order.
//
func (g *Gate) Ports() []string {
	ports := make([]string, 0, len(g.Inputs))
	seen := make(map[string]bool, len(g.Inputs))
	for _, in := range g.Inputs {
		if !seen[in] {
			seen[in] = true
			ports = append(ports, in)
		}
	}
	return ports
}
