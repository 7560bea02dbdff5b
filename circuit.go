// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import (
	"strconv"
	"strings"
)

// An Input is a primary input of a circuit.
//
type Input struct {
	ID      string
	Name    string // display name
	Initial int    // initial logic value, 0 or 1
}

// An Output is a primary output of a circuit. Source is the id of the node
// (input or gate) driving it.
//
type Output struct {
	ID     string
	Name   string
	Source string
}

// A Connection is a wire from node From to gate To with a propagation delay.
//
type Connection struct {
	From  string
	To    string
	Delay float64
}

// Circuit is a combinational circuit: a DAG of gates connecting named
// primary inputs to primary outputs.
//
// A Circuit is built once, either with the Add and Connect methods, by Parse
// or by FromDescription, and is then read-only. Construction is not safe for
// concurrent use; a fully built circuit can be read by any number of
// goroutines.
//
type Circuit struct {
	Name string

	gates   map[string]*Gate
	inputs  map[string]*Input
	outputs map[string]*Output
	conns   []Connection

	// insertion order
	gateIDs   []string
	inputIDs  []string
	outputIDs []string

	// connection indices by endpoint
	in  map[string][]int
	out map[string][]int
}

// NewCircuit returns an empty circuit.
//
func NewCircuit(name string) *Circuit {
	return &Circuit{
		Name:    name,
		gates:   make(map[string]*Gate),
		inputs:  make(map[string]*Input),
		outputs: make(map[string]*Output),
		in:      make(map[string][]int),
		out:     make(map[string][]int),
	}
}

// AddInput adds a primary input. Gates and inputs share the same id space.
//
func (c *Circuit) AddInput(id, name string, initial int) error {
	if err := c.checkNodeID(id); err != nil {
		return err
	}
	if initial != 0 && initial != 1 {
		return validationError("input "+id, "initial value must be 0 or 1, got "+strconv.Itoa(initial))
	}
	c.inputs[id] = &Input{ID: id, Name: name, Initial: initial}
	c.inputIDs = append(c.inputIDs, id)
	return nil
}

// AddGate adds a copy of g to the circuit. If g.Output is empty, it defaults
// to g.ID.
//
func (c *Circuit) AddGate(g Gate) error {
	if err := c.checkNodeID(g.ID); err != nil {
		return err
	}
	if g.Delay < 0 {
		return validationError("gate "+g.ID, "negative delay")
	}
	if g.Output == "" {
		g.Output = g.ID
	}
	g.Inputs = append([]string(nil), g.Inputs...)
	c.gates[g.ID] = &g
	c.gateIDs = append(c.gateIDs, g.ID)
	return nil
}

// AddOutput adds a primary output driven by node source.
//
func (c *Circuit) AddOutput(id, name, source string) error {
	if id == "" {
		return validationError("output", "empty id")
	}
	if _, ok := c.outputs[id]; ok {
		return validationError("output "+id, "duplicate id")
	}
	if c.IsNode(id) {
		return validationError("output "+id, "id already used by a node")
	}
	c.outputs[id] = &Output{ID: id, Name: name, Source: source}
	c.outputIDs = append(c.outputIDs, id)
	return nil
}

// Connect adds a wire from node from to gate to.
//
func (c *Circuit) Connect(from, to string, delay float64) error {
	if from == "" || to == "" {
		return validationError("connection", "invalid connection "+from+" -> "+to)
	}
	if delay < 0 {
		return validationError("connection "+from+" -> "+to, "negative delay")
	}
	i := len(c.conns)
	c.conns = append(c.conns, Connection{From: from, To: to, Delay: delay})
	c.out[from] = append(c.out[from], i)
	c.in[to] = append(c.in[to], i)
	return nil
}

func (c *Circuit) checkNodeID(id string) error {
	if id == "" {
		return validationError("node", "empty id")
	}
	if c.IsNode(id) {
		return validationError("node "+id, "duplicate id")
	}
	if _, ok := c.outputs[id]; ok {
		return validationError("node "+id, "id already used by an output")
	}
	return nil
}

// Gate returns the gate with the given id.
//
func (c *Circuit) Gate(id string) (*Gate, bool) {
	g, ok := c.gates[id]
	return g, ok
}

// Gates returns the circuit's gates in insertion order.
//
func (c *Circuit) Gates() []*Gate {
	gs := make([]*Gate, len(c.gateIDs))
	for i, id := range c.gateIDs {
		gs[i] = c.gates[id]
	}
	return gs
}

// Input returns the primary input with the given id.
//
func (c *Circuit) Input(id string) (Input, bool) {
	in, ok := c.inputs[id]
	if !ok {
		return Input{}, false
	}
	return *in, true
}

// Inputs returns the primary inputs in insertion order.
//
func (c *Circuit) Inputs() []Input {
	ins := make([]Input, len(c.inputIDs))
	for i, id := range c.inputIDs {
		ins[i] = *c.inputs[id]
	}
	return ins
}

// Output returns the primary output with the given id.
//
func (c *Circuit) Output(id string) (Output, bool) {
	o, ok := c.outputs[id]
	if !ok {
		return Output{}, false
	}
	return *o, true
}

// Outputs returns the primary outputs in insertion order.
//
func (c *Circuit) Outputs() []Output {
	outs := make([]Output, len(c.outputIDs))
	for i, id := range c.outputIDs {
		outs[i] = *c.outputs[id]
	}
	return outs
}

// Connections returns a copy of all connections in insertion order.
//
func (c *Circuit) Connections() []Connection {
	return append([]Connection(nil), c.conns...)
}

// Incoming returns the connections ending at node id.
//
func (c *Circuit) Incoming(id string) []Connection {
	return c.pick(c.in[id])
}

// Outgoing returns the connections starting at node id.
//
func (c *Circuit) Outgoing(id string) []Connection {
	return c.pick(c.out[id])
}

func (c *Circuit) pick(idx []int) []Connection {
	if len(idx) == 0 {
		return nil
	}
	cs := make([]Connection, len(idx))
	for i, n := range idx {
		cs[i] = c.conns[n]
	}
	return cs
}

// Connection returns the first connection from node from to node to.
//
func (c *Circuit) Connection(from, to string) (Connection, bool) {
	for _, n := range c.out[from] {
		if c.conns[n].To == to {
			return c.conns[n], true
		}
	}
	return Connection{}, false
}

// IsInput reports whether id is a primary input.
//
func (c *Circuit) IsInput(id string) bool {
	_, ok := c.inputs[id]
	return ok
}

// IsGate reports whether id is a gate.
//
func (c *Circuit) IsGate(id string) bool {
	_, ok := c.gates[id]
	return ok
}

// IsNode reports whether id is a primary input or a gate.
//
func (c *Circuit) IsNode(id string) bool {
	return c.IsInput(id) || c.IsGate(id)
}

// Validate checks the structural invariants of the circuit:
//
//	- connections start at a known node and end at a gate
//	- every gate input port is a known node wired to the gate
//	- NOT gates have exactly one input
//	- output sources are known nodes
//	- the gate-to-gate graph is acyclic
//
// The first violation found is returned.
//
func (c *Circuit) Validate() error {
	for _, cn := range c.conns {
		if !c.IsNode(cn.From) {
			return validationError("connection "+cn.From+" -> "+cn.To, "unknown source node "+cn.From)
		}
		if !c.IsGate(cn.To) {
			return validationError("connection "+cn.From+" -> "+cn.To, "target "+cn.To+" is not a gate")
		}
	}
	for _, id := range c.gateIDs {
		g := c.gates[id]
		if g.Kind == Not && len(g.Inputs) != 1 {
			return validationError("gate "+id, "NOT gate must have exactly one input, got "+strconv.Itoa(len(g.Inputs)))
		}
		for _, p := range g.Inputs {
			if !c.IsNode(p) {
				return validationError("gate "+id, "input "+p+" is not a known node")
			}
			if _, ok := c.Connection(p, id); !ok {
				return validationError("gate "+id, "input "+p+" not connected to gate")
			}
		}
	}
	for _, id := range c.outputIDs {
		if src := c.outputs[id].Source; !c.IsNode(src) {
			return validationError("output "+id, "unknown source "+strconv.Quote(src))
		}
	}
	_, err := c.TopoOrder()
	return err
}

// String returns a one line summary of the circuit.
//
func (c *Circuit) String() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(c.Name))
	b.WriteString(": ")
	b.WriteString(strconv.Itoa(len(c.inputIDs)))
	b.WriteString(" inputs, ")
	b.WriteString(strconv.Itoa(len(c.gateIDs)))
	b.WriteString(" gates, ")
	b.WriteString(strconv.Itoa(len(c.outputIDs)))
	b.WriteString(" outputs, ")
	b.WriteString(strconv.Itoa(len(c.conns)))
	b.WriteString(" connections")
	return b.String()
}
