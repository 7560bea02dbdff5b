// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package hazsim models combinational logic circuits with propagation delays
and evaluates them.

A Circuit is a DAG of AND, OR and NOT gates between named primary inputs and
outputs. Every gate has a delay and every wire (Connection) has its own
delay, both in nanoseconds. Circuits are built in one of three ways:

	c, err := hazsim.Parse("(A & B) | (!A & C)")

	d, err := hazsim.DecodeDescription(r)
	c, err := hazsim.FromDescription(d)

	c := hazsim.NewCircuit("mux")
	err := c.AddInput("a", "A", 0)
	...

Once built, a circuit is read-only and can be shared between goroutines.
Compute evaluates it for an input assignment in topological order.

Race and hazard detection live in the detect sub-package; store and server
provide persistence and an HTTP API on top of both.

Errors returned by this package are a *ParseError, *ValidationError,
*CycleError or *EvaluationError, possibly wrapped; use errors.As to inspect
them.

*/
package hazsim
