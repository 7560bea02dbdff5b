// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import "github.com/pkg/errors"

// TopoOrder returns the circuit's gates in topological order: every gate
// appears after all the gates feeding it.
//
// Only gate-to-gate connections are considered. Ties are broken by gate
// insertion order, then connection order, so the result is deterministic.
// If the gate graph contains a cycle, a *CycleError is returned.
//
func (c *Circuit) TopoOrder() ([]string, error) {
	deg := make(map[string]int, len(c.gateIDs))
	for _, cn := range c.conns {
		if c.IsGate(cn.From) && c.IsGate(cn.To) {
			deg[cn.To]++
		}
	}

	queue := make([]string, 0, len(c.gateIDs))
	for _, id := range c.gateIDs {
		if deg[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(c.gateIDs))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, n := range c.out[id] {
			to := c.conns[n].To
			if !c.IsGate(to) {
				continue
			}
			deg[to]--
			if deg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(order) < len(c.gateIDs) {
		var left []string
		for _, id := range c.gateIDs {
			if deg[id] > 0 {
				left = append(left, id)
			}
		}
		return nil, errors.WithStack(&CycleError{Gates: left})
	}
	return order, nil
}

// ReverseTopoOrder returns TopoOrder reversed, from outputs to inputs.
//
func (c *Circuit) ReverseTopoOrder() ([]string, error) {
	order, err := c.TopoOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
