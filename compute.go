// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import (
	"strconv"

	"github.com/pkg/errors"
)

// Compute evaluates the circuit for the given input assignment and returns
// the logic value of every input, gate and output, keyed by id.
//
// If values is nil, the inputs' initial values are used. Unknown input ids and
// values other than 0 or 1 are rejected with an *EvaluationError, as are
// gates that cannot be evaluated. A cyclic circuit yields a *CycleError.
//
func (c *Circuit) Compute(values map[string]int) (map[string]int, error) {
	res := make(map[string]int, len(c.inputIDs)+len(c.gateIDs)+len(c.outputIDs))
	if values == nil {
		for _, id := range c.inputIDs {
			res[id] = c.inputs[id].Initial
		}
	} else {
		for id, v := range values {
			if !c.IsInput(id) {
				return nil, evalError(id, "unknown input id")
			}
			if v != 0 && v != 1 {
				return nil, evalError(id, "invalid logic value "+strconv.Itoa(v))
			}
			res[id] = v
		}
	}

	order, err := c.TopoOrder()
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		v, err := c.gates[id].Eval(res)
		if err != nil {
			return nil, errors.Wrap(err, "compute "+c.Name)
		}
		res[id] = v
	}

	for _, id := range c.outputIDs {
		src := c.outputs[id].Source
		v, ok := res[src]
		if !ok {
			return nil, evalError(id, "cannot resolve output source "+src)
		}
		res[id] = v
	}
	return res, nil
}
