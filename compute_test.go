// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim_test

import (
	"math/rand"
	"testing"

	hz "github.com/db47h/hazsim"
	"github.com/db47h/hazsim/hztest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuit_Compute(t *testing.T) {
	c := halfHazard(t)
	for _, a := range []int{0, 1} {
		res, err := c.Compute(map[string]int{"a": a})
		if err != nil {
			trace(t, err)
			t.Fatal(err)
		}
		assert.Equal(t, map[string]int{"a": a, "n": 1 - a, "g": 0, "y": 0}, res)
	}

	res, err := c.Compute(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res["a"])
	assert.Equal(t, 1, res["n"])
}

func TestCircuit_Compute_errors(t *testing.T) {
	c := halfHazard(t)
	data := []struct {
		name   string
		values map[string]int
		err    string
	}{
		{"unknown_input", map[string]int{"b": 1}, "b: unknown input id"},
		{"bad_value", map[string]int{"a": 3}, "a: invalid logic value 3"},
		{"missing_value", map[string]int{}, "compute hazard: n: no value for input a"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := c.Compute(d.values)
			require.Error(t, err)
			var ee *hz.EvaluationError
			assert.True(t, errors.As(err, &ee))
			assert.Equal(t, d.err, err.Error())
		})
	}

	t.Run("unknown_kind", func(t *testing.T) {
		c := hz.NewCircuit("xor")
		require.NoError(t, c.AddInput("a", "A", 1))
		require.NoError(t, c.AddInput("b", "B", 0))
		require.NoError(t, c.AddGate(hz.Gate{ID: "x", Kind: "XOR", Inputs: []string{"a", "b"}}))
		require.NoError(t, c.Connect("a", "x", 0))
		require.NoError(t, c.Connect("b", "x", 0))
		require.NoError(t, c.Validate())
		_, err := c.Compute(nil)
		require.Error(t, err)
		assert.Equal(t, `compute xor: x: unsupported gate type "XOR"`, err.Error())
	})
}

func TestCircuit_Compute_deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		e := hztest.RandomExpr(r, hztest.Vars(5), 5)
		c, err := hz.Parse(e.String())
		require.NoError(t, err, e.String())
		hztest.ForEachAssignment(hztest.InputIDs(c), func(values map[string]int) {
			r1, err := c.Compute(values)
			require.NoError(t, err)
			r2, err := c.Compute(values)
			require.NoError(t, err)
			assert.Equal(t, r1, r2)
		})
	}
}

func TestCircuit_TopoOrder(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		e := hztest.RandomExpr(r, hztest.Vars(4), 6)
		c, err := hz.Parse(e.String())
		require.NoError(t, err)
		order, err := c.TopoOrder()
		require.NoError(t, err)
		require.Len(t, order, len(c.Gates()))
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, cn := range c.Connections() {
			if c.IsGate(cn.From) {
				assert.Less(t, pos[cn.From], pos[cn.To], "%s: %s -> %s", e, cn.From, cn.To)
			}
		}

		rev, err := c.ReverseTopoOrder()
		require.NoError(t, err)
		for i := range order {
			assert.Equal(t, order[i], rev[len(rev)-1-i])
		}
	}
}

func TestCircuit_TopoOrder_tieBreak(t *testing.T) {
	c, err := hz.Parse("!A & !B | C & D")
	require.NoError(t, err)
	order, err := c.TopoOrder()
	require.NoError(t, err)
	// g1=!A g2=!B g3=g1&g2 g4=C&D g5=g3|g4
	assert.Equal(t, []string{"g1", "g2", "g4", "g3", "g5"}, order)
}

func TestCircuit_TopoOrder_cycle(t *testing.T) {
	c := halfHazard(t)
	require.NoError(t, c.AddGate(hz.Gate{ID: "h", Kind: hz.Or, Inputs: []string{"g", "k"}}))
	require.NoError(t, c.AddGate(hz.Gate{ID: "k", Kind: hz.Not, Inputs: []string{"h"}}))
	require.NoError(t, c.Connect("g", "h", 0))
	require.NoError(t, c.Connect("k", "h", 0))
	require.NoError(t, c.Connect("h", "k", 0))

	_, err := c.TopoOrder()
	require.Error(t, err)
	var ce *hz.CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"h", "k"}, ce.Gates)
	assert.Equal(t, "circuit contains a cycle through gates h, k", err.Error())

	_, err = c.Compute(nil)
	assert.True(t, errors.As(err, &ce))
	assert.True(t, errors.As(c.Validate(), &ce))
}
