// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package hztest provides utility functions for testing circuits.
//
package hztest

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/db47h/hazsim"
)

// maxExhaustive is the number of inputs above which CompareOutputs switches
// from exhaustive to random testing.
//
const maxExhaustive = 12

// Equivalent fails the test if a and b differ structurally: same inputs,
// gates, outputs and connections, in the same order.
//
func Equivalent(t testing.TB, a, b *hazsim.Circuit) {
	t.Helper()

	ia, ib := a.Inputs(), b.Inputs()
	if len(ia) != len(ib) {
		t.Fatalf("len(a.Inputs()) = %d != len(b.Inputs()) = %d", len(ia), len(ib))
	}
	for i := range ia {
		if ia[i] != ib[i] {
			t.Fatalf("a.Inputs()[%d] = %+v != b.Inputs()[%d] = %+v", i, ia[i], i, ib[i])
		}
	}

	ga, gb := a.Gates(), b.Gates()
	if len(ga) != len(gb) {
		t.Fatalf("len(a.Gates()) = %d != len(b.Gates()) = %d", len(ga), len(gb))
	}
	for i := range ga {
		if gateString(ga[i]) != gateString(gb[i]) {
			t.Fatalf("a.Gates()[%d] = %s != b.Gates()[%d] = %s", i, gateString(ga[i]), i, gateString(gb[i]))
		}
	}

	oa, ob := a.Outputs(), b.Outputs()
	if len(oa) != len(ob) {
		t.Fatalf("len(a.Outputs()) = %d != len(b.Outputs()) = %d", len(oa), len(ob))
	}
	for i := range oa {
		if oa[i] != ob[i] {
			t.Fatalf("a.Outputs()[%d] = %+v != b.Outputs()[%d] = %+v", i, oa[i], i, ob[i])
		}
	}

	ca, cb := a.Connections(), b.Connections()
	if len(ca) != len(cb) {
		t.Fatalf("len(a.Connections()) = %d != len(b.Connections()) = %d", len(ca), len(cb))
	}
	for i := range ca {
		if ca[i] != cb[i] {
			t.Fatalf("a.Connections()[%d] = %+v != b.Connections()[%d] = %+v", i, ca[i], i, cb[i])
		}
	}
}

func gateString(g *hazsim.Gate) string {
	return fmt.Sprintf("%s %s(%s) -> %s [%g]", g.ID, g.Kind, strings.Join(g.Inputs, ", "), g.Output, g.Delay)
}

// ForEachAssignment calls fn for every assignment of 0/1 values to the given
// input ids, in binary counting order with ids[0] as the most significant bit.
// The map passed to fn is reused between calls.
//
func ForEachAssignment(ids []string, fn func(values map[string]int)) {
	values := make(map[string]int, len(ids))
	n := len(ids)
	for m := 0; m < 1<<uint(n); m++ {
		for i, id := range ids {
			values[id] = (m >> uint(n-1-i)) & 1
		}
		fn(values)
	}
}

// InputIDs returns the ids of c's primary inputs in order.
//
func InputIDs(c *hazsim.Circuit) []string {
	ins := c.Inputs()
	ids := make([]string, len(ins))
	for i := range ins {
		ids[i] = ins[i].ID
	}
	return ids
}

// CompareOutputs takes two circuits with the same inputs and outputs and
// compares their output values for the same input assignments. Circuits with
// up to 12 inputs are tested exhaustively, larger ones with 4096 random
// assignments drawn from r.
//
func CompareOutputs(t testing.TB, r *rand.Rand, a, b *hazsim.Circuit) {
	t.Helper()

	ids := InputIDs(a)
	if got := InputIDs(b); strings.Join(got, ",") != strings.Join(ids, ",") {
		t.Fatalf("inputs differ: %v != %v", ids, got)
	}
	oa, ob := a.Outputs(), b.Outputs()
	if len(oa) != len(ob) {
		t.Fatalf("len(a.Outputs()) = %d != len(b.Outputs()) = %d", len(oa), len(ob))
	}

	check := func(values map[string]int) {
		ra, err := a.Compute(values)
		if err != nil {
			t.Fatal(err)
		}
		rb, err := b.Compute(values)
		if err != nil {
			t.Fatal(err)
		}
		for i := range oa {
			if ra[oa[i].ID] != rb[ob[i].ID] {
				t.Fatalf("\nExpected %s => %s=%d\nGot %d", assignString(ids, values), oa[i].ID, ra[oa[i].ID], rb[ob[i].ID])
			}
		}
	}

	if len(ids) <= maxExhaustive {
		ForEachAssignment(ids, check)
		return
	}
	values := make(map[string]int, len(ids))
	for i := 0; i < 1<<maxExhaustive; i++ {
		for _, id := range ids {
			values[id] = r.Intn(2)
		}
		check(values)
	}
}

func assignString(ids []string, values map[string]int) string {
	var b strings.Builder
	for _, id := range ids {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%d", id, values[id])
	}
	return b.String()
}
