// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package detect_test

import (
	"bytes"
	"log/slog"
	"strconv"
	"testing"

	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// notChain builds a -> n1 -> n2 -> ... -> nN.
//
func notChain(t *testing.T, n int) *hazsim.Circuit {
	t.Helper()
	c := hazsim.NewCircuit("chain")
	require.NoError(t, c.AddInput("a", "A", 0))
	prev := "a"
	for i := 1; i <= n; i++ {
		id := "n" + strconv.Itoa(i)
		require.NoError(t, c.AddGate(hazsim.Gate{ID: id, Kind: hazsim.Not, Delay: 1, Inputs: []string{prev}}))
		require.NoError(t, c.Connect(prev, id, 0.1))
		prev = id
	}
	require.NoError(t, c.AddOutput("y", "Y", prev))
	return c
}

func TestExplorer_PathsTo(t *testing.T) {
	c := staticHazard(t)
	ex := detect.NewExplorer(c, 0, nil)

	assert.Equal(t, [][]string{{"a"}}, ex.PathsTo("a"))
	assert.Equal(t, [][]string{{"a", "n"}}, ex.PathsTo("n"))
	ps := ex.PathsTo("g")
	assert.Equal(t, [][]string{{"a", "g"}, {"a", "n", "g"}}, ps)
	assert.Same(t, &ps[0][0], &ex.PathsTo("g")[0][0], "cached")
	assert.Empty(t, ex.PathsTo("nowhere"))

	assert.InDelta(t, 0, ex.PathDelay([]string{"a"}), 1e-9)
	assert.InDelta(t, 2.1, ex.PathDelay(ps[0]), 1e-9)
	assert.InDelta(t, 3.2, ex.PathDelay(ps[1]), 1e-9)
}

func TestExplorer_diamond(t *testing.T) {
	c, err := hazsim.Parse("(A & B) | (A & C)")
	require.NoError(t, err)
	ex := detect.NewExplorer(c, 0, nil)
	// g1 = a&b, g2 = a&c, g3 = g1|g2
	assert.Equal(t, [][]string{
		{"a", "g1", "g3"},
		{"b", "g1", "g3"},
		{"a", "g2", "g3"},
		{"c", "g2", "g3"},
	}, ex.PathsTo("g3"))
}

func TestExplorer_duplicateWires(t *testing.T) {
	c, err := hazsim.Parse("A & A")
	require.NoError(t, err)
	ex := detect.NewExplorer(c, 0, nil)
	assert.Equal(t, [][]string{{"a", "g1"}}, ex.PathsTo("g1"))
}

func TestExplorer_depthCeiling(t *testing.T) {
	c := notChain(t, 10)
	log, buf := bufLogger()
	ex := detect.NewExplorer(c, 5, log)

	assert.Equal(t, [][]string{{"a", "n1", "n2", "n3"}}, ex.PathsTo("n3"))
	assert.Empty(t, buf.String())

	assert.Empty(t, ex.PathsTo("n10"))
	assert.Contains(t, buf.String(), "depth ceiling")
	assert.Contains(t, buf.String(), "node=n10")

	ex = detect.NewExplorer(c, 0, log)
	ps := ex.PathsTo("n10")
	require.Len(t, ps, 1)
	assert.Len(t, ps[0], 11)
	assert.InDelta(t, 11.0, ex.PathDelay(ps[0]), 1e-9)
}

func TestExplorer_cycle(t *testing.T) {
	c := hazsim.NewCircuit("loop")
	require.NoError(t, c.AddInput("a", "A", 0))
	require.NoError(t, c.AddGate(hazsim.Gate{ID: "h", Kind: hazsim.Or, Inputs: []string{"a", "k"}}))
	require.NoError(t, c.AddGate(hazsim.Gate{ID: "k", Kind: hazsim.Not, Inputs: []string{"h"}}))
	require.NoError(t, c.Connect("a", "h", 0))
	require.NoError(t, c.Connect("k", "h", 0))
	require.NoError(t, c.Connect("h", "k", 0))

	ex := detect.NewExplorer(c, 0, nil)
	assert.Equal(t, [][]string{{"a", "h", "k"}}, ex.PathsTo("k"))
	assert.Equal(t, [][]string{{"a", "h"}}, ex.PathsTo("h"))
}

func TestExplorer_missingConnection(t *testing.T) {
	c := staticHazard(t)
	log, buf := bufLogger()
	ex := detect.NewExplorer(c, 0, log)
	assert.InDelta(t, 3.1, ex.PathDelay([]string{"n", "g"}), 1e-9)
	assert.Empty(t, buf.String())
	assert.InDelta(t, 2.1, ex.PathDelay([]string{"a", "a", "g"}), 1e-9)
	assert.Contains(t, buf.String(), "no connection between path nodes")
}
