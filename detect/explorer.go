// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package detect

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/db47h/hazsim"
)

// DefaultMaxDepth is the default path search depth ceiling.
//
const DefaultMaxDepth = 100

// An Explorer enumerates the signal paths of a circuit.
//
// A path is a sequence of node ids ordered from a primary input to the node
// it reaches: [input, ..., node]. Path sets are computed on demand and cached
// for the lifetime of the Explorer. An Explorer is safe for concurrent use.
//
type Explorer struct {
	c        *hazsim.Circuit
	maxDepth int
	log      *slog.Logger

	mu    sync.Mutex
	cache map[string][][]string
}

// NewExplorer returns an Explorer for c. A maxDepth <= 0 selects
// DefaultMaxDepth. A nil logger selects slog.Default().
//
func NewExplorer(c *hazsim.Circuit, maxDepth int, log *slog.Logger) *Explorer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if log == nil {
		log = slog.Default()
	}
	return &Explorer{c: c, maxDepth: maxDepth, log: log, cache: make(map[string][][]string)}
}

type frame struct {
	id   string
	ins  []hazsim.Connection
	next int
}

// PathsTo returns all paths from a primary input to node id. The returned
// slices are shared with the cache and must not be modified.
//
// Nodes already on the current branch are skipped, so cyclic graphs
// terminate. A branch deeper than the depth ceiling is abandoned with a
// warning; the paths found on other branches are still returned.
//
func (e *Explorer) PathsTo(id string) [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ps, ok := e.cache[id]; ok {
		return ps
	}
	ps := e.search(id)
	e.cache[id] = ps
	return ps
}

func (e *Explorer) search(id string) [][]string {
	var (
		paths   [][]string
		seen    = make(map[string]bool)
		onStack = map[string]bool{id: true}
		stack   = []frame{{id: id, ins: e.c.Incoming(id)}}
		warned  bool
	)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if e.c.IsInput(top.id) {
			p := make([]string, len(stack))
			for i := range stack {
				p[len(stack)-1-i] = stack[i].id
			}
			if k := strings.Join(p, "\x00"); !seen[k] {
				seen[k] = true
				paths = append(paths, p)
			}
			top.next = len(top.ins)
		}
		if top.next >= len(top.ins) {
			delete(onStack, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		from := top.ins[top.next].From
		top.next++
		if onStack[from] {
			continue
		}
		if len(stack) >= e.maxDepth {
			if !warned {
				e.log.Warn("path search depth ceiling reached, branch abandoned", "node", id, "depth", e.maxDepth)
				warned = true
			}
			continue
		}
		onStack[from] = true
		stack = append(stack, frame{id: from, ins: e.c.Incoming(from)})
	}
	return paths
}

// PathDelay returns the propagation delay along path: the delay of every gate
// on the path plus the delay of the connections between consecutive nodes.
// A missing connection is logged and counts as 0.
//
func (e *Explorer) PathDelay(path []string) float64 {
	var d float64
	for i, id := range path {
		if g, ok := e.c.Gate(id); ok {
			d += g.Delay
		}
		if i == 0 {
			continue
		}
		cn, ok := e.c.Connection(path[i-1], id)
		if !ok {
			e.log.Warn("no connection between path nodes", "from", path[i-1], "node", id)
			continue
		}
		d += cn.Delay
	}
	return d
}
