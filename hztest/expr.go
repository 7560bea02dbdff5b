// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hztest

import (
	"math/rand"
	"strings"
)

// Expr is a boolean expression tree used to generate parser and detector
// inputs with a known truth table.
//
type Expr interface {
	// String returns the expression in the syntax accepted by hazsim.Parse.
	String() string
	// Eval evaluates the expression. values is keyed by lowercased variable
	// name, as are the inputs of a parsed circuit.
	Eval(values map[string]int) int
}

// Var is a variable.
//
type Var string

func (v Var) String() string { return string(v) }

// Eval implements Expr.
//
func (v Var) Eval(values map[string]int) int { return values[strings.ToLower(string(v))] }

// NotExpr is the negation of X.
//
type NotExpr struct{ X Expr }

func (e NotExpr) String() string { return "!" + e.X.String() }

// Eval implements Expr.
//
func (e NotExpr) Eval(values map[string]int) int { return 1 - e.X.Eval(values) }

// BinExpr is a binary AND ('&') or OR ('|') expression.
//
type BinExpr struct {
	Op   byte
	X, Y Expr
}

func (e BinExpr) String() string {
	return "(" + e.X.String() + " " + string(e.Op) + " " + e.Y.String() + ")"
}

// Eval implements Expr.
//
func (e BinExpr) Eval(values map[string]int) int {
	x, y := e.X.Eval(values), e.Y.Eval(values)
	if e.Op == '&' {
		return x & y
	}
	return x | y
}

// Vars returns n variable names A, B, C...
//
func Vars(n int) []string {
	vs := make([]string, n)
	for i := range vs {
		vs[i] = string(rune('A' + i))
	}
	return vs
}

// RandomExpr returns a random expression over vars of at most the given
// depth, mixing AND, OR and NOT.
//
func RandomExpr(r *rand.Rand, vars []string, depth int) Expr {
	if depth <= 0 || r.Intn(4) == 0 {
		return Var(vars[r.Intn(len(vars))])
	}
	switch r.Intn(3) {
	case 0:
		return NotExpr{RandomExpr(r, vars, depth-1)}
	case 1:
		return BinExpr{'&', RandomExpr(r, vars, depth-1), RandomExpr(r, vars, depth-1)}
	}
	return BinExpr{'|', RandomExpr(r, vars, depth-1), RandomExpr(r, vars, depth-1)}
}

// RandomMonotoneExpr returns a random tree of the single binary operator op
// ('&' or '|') whose leaves are variables or negated variables drawn from
// vars. Only vars[0] may appear in both polarities: every other variable is
// given a random polarity used for all of its leaves. The tree has the given
// number of leaves, at least 1.
//
func RandomMonotoneExpr(r *rand.Rand, op byte, vars []string, leaves int) Expr {
	if leaves < 1 {
		leaves = 1
	}
	neg := make([]bool, len(vars))
	for i := range neg {
		neg[i] = r.Intn(2) == 0
	}
	es := make([]Expr, leaves)
	for i := range es {
		n := r.Intn(len(vars))
		var e Expr = Var(vars[n])
		if n == 0 && r.Intn(2) == 0 || n > 0 && neg[n] {
			e = NotExpr{e}
		}
		es[i] = e
	}
	for len(es) > 1 {
		i := r.Intn(len(es) - 1)
		es[i] = BinExpr{op, es[i], es[i+1]}
		es = append(es[:i+1], es[i+2:]...)
	}
	return es[0]
}
