// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package detect

import "strconv"

// Value is a symbolic logic value: a Constant, a Literal or a
// NegatedLiteral. The set is closed.
//
type Value interface {
	String() string
	value()
}

// Constant is a known logic value, 0 or 1.
//
type Constant int

// Literal is the variable ID in its original form.
//
type Literal struct {
	ID   string
	Name string
}

// NegatedLiteral is the complement of variable ID.
//
type NegatedLiteral struct {
	ID   string
	Name string
}

func (Constant) value()       {}
func (Literal) value()        {}
func (NegatedLiteral) value() {}

func (c Constant) String() string       { return strconv.Itoa(int(c)) }
func (l Literal) String() string        { return "X(" + l.Name + ")" }
func (l NegatedLiteral) String() string { return "~X(" + l.Name + ")" }

// Not returns the complement of v.
//
func Not(v Value) Value {
	switch v := v.(type) {
	case Constant:
		return 1 - v
	case Literal:
		return NegatedLiteral(v)
	case NegatedLiteral:
		return Literal(v)
	}
	panic("unknown symbolic value type")
}

// tokens summarizes the symbolic inputs of a gate.
//
type tokens struct {
	zero, one bool
	lits      []Value // distinct literals and negated literals
	clash     bool    // a literal and its complement are both present
}

func scan(vs []Value) tokens {
	var t tokens
	for _, v := range vs {
		switch v := v.(type) {
		case Constant:
			if v == 0 {
				t.zero = true
			} else {
				t.one = true
			}
		case Literal, NegatedLiteral:
			dup := false
			for _, l := range t.lits {
				if l == v {
					dup = true
				} else if l == Not(v) {
					t.clash = true
				}
			}
			if !dup {
				t.lits = append(t.lits, v)
			}
		}
	}
	return t
}

// And applies the symbolic AND rule. clash reports that a literal and its
// complement reconverge, a static-0 hazard site.
//
//	any 0                  => 0
//	X and ~X               => 0, clash
//	one token, others 1    => token
//	all 1                  => 1
//	otherwise              => 0
//
func And(ins []Value) (out Value, clash bool) {
	t := scan(ins)
	switch {
	case t.zero:
		return Constant(0), false
	case t.clash:
		return Constant(0), true
	case len(t.lits) == 1:
		return t.lits[0], false
	case len(t.lits) == 0:
		return Constant(1), false
	}
	return Constant(0), false
}

// Or applies the symbolic OR rule, the dual of And. clash marks a static-1
// hazard site.
//
func Or(ins []Value) (out Value, clash bool) {
	t := scan(ins)
	switch {
	case t.one:
		return Constant(1), false
	case t.clash:
		return Constant(1), true
	case len(t.lits) == 1:
		return t.lits[0], false
	case len(t.lits) == 0:
		return Constant(0), false
	}
	return Constant(1), false
}

// Clash reports whether a literal and its complement are both among ins.
//
func Clash(ins []Value) bool {
	return scan(ins).clash
}
