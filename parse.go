// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import (
	"strconv"
	"strings"

	"github.com/db47h/hazsim/internal/lex"
	"github.com/pkg/errors"
)

// Default timings used by Parse, in ns.
//
const (
	NotDelay  = 1.0
	GateDelay = 2.0 // AND and OR gates
	WireDelay = 0.1
)

// Names given to the parts synthesized by Parse.
//
const (
	ParsedName       = "parsed_circuit"
	ParsedOutputID   = "out1"
	ParsedOutputName = "Y"
)

// Parse builds a circuit from an infix boolean expression.
//
// Operators are AND, OR, NOT (case insensitive) or their short forms &, | and
// !. NOT binds tighter than AND, which binds tighter than OR. Parentheses
// group sub-expressions:
//
//	c, err := Parse("A OR !B AND (C | D)")
//
// Every distinct operand becomes a primary input with id the lowercased
// operand, display name the uppercased operand and initial value 0. Every
// operator application becomes a gate g1, g2, ... wired to its operands.
// The final value drives a single output "out1".
//
func Parse(expr string) (*Circuit, error) {
	items, err := lex.Lex(expr)
	if err != nil {
		var le *lex.Error
		if errors.As(err, &le) {
			return nil, parseError(expr, le.Pos, le.Msg)
		}
		return nil, err
	}
	if len(items) == 1 {
		return nil, parseError(expr, 0, "empty expression")
	}

	p := &parser{expr: expr, c: NewCircuit(ParsedName)}
	for _, it := range items {
		if id := strings.ToLower(it.Value); it.Type == lex.Ident && !p.c.IsInput(id) {
			if err = p.c.AddInput(id, strings.ToUpper(it.Value), 0); err != nil {
				return nil, err
			}
		}
	}
	if err = p.run(items); err != nil {
		return nil, err
	}
	if err = p.c.AddOutput(p.outputID(), ParsedOutputName, p.vals[0]); err != nil {
		return nil, err
	}
	return p.c, nil
}

type parser struct {
	expr string
	c    *Circuit
	vals []string // node ids
	ops  []lex.Item
	n    int // gate count
}

func prec(t lex.Type) int {
	switch t {
	case lex.Not:
		return 3
	case lex.And:
		return 2
	case lex.Or:
		return 1
	}
	return 0
}

func (p *parser) run(items []lex.Item) error {
	expectOperand := true
	var prev lex.Item
	for _, it := range items {
		switch it.Type {
		case lex.Ident:
			if !expectOperand {
				return parseError(p.expr, it.Pos, "unexpected operand "+strconv.Quote(it.Value)+", expected operator")
			}
			p.vals = append(p.vals, strings.ToLower(it.Value))
			expectOperand = false
		case lex.Not, lex.LParen:
			if !expectOperand {
				return parseError(p.expr, it.Pos, "unexpected "+it.Type.String()+", expected operator")
			}
			p.ops = append(p.ops, it)
		case lex.And, lex.Or:
			if expectOperand {
				return parseError(p.expr, it.Pos, "unexpected "+it.Type.String()+", expected operand")
			}
			for len(p.ops) > 0 {
				top := p.ops[len(p.ops)-1]
				if top.Type == lex.LParen || prec(top.Type) < prec(it.Type) {
					break
				}
				if err := p.apply(); err != nil {
					return err
				}
			}
			p.ops = append(p.ops, it)
			expectOperand = true
		case lex.RParen:
			if expectOperand {
				if prev.Type == lex.LParen {
					return parseError(p.expr, prev.Pos, "empty parentheses")
				}
				return parseError(p.expr, it.Pos, "unexpected ), expected operand")
			}
			for {
				if len(p.ops) == 0 {
					return parseError(p.expr, it.Pos, "unbalanced )")
				}
				if p.ops[len(p.ops)-1].Type == lex.LParen {
					p.ops = p.ops[:len(p.ops)-1]
					break
				}
				if err := p.apply(); err != nil {
					return err
				}
			}
		case lex.EOF:
			if expectOperand {
				return parseError(p.expr, it.Pos, "unexpected end of input, expected operand")
			}
			for len(p.ops) > 0 {
				if top := p.ops[len(p.ops)-1]; top.Type == lex.LParen {
					return parseError(p.expr, top.Pos, "unclosed (")
				}
				if err := p.apply(); err != nil {
					return err
				}
			}
		}
		prev = it
	}
	if len(p.vals) != 1 {
		return parseError(p.expr, len(p.expr), "malformed expression")
	}
	return nil
}

// apply pops the top operator and its operands and pushes the resulting gate.
//
func (p *parser) apply() error {
	op := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]

	arity := 2
	kind, delay := And, GateDelay
	switch op.Type {
	case lex.Not:
		arity, kind, delay = 1, Not, NotDelay
	case lex.Or:
		kind = Or
	}
	if len(p.vals) < arity {
		return parseError(p.expr, op.Pos, "missing operand for "+op.Type.String())
	}
	ins := append([]string(nil), p.vals[len(p.vals)-arity:]...)
	p.vals = p.vals[:len(p.vals)-arity]

	id := p.gateID()
	if err := p.c.AddGate(Gate{ID: id, Kind: kind, Delay: delay, Inputs: ins}); err != nil {
		return err
	}
	for _, in := range ins {
		if err := p.c.Connect(in, id, WireDelay); err != nil {
			return err
		}
	}
	p.vals = append(p.vals, id)
	return nil
}

// outputID returns ParsedOutputID, or out2, out3... if an operand already
// uses it.
//
func (p *parser) outputID() string {
	id := ParsedOutputID
	for i := 2; p.c.IsNode(id); i++ {
		id = "out" + strconv.Itoa(i)
	}
	return id
}

// gateID returns the next free gate id, skipping operands named like gates.
//
func (p *parser) gateID() string {
	for {
		p.n++
		if id := "g" + strconv.Itoa(p.n); !p.c.IsNode(id) {
			return id
		}
	}
}
