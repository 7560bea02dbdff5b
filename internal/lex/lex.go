// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package lex implements the tokenizer for boolean expressions.
//
// Keywords AND, OR and NOT are matched case-insensitively and as whole words
// only. They are mapped to their operator form, so that the parser only deals
// with &, |, !, parentheses and identifiers.
//
package lex

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// Type is a token type.
//
type Type int

// Token types.
//
const (
	EOF Type = iota
	Ident
	And
	Or
	Not
	LParen
	RParen
)

var typeNames = [...]string{
	EOF:    "end of input",
	Ident:  "identifier",
	And:    "&",
	Or:     "|",
	Not:    "!",
	LParen: "(",
	RParen: ")",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown token"
	}
	return typeNames[t]
}

// Item is a lexed token. Pos is the 0 based byte offset of the token in
// the input.
//
type Item struct {
	Type  Type
	Value string
	Pos   int
}

// An Error is returned by Lex for input that cannot be tokenized.
//
type Error struct {
	Pos int
	Msg string
}

func (e *Error) Error() string {
	return e.Msg
}

var def = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `\s+`},
	{Name: "Keyword", Pattern: `(?i)\b(?:AND|OR|NOT)\b`},
	{Name: "Op", Pattern: `[&|!()]`},
	{Name: "Ident", Pattern: `[A-Za-z][A-Za-z0-9_]*`},
})

var (
	symKeyword = def.Symbols()["Keyword"]
	symOp      = def.Symbols()["Op"]
	symIdent   = def.Symbols()["Ident"]
)

// Lex tokenizes input. The returned slice always ends with an EOF item.
//
func Lex(input string) ([]Item, error) {
	l, err := def.LexString("", input)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	toks, err := lexer.ConsumeAll(l)
	if err != nil {
		var le *lexer.Error
		if errors.As(err, &le) {
			return nil, errors.WithStack(&Error{Pos: le.Pos.Offset, Msg: invalidChar(input, le.Pos.Offset)})
		}
		return nil, errors.WithStack(err)
	}

	items := make([]Item, 0, len(toks))
	for _, t := range toks {
		it := Item{Value: t.Value, Pos: t.Pos.Offset}
		switch t.Type {
		case lexer.EOF:
			it.Type = EOF
		case symIdent:
			it.Type = Ident
		case symKeyword:
			switch strings.ToUpper(t.Value) {
			case "AND":
				it.Type = And
			case "OR":
				it.Type = Or
			default:
				it.Type = Not
			}
		case symOp:
			switch t.Value {
			case "&":
				it.Type = And
			case "|":
				it.Type = Or
			case "!":
				it.Type = Not
			case "(":
				it.Type = LParen
			default:
				it.Type = RParen
			}
		default:
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func invalidChar(input string, pos int) string {
	if pos < 0 || pos >= len(input) {
		return "unexpected character"
	}
	r, _ := utf8.DecodeRuneInString(input[pos:])
	return "unexpected character " + strconv.QuoteRune(r)
}
