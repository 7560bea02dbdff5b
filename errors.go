// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A ParseError is returned by Parse for malformed expressions.
//
type ParseError struct {
	Input string
	Pos   int // 0 based byte offset
	Msg   string
}

func (e *ParseError) Error() string {
	return "in " + strconv.Quote(e.Input) + " at pos " + strconv.Itoa(e.Pos+1) + ": " + e.Msg
}

func parseError(in string, pos int, msg string) error {
	return errors.WithStack(&ParseError{Input: in, Pos: pos, Msg: msg})
}

// A ValidationError reports a malformed circuit or circuit description.
// Field names the offending field or node when known.
//
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func validationError(field, msg string) error {
	return errors.WithStack(&ValidationError{Field: field, Msg: msg})
}

// A CycleError is returned when the gate-to-gate graph of a circuit is not
// acyclic. Gates lists the gates that could not be ordered.
//
type CycleError struct {
	Gates []string
}

func (e *CycleError) Error() string {
	return "circuit contains a cycle through gates " + strings.Join(e.Gates, ", ")
}

// An EvaluationError is returned when a circuit cannot be evaluated: unknown
// gate kind, wrong arity, unresolved input or output reference.
//
type EvaluationError struct {
	Node string
	Msg  string
}

func (e *EvaluationError) Error() string {
	if e.Node == "" {
		return e.Msg
	}
	return e.Node + ": " + e.Msg
}

func evalError(node, msg string) error {
	return errors.WithStack(&EvaluationError{Node: node, Msg: msg})
}
