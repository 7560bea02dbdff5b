// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package hazsim

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Description is the structured, serializable form of a circuit.
//
// Inputs and outputs decode either from a JSON array of records or from a
// JSON object keyed by id, in which case the key provides the id when the
// record has none. They always encode as arrays.
//
type Description struct {
	Name        string           `json:"name" validate:"required"`
	Gates       []GateDesc       `json:"gates" validate:"required,dive"`
	Inputs      InputList        `json:"inputs" validate:"required,dive"`
	Outputs     OutputList       `json:"outputs" validate:"required,dive"`
	Connections []ConnectionDesc `json:"connections" validate:"required,dive"`
}

// GateDesc describes a gate.
//
type GateDesc struct {
	ID     string   `json:"id" validate:"required"`
	Type   string   `json:"type" validate:"required"`
	Delay  *float64 `json:"delay" validate:"required,gte=0"`
	Inputs []string `json:"inputs" validate:"required,dive,required"`
	Output string   `json:"output" validate:"required"`
}

// InputDesc describes a primary input.
//
type InputDesc struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Initial *int   `json:"initial_value" validate:"required,oneof=0 1"`
}

// OutputDesc describes a primary output.
//
type OutputDesc struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Source string `json:"source" validate:"required"`
}

// ConnectionDesc describes a wire.
//
type ConnectionDesc struct {
	From  string   `json:"from" validate:"required"`
	To    string   `json:"to" validate:"required"`
	Delay *float64 `json:"delay" validate:"required,gte=0"`
}

// InputList is a list of inputs that also decodes from a JSON object keyed
// by input id.
//
type InputList []InputDesc

// UnmarshalJSON implements json.Unmarshaler.
//
func (l *InputList) UnmarshalJSON(data []byte) error {
	return decodeKeyed(data, (*[]InputDesc)(l), func(d *InputDesc, key string) {
		if d.ID == "" {
			d.ID = key
		}
	})
}

// OutputList is a list of outputs that also decodes from a JSON object keyed
// by output id.
//
type OutputList []OutputDesc

// UnmarshalJSON implements json.Unmarshaler.
//
func (l *OutputList) UnmarshalJSON(data []byte) error {
	return decodeKeyed(data, (*[]OutputDesc)(l), func(d *OutputDesc, key string) {
		if d.ID == "" {
			d.ID = key
		}
	})
}

// decodeKeyed decodes data as either an array of T or an object of T keyed by
// id, preserving key order.
//
func decodeKeyed[T any](data []byte, l *[]T, setKey func(*T, string)) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if len(data) == 0 || data[0] != '{' {
		return dec.Decode(l)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	out := make([]T, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v T
		if err = dec.Decode(&v); err != nil {
			return err
		}
		setKey(&v, key)
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}

// DecodeDescription reads a JSON circuit description from r. Unknown fields,
// wrong types and malformed JSON are reported as a *ValidationError.
// The description is not validated; see FromDescription.
//
func DecodeDescription(r io.Reader) (*Description, error) {
	var d Description
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return nil, jsonError(err)
	}
	return &d, nil
}

func jsonError(err error) error {
	var (
		te *json.UnmarshalTypeError
		se *json.SyntaxError
	)
	switch {
	case errors.As(err, &te):
		return validationError(te.Field, "expected "+te.Type.String()+", got "+te.Value)
	case errors.As(err, &se):
		return validationError("", "malformed JSON: "+se.Error())
	case err == io.EOF:
		return validationError("", "empty description")
	}
	return validationError("", strings.TrimPrefix(err.Error(), "json: "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all required fields are present and well formed.
// The returned error is a *ValidationError naming the first offending field,
// e.g. "gates[0].delay: required".
//
func (d *Description) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return validationError("", err.Error())
	}
	fe := ves[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return validationError(field, "required")
	case "gte":
		return validationError(field, "must be >= "+fe.Param())
	case "oneof":
		return validationError(field, "must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return validationError(field, "failed "+fe.Tag()+" check")
}

// InferPorts fills in gate fields that can be derived from the rest of the
// description: a gate without inputs gets the sources of the connections
// ending at it, in connection order, and a gate without output gets its id.
//
func (d *Description) InferPorts() {
	for i := range d.Gates {
		g := &d.Gates[i]
		if len(g.Inputs) == 0 {
			ins := make([]string, 0, 2)
			for _, c := range d.Connections {
				if c.To == g.ID {
					ins = append(ins, c.From)
				}
			}
			g.Inputs = ins
		}
		if g.Output == "" {
			g.Output = g.ID
		}
	}
}

// FromDescription builds a circuit from a description. The description is
// validated first, then the resulting circuit.
//
func FromDescription(d *Description) (*Circuit, error) {
	if d == nil {
		return nil, validationError("", "nil description")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	c := NewCircuit(d.Name)
	for _, in := range d.Inputs {
		if err := c.AddInput(in.ID, in.Name, *in.Initial); err != nil {
			return nil, err
		}
	}
	for _, g := range d.Gates {
		err := c.AddGate(Gate{
			ID:     g.ID,
			Kind:   GateKind(strings.ToUpper(g.Type)),
			Delay:  *g.Delay,
			Inputs: g.Inputs,
			Output: g.Output,
		})
		if err != nil {
			return nil, err
		}
	}
	for _, o := range d.Outputs {
		if err := c.AddOutput(o.ID, o.Name, o.Source); err != nil {
			return nil, err
		}
	}
	for _, cn := range d.Connections {
		if err := c.Connect(cn.From, cn.To, *cn.Delay); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Description returns the structured form of c. FromDescription(c.Description())
// yields a circuit equivalent to c.
//
func (c *Circuit) Description() *Description {
	d := &Description{
		Name:        c.Name,
		Gates:       make([]GateDesc, 0, len(c.gateIDs)),
		Inputs:      make(InputList, 0, len(c.inputIDs)),
		Outputs:     make(OutputList, 0, len(c.outputIDs)),
		Connections: make([]ConnectionDesc, 0, len(c.conns)),
	}
	for _, id := range c.gateIDs {
		g := c.gates[id]
		delay := g.Delay
		d.Gates = append(d.Gates, GateDesc{
			ID:     g.ID,
			Type:   string(g.Kind),
			Delay:  &delay,
			Inputs: append([]string{}, g.Inputs...),
			Output: g.Output,
		})
	}
	for _, id := range c.inputIDs {
		in := c.inputs[id]
		v := in.Initial
		d.Inputs = append(d.Inputs, InputDesc{ID: in.ID, Name: in.Name, Initial: &v})
	}
	for _, id := range c.outputIDs {
		o := c.outputs[id]
		d.Outputs = append(d.Outputs, OutputDesc{ID: o.ID, Name: o.Name, Source: o.Source})
	}
	for _, cn := range c.conns {
		delay := cn.Delay
		d.Connections = append(d.Connections, ConnectionDesc{From: cn.From, To: cn.To, Delay: &delay})
	}
	return d
}
