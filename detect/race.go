// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package detect

import (
	"math"

	"github.com/db47h/hazsim"
)

// DefaultRaceThreshold is the default arrival time difference, in ns, under
// which two gate inputs are considered racing.
//
const DefaultRaceThreshold = 0.5

// A Race is a pair of inputs of the same gate whose signals arrive within the
// race threshold of each other.
//
type Race struct {
	GateID   string          `json:"gate_id"`
	GateType hazsim.GateKind `json:"gate_type"`
	Input1   string          `json:"input1"`
	Input2   string          `json:"input2"`
	Delay1   float64         `json:"delay1"`
	Delay2   float64         `json:"delay2"`
}

// Arrival returns the worst case arrival time of the signal on input port
// of gate: the longest path delay to port plus the delay of the wire from
// port to gate. Ports reached by no path count as 0.
//
func (d *Detector) Arrival(port, gate string) float64 {
	var t float64
	for _, p := range d.ex.PathsTo(port) {
		if pd := d.ex.PathDelay(p); pd > t {
			t = pd
		}
	}
	if cn, ok := d.c.Connection(port, gate); ok {
		t += cn.Delay
	}
	return t
}

// Races returns the races of the circuit, by gate in insertion order, then
// by input port pair in declaration order.
//
func (d *Detector) Races() []Race {
	races := make([]Race, 0)
	for _, g := range d.c.Gates() {
		ports := g.Ports()
		if len(ports) < 2 {
			continue
		}
		at := make([]float64, len(ports))
		for i, p := range ports {
			at[i] = d.Arrival(p, g.ID)
		}
		for i := 0; i < len(ports); i++ {
			for j := i + 1; j < len(ports); j++ {
				if math.Abs(at[i]-at[j]) < d.opts.RaceThreshold {
					races = append(races, Race{
						GateID:   g.ID,
						GateType: g.Kind,
						Input1:   ports[i],
						Input2:   ports[j],
						Delay1:   at[i],
						Delay2:   at[j],
					})
				}
			}
		}
	}
	return races
}
