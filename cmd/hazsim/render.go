// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/db47h/hazsim"
	"github.com/db47h/hazsim/detect"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	raceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	kindStyles   = map[detect.Kind]lipgloss.Style{
		detect.Static0: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		detect.Static1: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detect.Dynamic: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
)

func section(w io.Writer, title string, n int) {
	fmt.Fprintln(w, sectionStyle.Render(title+" ("+strconv.Itoa(n)+")"))
}

func none(w io.Writer) {
	fmt.Fprintln(w, "  "+dimStyle.Render("none"))
}

func ns(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64) + "ns"
}

func renderCircuit(w io.Writer, c *hazsim.Circuit) {
	fmt.Fprintln(w, titleStyle.Render(c.Name))
	section(w, "Inputs", len(c.Inputs()))
	for _, in := range c.Inputs() {
		fmt.Fprintf(w, "  %-8s %-8s %s\n", in.ID, in.Name, dimStyle.Render("initial "+strconv.Itoa(in.Initial)))
	}
	section(w, "Gates", len(c.Gates()))
	for _, g := range c.Gates() {
		fmt.Fprintf(w, "  %-8s %-8s %-8s <- %s\n", g.ID, g.Kind, ns(g.Delay), strings.Join(g.Inputs, ", "))
	}
	section(w, "Outputs", len(c.Outputs()))
	for _, o := range c.Outputs() {
		fmt.Fprintf(w, "  %-8s %-8s <- %s\n", o.ID, o.Name, o.Source)
	}
	section(w, "Connections", len(c.Connections()))
	for _, cn := range c.Connections() {
		fmt.Fprintf(w, "  %s -> %s %s\n", cn.From, cn.To, dimStyle.Render(ns(cn.Delay)))
	}
}

func renderValues(w io.Writer, c *hazsim.Circuit, vals map[string]int) {
	fmt.Fprintln(w, titleStyle.Render(c.Name))
	section(w, "Inputs", len(c.Inputs()))
	for _, in := range c.Inputs() {
		fmt.Fprintf(w, "  %-8s %-8s = %d\n", in.ID, in.Name, vals[in.ID])
	}
	section(w, "Gates", len(c.Gates()))
	for _, g := range c.Gates() {
		fmt.Fprintf(w, "  %-8s %-8s = %d\n", g.ID, g.Kind, vals[g.ID])
	}
	section(w, "Outputs", len(c.Outputs()))
	for _, o := range c.Outputs() {
		fmt.Fprintf(w, "  %-8s %-8s = %s\n", o.ID, o.Name, okStyle.Render(strconv.Itoa(vals[o.ID])))
	}
}

func renderReport(w io.Writer, c *hazsim.Circuit, rep detect.Report) {
	fmt.Fprintln(w, titleStyle.Render(c.Name))
	section(w, "Race conditions", len(rep.RaceConditions))
	if len(rep.RaceConditions) == 0 {
		none(w)
	}
	for _, r := range rep.RaceConditions {
		fmt.Fprintf(w, "  %s %-8s %s (%s) vs %s (%s)\n",
			raceStyle.Render("race"), r.GateID+" "+string(r.GateType),
			r.Input1, ns(r.Delay1), r.Input2, ns(r.Delay2))
	}
	section(w, "Hazards", len(rep.Hazards))
	if len(rep.Hazards) == 0 {
		none(w)
	}
	for _, h := range rep.Hazards {
		st, ok := kindStyles[h.Kind]
		if !ok {
			st = lipgloss.NewStyle()
		}
		fmt.Fprintf(w, "  %s %s at %s (%s) %s\n",
			st.Render(fmt.Sprintf("%-9s", h.Kind)), h.Variable, h.GateID, h.GateType,
			dimStyle.Render("["+string(h.Method)+"]"))
		fmt.Fprintln(w, "    "+dimStyle.Render(h.Description))
	}
	if len(rep.Hazards) == 0 && len(rep.RaceConditions) == 0 {
		fmt.Fprintln(w, okStyle.Render("no race condition or hazard found"))
	}
}
