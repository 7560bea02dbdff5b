// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command hazsim parses boolean expressions into gate-level circuits and
// reports their race conditions and hazards.
//
//	hazsim parse "A & !A"
//	hazsim simulate circuit.json --set a=1 --set b=0
//	hazsim detect "(A & B) | (!A & C)" --json
//	hazsim serve --config hazsim.yaml
//
// Circuit arguments are either an expression or the path to a JSON circuit
// description ("-" reads the description from standard input).
//
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
