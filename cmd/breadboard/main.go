// Command breadboard simulates schematics captured as SPICE decks or
// built with the schematic package. It wraps the analog engine in a
// small CLI: run an analysis, export a netlist, lint a deck, list
// model cards or poke at a circuit interactively.
package main

import "github.com/breadboard-eda/breadboard/cmd/breadboard/cmd"

func main() {
	cmd.Execute()
}
