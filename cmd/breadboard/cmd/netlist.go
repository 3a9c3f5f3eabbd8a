package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/netlist"
	"github.com/breadboard-eda/breadboard/pkg/schematic"
)

var (
	netlistFormat string
	netlistOut    string
)

var netlistCmd = &cobra.Command{
	Use:   "netlist <deck.cir>",
	Short: "Export a deck as a structured netlist",
	Long: `Lift a SPICE deck back into a schematic module and export it as a
netlist other tools consume: Yosys-style JSON or a KiCad netlist.

Examples:
  breadboard netlist amp.cir                    # JSON to stdout
  breadboard netlist amp.cir -o amp.json
  breadboard netlist amp.cir --format kicad -o amp.net`,
	Args: cobra.ExactArgs(1),
	RunE: runNetlist,
}

func init() {
	rootCmd.AddCommand(netlistCmd)

	netlistCmd.Flags().StringVar(&netlistFormat, "format", "json", "output format: json or kicad")
	netlistCmd.Flags().StringVarP(&netlistOut, "output", "o", "", "output file (default stdout)")
}

func runNetlist(cmd *cobra.Command, args []string) error {
	d, err := loadDeck(args[0])
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	m, err := deck.ToModule(schematic.NewDesign(), name, d)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if netlistOut != "" {
		f, err := os.Create(netlistOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", netlistOut, err)
		}
		defer f.Close()
		out = f
	}

	switch netlistFormat {
	case "json":
		return netlist.WriteJSON(out, netlist.FromModule(m))
	case "kicad":
		return netlist.WriteKiCad(out, m)
	default:
		return fmt.Errorf("unknown format: %s (use: json, kicad)", netlistFormat)
	}
}
