package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/pkg/modellib"
)

var modelsCmd = &cobra.Command{
	Use:   "models [lib.yaml]",
	Short: "List model cards",
	Long: `List the builtin device model cards, plus the cards of a YAML
library when one is given. Library cards shadow builtin cards of the
same name during simulation.

Examples:
  breadboard models
  breadboard models parts.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModelsList,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	printCards(w, "builtin", modellib.Builtin())

	if len(args) == 1 {
		lib := modellib.New()
		if err := lib.LoadFile(args[0]); err != nil {
			return err
		}
		printCards(w, args[0], lib)
	}
	return nil
}

func printCards(w io.Writer, source string, lib *modellib.Library) {
	fmt.Fprintf(w, "\n%s (%d cards):\n", source, lib.Len())
	fmt.Fprintln(w, "-------------------------------------------")
	for _, name := range lib.Names() {
		m, _ := lib.Lookup(name)
		fmt.Fprintf(w, "  %-10s %-5s %2d params  %s\n", name, m.Type, len(m.Params), lib.Doc(name))
	}
}
