package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/pkg/deck"
)

var checkModels string

var checkCmd = &cobra.Command{
	Use:   "check <deck.cir>",
	Short: "Lint a deck for wiring mistakes",
	Long: `Check a deck without simulating it: a missing ground reference,
single-connection nodes, duplicate element names, voltage sources
wired in parallel and model references no card defines.

Warnings print and pass; errors fail the command.

Examples:
  breadboard check amp.cir
  breadboard check amp.cir --models parts.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkModels, "models", "", "YAML model library merged under the deck's cards")
}

func runCheck(cmd *cobra.Command, args []string) error {
	d, err := loadDeck(args[0])
	if err != nil {
		return err
	}
	models, err := loadModels(checkModels, d)
	if err != nil {
		return err
	}

	findings := deck.Check(d, models)
	if len(findings) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: clean\n", args[0])
		return nil
	}

	errors := 0
	for _, f := range findings {
		fmt.Fprintln(cmd.OutOrStdout(), f)
		if f.Severity == deck.Error {
			errors++
		}
	}
	if errors > 0 {
		return fmt.Errorf("%s: %d errors", args[0], errors)
	}
	return nil
}
