package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

var (
	// Global flags
	logLevel string
	quiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "breadboard",
	Short: "breadboard - analog circuit capture and simulation",
	Long: `breadboard simulates analog circuits described as SPICE decks.

Examples:
  breadboard run rc.cir                   # Run the analysis the deck names
  breadboard run amp.cir --profile ac.yaml
  breadboard netlist amp.cir -o amp.json  # Export a JSON netlist
  breadboard check amp.cir                # Lint the deck
  breadboard models parts.yaml            # List model cards
  breadboard shell rc.cir                 # Interactive session`,
	Version:      "0.9.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "engine log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress engine logging")
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

// engineLogger builds the event sink the persistent flags select.
// Events go to stderr so tables on stdout stay pipeable.
func engineLogger() (simlog.Logger, error) {
	if quiet {
		return simlog.Noop{}, nil
	}
	level, err := parseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return simlog.NewSlog(slog.New(h)), nil
}
