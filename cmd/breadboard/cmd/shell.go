package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/pkg/analysis"
	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/modellib"
	"github.com/breadboard-eda/breadboard/pkg/sim"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
	"github.com/breadboard-eda/breadboard/pkg/util"
)

var shellModels string

var shellCmd = &cobra.Command{
	Use:   "shell [deck.cir]",
	Short: "Interactive simulation session",
	Long: `Open an interactive session on a deck: run analyses, reprint
series, tweak element values and rerun without leaving the prompt.
The optional argument preloads a deck.

Examples:
  breadboard shell
  breadboard shell rc.cir --models parts.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().StringVar(&shellModels, "models", "", "YAML model library merged under the deck's cards")
}

var shellCompleter = readline.NewPrefixCompleter(
	readline.PcItem("load"),
	readline.PcItem("op"),
	readline.PcItem("tran"),
	readline.PcItem("ac",
		readline.PcItem("dec"),
		readline.PcItem("oct"),
		readline.PcItem("lin"),
	),
	readline.PcItem("dc"),
	readline.PcItem("print"),
	readline.PcItem("set"),
	readline.PcItem("models"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// shell holds one interactive session: the working deck, its merged
// model cards and the series of the last run.
type shell struct {
	rl     *readline.Instance
	logger simlog.Logger

	path    string
	deck    *deck.Deck
	models  map[string]device.ModelParam
	kind    deck.AnalysisType
	results map[string][]float64
}

func runShell(cmd *cobra.Command, args []string) error {
	logger, err := engineLogger()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "breadboard> ",
		HistoryFile:     filepath.Join(os.TempDir(), "breadboard_history"),
		AutoComplete:    shellCompleter,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}

	s := &shell{rl: rl, logger: logger}
	if len(args) == 1 {
		s.cmdLoad(args)
	}
	s.run()
	return nil
}

// run is the command loop. Errors inside commands print and keep the
// session alive; only EOF and quit leave it.
func (s *shell) run() {
	defer s.rl.Close()

	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "load", "l":
			s.cmdLoad(args)

		case "op":
			s.execute(deck.AnalysisOP, analysis.NewOP())

		case "tran":
			s.cmdTran(args)

		case "ac":
			s.cmdAC(args)

		case "dc":
			s.cmdDC(args)

		case "print", "p":
			s.cmdPrint(args)

		case "set":
			s.cmdSet(args)

		case "models":
			s.cmdModels(args)

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
breadboard commands:
  Deck:
    load <deck.cir>      - Parse a deck and make it the working circuit
    set <element> <val>  - Change an element value (set R1 2.2k)
    models [lib.yaml]    - List model cards

  Analysis (each run rebuilds the circuit):
    op                                         - Operating point
    tran <step> <stop> [start] [max] [uic]     - Transient (tran 10u 5m)
    ac <dec|oct|lin> <points> <fstart> <fstop> - Small-signal sweep
    dc <src> <start> <stop> <step> [src2 start2 stop2 step2]

    With no arguments, tran/ac/dc reuse the loaded deck's card.

  Results:
    print [name ...]     - Reprint the last results, optionally only
                           the named series (print V(out) I(V1))

  General:
    help                 - Show this help
    quit                 - Exit`)
}

func (s *shell) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: load <deck.cir>")
		return
	}

	d, err := loadDeck(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	models, err := loadModels(shellModels, d)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	s.path = args[0]
	s.deck = d
	s.models = models
	s.results = nil
	fmt.Fprintf(s.rl.Stdout(), "Loaded %s: %q, %d elements, %s analysis\n",
		args[0], d.Title, len(d.Elements), d.Analysis)
}

// execute assembles a fresh circuit from the working deck and runs one
// analysis, keeping the series for print.
func (s *shell) execute(kind deck.AnalysisType, analyzer sim.Runner) {
	if s.deck == nil {
		fmt.Fprintln(s.rl.Stdout(), "No deck loaded (use 'load <deck.cir>')")
		return
	}

	ckt := circuit.NewWithComplex(s.deck.Title, kind == deck.AnalysisAC)
	defer ckt.Destroy()
	ckt.SetModels(s.models)
	ckt.SetTemperature(s.deck.Temp)

	if err := ckt.AssignNodeBranchMaps(s.deck.Elements); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := ckt.CreateMatrix(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := ckt.SetupDevices(s.deck.Elements); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	analyzer.SetLogger(s.logger)
	if err := analyzer.Setup(ckt); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Analysis setup failed: %v\n", err)
		return
	}
	if err := analyzer.Execute(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Analysis failed: %v\n", err)
		return
	}

	s.kind = kind
	s.results = analyzer.GetResults()
	printResults(s.rl.Stdout(), kind, s.results)
}

func (s *shell) cmdTran(args []string) {
	if len(args) == 0 {
		if s.deck != nil && s.deck.Analysis == deck.AnalysisTRAN {
			p := s.deck.TranParam
			s.execute(deck.AnalysisTRAN, analysis.NewTransient(p.TStart, p.TStop, p.TStep, p.TMax, p.UIC))
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "Usage: tran <step> <stop> [start] [max] [uic]")
		return
	}

	uic := false
	if strings.EqualFold(args[len(args)-1], "uic") {
		uic = true
		args = args[:len(args)-1]
	}
	if len(args) < 2 || len(args) > 4 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: tran <step> <stop> [start] [max] [uic]")
		return
	}

	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := deck.ParseValue(a)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid value %s: %v\n", a, err)
			return
		}
		vals[i] = v
	}

	var start, max float64
	step, stop := vals[0], vals[1]
	if len(vals) > 2 {
		start = vals[2]
	}
	if len(vals) > 3 {
		max = vals[3]
	}
	s.execute(deck.AnalysisTRAN, analysis.NewTransient(start, stop, step, max, uic))
}

func (s *shell) cmdAC(args []string) {
	if len(args) == 0 {
		if s.deck != nil && s.deck.Analysis == deck.AnalysisAC {
			p := s.deck.ACParam
			s.execute(deck.AnalysisAC, analysis.NewAC(p.FStart, p.FStop, p.Points, p.Sweep))
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "Usage: ac <dec|oct|lin> <points> <fstart> <fstop>")
		return
	}
	if len(args) != 4 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: ac <dec|oct|lin> <points> <fstart> <fstop>")
		return
	}

	points, err := strconv.Atoi(args[1])
	if err != nil || points < 1 {
		fmt.Fprintf(s.rl.Stdout(), "Invalid point count %s\n", args[1])
		return
	}
	fstart, err := deck.ParseValue(args[2])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid frequency %s: %v\n", args[2], err)
		return
	}
	fstop, err := deck.ParseValue(args[3])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid frequency %s: %v\n", args[3], err)
		return
	}
	s.execute(deck.AnalysisAC, analysis.NewAC(fstart, fstop, points, args[0]))
}

func (s *shell) cmdDC(args []string) {
	if len(args) == 0 {
		if s.deck != nil && s.deck.Analysis == deck.AnalysisDC {
			p := s.deck.DCParam
			if p.Source2 != "" {
				s.execute(deck.AnalysisDC, analysis.NewDCSweep(
					[]string{p.Source1, p.Source2},
					[]float64{p.Start1, p.Start2},
					[]float64{p.Stop1, p.Stop2},
					[]float64{p.Increment1, p.Increment2},
				))
			} else {
				s.execute(deck.AnalysisDC, analysis.NewDCSweep(
					[]string{p.Source1}, []float64{p.Start1}, []float64{p.Stop1}, []float64{p.Increment1},
				))
			}
			return
		}
		fmt.Fprintln(s.rl.Stdout(), "Usage: dc <src> <start> <stop> <step> [src2 start2 stop2 step2]")
		return
	}
	if len(args) != 4 && len(args) != 8 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: dc <src> <start> <stop> <step> [src2 start2 stop2 step2]")
		return
	}

	var sources []string
	var starts, stops, steps []float64
	for i := 0; i < len(args); i += 4 {
		sources = append(sources, args[i])
		for j, dst := range []*[]float64{&starts, &stops, &steps} {
			v, err := deck.ParseValue(args[i+1+j])
			if err != nil {
				fmt.Fprintf(s.rl.Stdout(), "Invalid value %s: %v\n", args[i+1+j], err)
				return
			}
			*dst = append(*dst, v)
		}
	}
	s.execute(deck.AnalysisDC, analysis.NewDCSweep(sources, starts, stops, steps))
}

func (s *shell) cmdPrint(args []string) {
	if s.results == nil {
		fmt.Fprintln(s.rl.Stdout(), "No results yet (run 'op', 'tran', 'ac' or 'dc' first)")
		return
	}
	if len(args) == 0 {
		printResults(s.rl.Stdout(), s.kind, s.results)
		return
	}

	filtered, err := sim.FilterProbes(s.results, args)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	printResults(s.rl.Stdout(), s.kind, filtered)
}

func (s *shell) cmdSet(args []string) {
	if s.deck == nil {
		fmt.Fprintln(s.rl.Stdout(), "No deck loaded (use 'load <deck.cir>')")
		return
	}
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set <element> <value>")
		return
	}

	value, err := deck.ParseValue(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid value %s: %v\n", args[1], err)
		return
	}

	for i := range s.deck.Elements {
		if strings.EqualFold(s.deck.Elements[i].Name, args[0]) {
			s.deck.Elements[i].Value = value
			fmt.Fprintf(s.rl.Stdout(), "%s = %s\n", s.deck.Elements[i].Name, util.FormatValue(value))
			return
		}
	}
	fmt.Fprintf(s.rl.Stdout(), "No element named %s\n", args[0])
}

func (s *shell) cmdModels(args []string) {
	if len(args) == 1 {
		lib := modellib.New()
		if err := lib.LoadFile(args[0]); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
		printCards(s.rl.Stdout(), args[0], lib)
		return
	}

	printCards(s.rl.Stdout(), "builtin", modellib.Builtin())
	if s.deck != nil && len(s.deck.Models) > 0 {
		names := make([]string, 0, len(s.deck.Models))
		for name := range s.deck.Models {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(s.rl.Stdout(), "\n%s (%d cards):\n", s.path, len(names))
		fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
		for _, name := range names {
			m := s.deck.Models[name]
			fmt.Fprintf(s.rl.Stdout(), "  %-10s %-5s %2d params\n", name, m.Type, len(m.Params))
		}
	}
}
