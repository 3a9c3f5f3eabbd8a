package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/analysis"
	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/modellib"
	"github.com/breadboard-eda/breadboard/pkg/rawfile"
	"github.com/breadboard-eda/breadboard/pkg/sim"
)

var (
	runProfile string
	runRaw     string
	runModels  string
	runTemp    float64
)

var runCmd = &cobra.Command{
	Use:   "run <deck.cir>",
	Short: "Parse a deck and run its analysis",
	Long: `Parse a SPICE deck, assemble the circuit and run the analysis the
deck names. A profile replaces the deck's analysis card, so the same
deck can run an operating point, a transient or a sweep without edits.

Examples:
  breadboard run rc.cir
  breadboard run amp.cir --models parts.yaml --temp 85
  breadboard run amp.cir --profile ac.yaml --raw amp.bbr`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProfile, "profile", "", "YAML profile replacing the deck's analysis card")
	runCmd.Flags().StringVar(&runRaw, "raw", "", "write the captured series to this waveform file")
	runCmd.Flags().StringVar(&runModels, "models", "", "YAML model library merged under the deck's cards")
	runCmd.Flags().Float64Var(&runTemp, "temp", 0, "simulation temperature in Celsius")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := engineLogger()
	if err != nil {
		return err
	}

	d, err := loadDeck(args[0])
	if err != nil {
		return err
	}
	models, err := loadModels(runModels, d)
	if err != nil {
		return err
	}

	kind := d.Analysis
	var profile *sim.Profile
	if runProfile != "" {
		p, err := sim.LoadProfileFile(runProfile)
		if err != nil {
			return err
		}
		profile = &p
		kind = analysisKind(p.Analysis)
	}

	ckt := circuit.NewWithComplex(d.Title, kind == deck.AnalysisAC)
	ckt.SetModels(models)
	ckt.SetTemperature(d.Temp)
	if profile != nil {
		ckt.SetTemperature(profile.Kelvin())
	}
	if cmd.Flags().Changed("temp") {
		ckt.SetTemperature(runTemp + consts.KELVIN)
	}

	if err := ckt.AssignNodeBranchMaps(d.Elements); err != nil {
		return fmt.Errorf("mapping %s: %w", args[0], err)
	}
	if err := ckt.CreateMatrix(); err != nil {
		return err
	}
	if err := ckt.SetupDevices(d.Elements); err != nil {
		return err
	}
	defer ckt.Destroy()

	analyzer, err := deckAnalyzer(d, profile)
	if err != nil {
		return err
	}
	analyzer.SetLogger(logger)
	if profile != nil {
		if c := profile.Convergence; c.MaxIter > 0 || c.Abstol > 0 || c.Reltol > 0 {
			analyzer.SetConvergence(c.MaxIter, c.Abstol, c.Reltol)
		}
	}

	if err := analyzer.Setup(ckt); err != nil {
		return fmt.Errorf("analysis setup: %w", err)
	}
	if err := analyzer.Execute(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	results := analyzer.GetResults()
	if profile != nil && len(profile.Probes) > 0 {
		results, err = sim.FilterProbes(results, profile.Probes)
		if err != nil {
			return err
		}
	}

	printResults(cmd.OutOrStdout(), kind, results)

	rawPath := runRaw
	if rawPath == "" && profile != nil {
		rawPath = profile.Raw
	}
	if rawPath != "" {
		f := rawfile.New(uuid.NewString(), d.Title, strings.ToLower(kind.String()), results)
		if err := rawfile.WriteFile(rawPath, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %s\n", rawPath)
	}
	return nil
}

// deckAnalyzer builds the analysis from the profile when one is given,
// otherwise from the deck's analysis card.
func deckAnalyzer(d *deck.Deck, profile *sim.Profile) (sim.Runner, error) {
	if profile != nil {
		return profile.Analyzer()
	}

	switch d.Analysis {
	case deck.AnalysisOP:
		return analysis.NewOP(), nil
	case deck.AnalysisTRAN:
		param := d.TranParam
		return analysis.NewTransient(param.TStart, param.TStop, param.TStep, param.TMax, param.UIC), nil
	case deck.AnalysisAC:
		param := d.ACParam
		return analysis.NewAC(param.FStart, param.FStop, param.Points, param.Sweep), nil
	case deck.AnalysisDC:
		param := d.DCParam
		if param.Source2 != "" {
			// nested sweep
			return analysis.NewDCSweep(
				[]string{param.Source1, param.Source2},
				[]float64{param.Start1, param.Start2},
				[]float64{param.Stop1, param.Stop2},
				[]float64{param.Increment1, param.Increment2},
			), nil
		}
		return analysis.NewDCSweep(
			[]string{param.Source1},
			[]float64{param.Start1},
			[]float64{param.Stop1},
			[]float64{param.Increment1},
		), nil
	}
	return nil, fmt.Errorf("unsupported analysis type %s", d.Analysis)
}

// analysisKind maps a profile kind onto the deck enum the printer keys
// its table shapes on.
func analysisKind(s string) deck.AnalysisType {
	switch s {
	case "tran":
		return deck.AnalysisTRAN
	case "ac":
		return deck.AnalysisAC
	case "dc":
		return deck.AnalysisDC
	default:
		return deck.AnalysisOP
	}
}

func loadDeck(path string) (*deck.Deck, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}
	d, err := deck.Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return d, nil
}

// loadModels merges the builtin cards, an optional library file and the
// deck's own .model cards, later sources winning.
func loadModels(libPath string, d *deck.Deck) (map[string]device.ModelParam, error) {
	models := modellib.Builtin().Models()
	if libPath != "" {
		lib := modellib.New()
		if err := lib.LoadFile(libPath); err != nil {
			return nil, err
		}
		models = modellib.Merge(models, lib.Models())
	}
	return modellib.Merge(models, d.Models), nil
}
