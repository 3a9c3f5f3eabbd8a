package deck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/breadboard-eda/breadboard/pkg/util"
)

// WriteOptions selects the analysis, resolves model cards and fixes
// the drive levels of the module's input ports.
type WriteOptions struct {
	// Analysis is the analysis card (".op", ".tran 1u 1m", …). Empty
	// means ".op".
	Analysis string

	// Models resolves model cards referenced by diode and BJT parts.
	Models map[string]device.ModelParam

	// Temp in Kelvin; nonzero emits a .temp card.
	Temp float64

	// Digital holds digital input states; unset inputs drive low.
	Digital map[string]bool

	// Analog holds analog input levels in volts; unset inputs drive 0.
	Analog map[string]float64
}

// FromModule renders a module as a deck: one card per part, DC sources
// for the input ports, model cards for every referenced model, then the
// analysis. The output round-trips through Parse.
func FromModule(m *schematic.Module, opts WriteOptions) (string, error) {
	elements, err := ElementsFromModule(m, opts.Digital, opts.Analog)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "* %s\n", m.DeckTitle())

	var modelNames []string
	seenModel := make(map[string]bool)
	for _, elem := range elements {
		fmt.Fprintf(&b, "%s\n", elementCard(elem))
		if name := elem.Params["model"]; name != "" && !seenModel[name] {
			seenModel[name] = true
			modelNames = append(modelNames, name)
		}
	}

	for _, name := range modelNames {
		model, ok := FindModel(opts.Models, name)
		if !ok {
			return "", fmt.Errorf("model %s not found", name)
		}
		fmt.Fprintf(&b, ".model %s %s(%s)\n", model.Name, model.Type, formatModelParams(model.Params))
	}

	if opts.Temp > 0 {
		fmt.Fprintf(&b, ".temp %s\n", util.FormatValue(opts.Temp-consts.KELVIN))
	}

	analysis := opts.Analysis
	if analysis == "" {
		analysis = ".op"
	}
	if !strings.HasPrefix(analysis, ".") {
		return "", fmt.Errorf("invalid analysis card: %s", analysis)
	}
	fmt.Fprintf(&b, "%s\n.end\n", analysis)

	return b.String(), nil
}

func elementCard(elem Element) string {
	fields := append([]string{elem.Name}, elem.Nodes...)
	switch elem.Type {
	case "D":
		if model := elem.Params["model"]; model != "" {
			fields = append(fields, model)
		}
	case "Q":
		fields = append(fields, elem.Params["model"])
	case "V", "I":
		fields = append(fields, "DC", util.FormatValue(elem.Value))
	default:
		fields = append(fields, util.FormatValue(elem.Value))
	}
	return strings.Join(fields, " ")
}

func formatModelParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, util.FormatValue(params[k])))
	}
	return strings.Join(parts, " ")
}
