package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/util"
)

// printResults renders the captured series as tables. The analysis
// kind picks the shape; series names decide the column order, node
// voltages before branch currents, each group sorted.
func printResults(w io.Writer, kind deck.AnalysisType, results map[string][]float64) {
	fmt.Fprintln(w, "\nAnalysis Results:")
	fmt.Fprintln(w, "================")

	switch kind {
	case deck.AnalysisAC:
		printAC(w, results)
	case deck.AnalysisDC:
		printDC(w, results)
	case deck.AnalysisTRAN:
		printTran(w, results)
	default:
		printOP(w, results)
	}
}

func printAC(w io.Writer, results map[string][]float64) {
	freqs := results["FREQ"]
	fmt.Fprintf(w, "\nAC Analysis Results (%d frequency points):\n", len(freqs))
	fmt.Fprintln(w, "Frequency      Node Voltages (Magnitude/Phase)        Branch Currents (Magnitude/Phase)")
	fmt.Fprintln(w, "-----------------------------------------------------------------------------")

	var voltageNames, currentNames []string
	for name := range results {
		if strings.HasSuffix(name, "_MAG") {
			baseName := strings.TrimSuffix(name, "_MAG")
			if strings.HasPrefix(baseName, "V(") {
				voltageNames = append(voltageNames, baseName)
			} else if strings.HasPrefix(baseName, "I(") {
				currentNames = append(currentNames, baseName)
			}
		}
	}
	sort.Strings(voltageNames)
	sort.Strings(currentNames)
	names := append(voltageNames, currentNames...)

	for i, freq := range freqs {
		fmt.Fprintf(w, "%-13s", util.FormatFrequency(freq))
		for _, name := range names {
			mag, ok := results[name+"_MAG"]
			phase, ok2 := results[name+"_PHASE"]
			if !ok || !ok2 {
				continue
			}
			fmt.Fprintf(w, "%s=%s<%sdeg  ", name,
				util.FormatMagnitude(mag[i]), util.FormatPhase(phase[i]))
		}
		fmt.Fprintln(w)
	}
}

func printDC(w io.Writer, results map[string][]float64) {
	sweep1 := results["SWEEP1"]
	fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(sweep1))
	fmt.Fprintln(w, "Sweep Values    Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")

	voltageNames, currentNames := seriesNames(results)

	sweep2, hasNested := results["SWEEP2"]
	for i := range sweep1 {
		if hasNested {
			fmt.Fprintf(w, "V1=%-9s V2=%-9s  ",
				util.FormatValueFactor(sweep1[i], "V"),
				util.FormatValueFactor(sweep2[i], "V"))
		} else {
			fmt.Fprintf(w, "V=%-9s  ", util.FormatValueFactor(sweep1[i], "V"))
		}

		for _, name := range voltageNames {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "V"))
		}
		for _, name := range currentNames {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "A"))
		}
		fmt.Fprintln(w)
	}
}

func printOP(w io.Writer, results map[string][]float64) {
	voltageNames, currentNames := seriesNames(results)

	fmt.Fprintln(w, "\nNode Voltages:")
	for _, name := range voltageNames {
		if values := results[name]; len(values) > 0 {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(values[0], "V"))
		}
	}
	fmt.Fprintln(w, "\nBranch Currents:")
	for _, name := range currentNames {
		if values := results[name]; len(values) > 0 {
			fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(values[0], "A"))
		}
	}
}

func printTran(w io.Writer, results map[string][]float64) {
	times := results["TIME"]
	fmt.Fprintf(w, "\nTransient Analysis Results (%d time points):\n", len(times))
	fmt.Fprintln(w, "Time        Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")

	voltageNames, currentNames := seriesNames(results)

	for i, t := range times {
		fmt.Fprintf(w, "%9s  ", util.FormatValueFactor(t, "s"))
		for _, name := range voltageNames {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "V"))
		}
		for _, name := range currentNames {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], "A"))
		}
		fmt.Fprintln(w)
	}
}

// seriesNames splits the result columns into sorted voltage and
// current groups, dropping the independent variables.
func seriesNames(results map[string][]float64) (voltages, currents []string) {
	for name := range results {
		switch {
		case strings.HasPrefix(name, "V("):
			voltages = append(voltages, name)
		case strings.HasPrefix(name, "I("):
			currents = append(currents, name)
		}
	}
	sort.Strings(voltages)
	sort.Strings(currents)
	return voltages, currents
}
