package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValueFactor - "0.00123 V" -> "1.230 mV", for result tables.
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

var engFactors = []struct {
	scale  float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "G"},
	{1e6, "meg"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
	{1e-15, "f"},
}

// FormatValue - compact engineering notation with SPICE factors.
// 10000 -> "10k", 1e-7 -> "100n", 4.7e6 -> "4.7meg".
func FormatValue(value float64) string {
	if value == 0 {
		return "0"
	}

	abs := math.Abs(value)
	for _, f := range engFactors {
		if abs >= f.scale {
			scaled := value / f.scale
			s := strconv.FormatFloat(scaled, 'g', 6, 64)
			// Values that do not land on a clean factor keep plain notation
			if strings.ContainsAny(s, "eE") {
				break
			}
			return s + f.suffix
		}
	}

	return strconv.FormatFloat(value, 'g', 6, 64)
}

func FormatFrequency(freq float64) string {
	switch {
	case freq >= 1e6:
		return fmt.Sprintf("%7.3f MHz", freq/1e6)
	case freq >= 1e3:
		return fmt.Sprintf("%7.3f kHz", freq/1e3)
	default:
		return fmt.Sprintf("%7.3f Hz ", freq)
	}
}

func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value)
	}
	return fmt.Sprintf("%8.3g", value)
}

func FormatPhase(value float64) string {
	return fmt.Sprintf("%6.1f", value)
}
