package deck

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SPICE scale factors. Case-insensitive, "meg" wins over "m", and any
// letters after the factor are unit text ("10kohm", "100nF").
var unitMap = map[byte]float64{
	't': 1e12,
	'g': 1e9,
	'k': 1e3,
	'm': 1e-3,
	'u': 1e-6,
	'n': 1e-9,
	'p': 1e-12,
	'f': 1e-15,
}

var valueRe = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)([a-zA-Z]*)$`)

// ParseValue parses a SPICE value token. "10k" -> 1e4, "1MEG" -> 1e6,
// "100nF" -> 1e-7.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("invalid value format: %s", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	suffix := strings.ToLower(matches[2])
	switch {
	case suffix == "":
	case strings.HasPrefix(suffix, "meg"):
		num *= 1e6
	default:
		if multiplier, ok := unitMap[suffix[0]]; ok {
			num *= multiplier
		}
	}

	return num, nil
}
