package deck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/device"
)

type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Finding is one lint diagnostic.
type Finding struct {
	Severity Severity
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s", f.Severity, f.Message)
}

// HasErrors reports whether any finding is error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Error {
			return true
		}
	}
	return false
}

func isGroundNode(name string) bool {
	return name == "0" || name == "gnd"
}

// Check lints a parsed deck: ground reference, floating nodes,
// duplicate names, parallel voltage sources and dangling model
// references. The models map is the merged card set to resolve
// references against; nil checks against the deck's own cards.
func Check(d *Deck, models map[string]device.ModelParam) []Finding {
	var findings []Finding
	report := func(sev Severity, format string, args ...any) {
		findings = append(findings, Finding{sev, fmt.Sprintf(format, args...)})
	}

	if models == nil {
		models = d.Models
	}

	if len(d.Elements) == 0 {
		report(Error, "deck has no elements")
		return findings
	}

	// Ground reference and connection counts.
	hasGround := false
	connections := make(map[string]int)
	for _, elem := range d.Elements {
		for _, n := range elem.Nodes {
			if isGroundNode(n) {
				hasGround = true
				continue
			}
			connections[n]++
		}
	}
	if !hasGround {
		report(Error, "no ground reference node")
	}

	nodes := make([]string, 0, len(connections))
	for n := range connections {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	for _, n := range nodes {
		if connections[n] == 1 {
			report(Warning, "node %s has a single connection", n)
		}
	}

	// Duplicate names. Parse already rejects these; hand-built decks
	// may not have gone through it.
	seen := make(map[string]string)
	for _, elem := range d.Elements {
		if prev, dup := seen[elem.Name]; dup {
			report(Error, "duplicate element name %s (%s and %s)", elem.Name, prev, elem.Type)
			continue
		}
		seen[elem.Name] = elem.Type
	}

	// Two voltage sources across the same node pair over-determine the
	// system.
	vPairs := make(map[string]string)
	for _, elem := range d.Elements {
		if elem.Type != "V" || len(elem.Nodes) != 2 {
			continue
		}
		pair := []string{elem.Nodes[0], elem.Nodes[1]}
		sort.Strings(pair)
		key := strings.Join(pair, "\x00")
		if prev, dup := vPairs[key]; dup {
			report(Error, "voltage sources %s and %s are connected in parallel", prev, elem.Name)
			continue
		}
		vPairs[key] = elem.Name
	}

	// Dangling model references.
	for _, elem := range d.Elements {
		name, ok := elem.Params["model"]
		if !ok || name == "" {
			continue
		}
		if _, found := FindModel(models, name); !found {
			report(Error, "element %s references undefined model %s", elem.Name, name)
		}
	}

	return findings
}
