package netlist

import (
	"fmt"
	"io"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/pkg/errors"
)

// WriteKiCad renders a module as a KiCad-flavored netlist: components
// keyed by reference designator, nets keyed by net ID with one node
// entry per attached pin. Write-only string building, no general
// s-expression machinery.
func WriteKiCad(w io.Writer, m *schematic.Module) error {
	var b strings.Builder

	b.WriteString("(export (version \"E\")\n")

	b.WriteString("  (components\n")
	for _, p := range m.Parts() {
		fmt.Fprintf(&b, "    (comp (ref %q)\n", p.Name())
		fmt.Fprintf(&b, "      (value %q)\n", p.AttrValue())
		fmt.Fprintf(&b, "      (libsource (lib \"breadboard\") (part %q)))\n", p.SkinType())
	}
	b.WriteString("  )\n")

	// Pin attachments grouped per net, in declaration order.
	type node struct {
		ref, pin string
	}
	attached := make(map[string][]node)
	for _, p := range m.Parts() {
		for _, pin := range p.Pins() {
			name := pin.Signal.Name
			attached[name] = append(attached[name], node{p.Name(), pin.Name})
		}
	}

	b.WriteString("  (nets\n")
	for _, name := range m.SignalNames() {
		s, _ := m.SignalByName(name)
		nodes := attached[name]
		if len(nodes) == 0 {
			continue
		}

		fmt.Fprintf(&b, "    (net (code %q) (name %q)\n", fmt.Sprint(s.ID), s.NodeName())
		for _, n := range nodes {
			fmt.Fprintf(&b, "      (node (ref %q) (pin %q))\n", n.ref, n.pin)
		}
		b.WriteString("    )\n")
	}
	b.WriteString("  )\n")

	b.WriteString(")\n")

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing kicad netlist")
}
