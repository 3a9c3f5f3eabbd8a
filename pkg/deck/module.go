package deck

import (
	"fmt"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
)

// ToModule lifts a parsed deck into a schematic module so a deck can
// be exported through the netlist writers. Cards become parts with
// their refdes and node names; "0" and "gnd" collapse onto the ground
// net. Model cards are not representable, the parts carry the
// reference names only. Time-varying sources keep their offset as the
// part value, which preserves the topology the exports care about.
func ToModule(design *schematic.Design, name string, d *Deck) (*schematic.Module, error) {
	m, err := design.NewModule(name)
	if err != nil {
		return nil, err
	}
	m.Title = d.Title

	for _, elem := range d.Elements {
		if err := addElement(m, elem); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func addElement(m *schematic.Module, elem Element) error {
	nodes := make([]any, len(elem.Nodes))
	for i, n := range elem.Nodes {
		if n == "0" || n == "gnd" {
			nodes[i] = 0
			continue
		}
		nodes[i] = n
	}

	var err error
	switch elem.Type {
	case "R":
		_, err = m.AddR(elem.Name, nodes[0], nodes[1], elem.Value)
	case "C":
		_, err = m.AddC(elem.Name, nodes[0], nodes[1], elem.Value)
	case "L":
		_, err = m.AddL(elem.Name, nodes[0], nodes[1], elem.Value)
	case "D":
		_, err = m.AddD(elem.Name, nodes[0], nodes[1], elem.Params["model"])
	case "Q":
		_, err = m.AddQ(elem.Name, nodes[0], nodes[1], nodes[2], elem.Params["model"])
	case "V":
		_, err = m.AddV(elem.Name, nodes[0], nodes[1], elem.Value)
	case "I":
		_, err = m.AddI(elem.Name, nodes[0], nodes[1], elem.Value)
	case "M":
		return fmt.Errorf("element %s: MOSFETs have no schematic part", elem.Name)
	default:
		return fmt.Errorf("element %s: unsupported type %s", elem.Name, elem.Type)
	}
	return err
}
