package netlist

import (
	"encoding/json"
	"io"
	"os"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/pkg/errors"
)

// Document is the Yosys-shaped netlist: modules with ports and cells,
// nets referenced by ID. The shape is what netlistsvg and friends
// consume.
type Document struct {
	Modules map[string]ModuleDef `json:"modules"`
}

type ModuleDef struct {
	Ports map[string]Port `json:"ports"`
	Cells map[string]Cell `json:"cells"`
}

type Port struct {
	Direction string `json:"direction"`
	Bits      []int  `json:"bits"`
}

type Cell struct {
	Type           string            `json:"type"`
	PortDirections map[string]string `json:"port_directions,omitempty"`
	Connections    map[string][]int  `json:"connections"`
	Attributes     map[string]any    `json:"attributes,omitempty"`
}

// FromModule builds the netlist document for one module. Ports come
// from the signals marked as ports, cells from the placed parts plus
// one rail cell per power or ground net.
func FromModule(m *schematic.Module) *Document {
	def := ModuleDef{
		Ports: make(map[string]Port),
		Cells: make(map[string]Cell),
	}

	for _, name := range m.SignalNames() {
		s, _ := m.SignalByName(name)

		switch {
		case s.Inport:
			def.Ports[s.Name] = Port{Direction: "input", Bits: []int{s.ID}}
		case s.Outport:
			def.Ports[s.Name] = Port{Direction: "output", Bits: []int{s.ID}}
		}

		switch {
		case s.Power:
			def.Cells[s.Name] = Cell{
				Type:        "power",
				Connections: map[string][]int{"VCC": {s.ID}},
				Attributes:  map[string]any{"value": s.Name},
			}
		case s.Ground:
			def.Cells[s.Name] = Cell{
				Type:        "ground",
				Connections: map[string][]int{"GND": {s.ID}},
				Attributes:  map[string]any{"value": s.Name},
			}
		}
	}

	for _, p := range m.Parts() {
		conns := make(map[string][]int, len(p.Pins()))
		for _, pin := range p.Pins() {
			conns[pin.Name] = []int{pin.Signal.ID}
		}

		cell := Cell{
			Type:        p.SkinType(),
			Connections: conns,
		}
		if v := p.AttrValue(); v != "" {
			cell.Attributes = map[string]any{"value": v}
		}
		def.Cells[p.Name()] = cell
	}

	return &Document{Modules: map[string]ModuleDef{m.Name(): def}}
}

// FromDesign builds one document holding every module of the design.
func FromDesign(d *schematic.Design) *Document {
	doc := &Document{Modules: make(map[string]ModuleDef)}
	for _, name := range d.ModuleNames() {
		m, _ := d.Module(name)
		doc.Modules[name] = FromModule(m).Modules[name]
	}
	return doc
}

// WriteJSON renders the document with 2-space indentation and sorted
// keys. Output is byte-stable for a given design.
func WriteJSON(w io.Writer, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding netlist")
	}
	data = append(data, '\n')

	_, err = w.Write(data)
	return errors.Wrap(err, "writing netlist")
}

// Write renders a whole design as JSON.
func Write(w io.Writer, d *schematic.Design) error {
	return WriteJSON(w, FromDesign(d))
}

// Save writes a design's netlist to a file.
func Save(path string, d *schematic.Design) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}

	if err := Write(f, d); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
