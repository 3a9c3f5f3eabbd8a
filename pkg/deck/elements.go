package deck

import (
	"fmt"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
)

// ElementsFromModule lowers a module to parsed-deck elements: one
// element per part plus a DC source per input port at its drive
// level. The result feeds CreateDevice exactly like Parse output, so
// a module can be simulated without a text round-trip.
//
// Digital holds the digital input states (unset inputs drive low) and
// analog the analog input levels in volts (unset inputs drive 0).
func ElementsFromModule(m *schematic.Module, digital map[string]bool, analog map[string]float64) ([]Element, error) {
	if len(m.PartNames()) > 0 && m.GroundSignal() == nil {
		return nil, fmt.Errorf("module %s: %w", m.Name(), schematic.ErrNoGround)
	}

	var elements []Element
	for _, part := range m.Parts() {
		pins := part.Pins()
		nodes := make([]string, len(pins))
		for i, pin := range pins {
			nodes[i] = pin.Signal.NodeName()
		}

		elem := Element{Name: part.Name(), Nodes: nodes, Params: map[string]string{}}
		switch p := part.(type) {
		case *schematic.Resistor:
			elem.Type = "R"
			elem.Value = p.Ohms
		case *schematic.Capacitor:
			elem.Type = "C"
			elem.Value = p.Farads
		case *schematic.Inductor:
			elem.Type = "L"
			elem.Value = p.Henries
		case *schematic.Diode:
			elem.Type = "D"
			if p.Model != "" {
				elem.Params["model"] = p.Model
			}
		case *schematic.BJT:
			if p.Model == "" {
				return nil, fmt.Errorf("BJT %s has no model", p.Name())
			}
			elem.Type = "Q"
			elem.Params["model"] = p.Model
		case *schematic.VoltageSource:
			elem.Type = "V"
			elem.Value = p.Volts
			elem.Params["type"] = "dc"
		case *schematic.CurrentSource:
			elem.Type = "I"
			elem.Value = p.Amps
			elem.Params["type"] = "dc"
		default:
			return nil, fmt.Errorf("part %s: unsupported class %s", part.Name(), part.Class())
		}
		elements = append(elements, elem)
	}

	// Input ports become DC sources at their drive level.
	for _, name := range m.SignalNames() {
		s, _ := m.SignalByName(name)
		if !s.Inport || s.Power || s.Ground {
			continue
		}
		elem := Element{
			Nodes:  []string{s.NodeName(), "0"},
			Params: map[string]string{"type": "dc"},
		}
		if s.Digital {
			elem.Name = DigitalInputSource(s.Name)
			elem.Value = s.Low
			if digital[s.Name] {
				elem.Value = s.High
			}
		} else {
			elem.Name = AnalogInputSource(s.Name)
			elem.Value = analog[s.Name]
		}
		elem.Type = "V"
		elements = append(elements, elem)
	}

	return elements, nil
}

// DigitalInputSource names the synthesized source driving a digital
// input port.
func DigitalInputSource(signal string) string {
	return "VDIN_" + signal
}

// AnalogInputSource names the synthesized source driving an analog
// input port.
func AnalogInputSource(signal string) string {
	return "VAIN_" + signal
}
