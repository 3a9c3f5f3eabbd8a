package deck

import (
	"fmt"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/device"
)

// FindModel resolves a model card by name, case-insensitively like
// SPICE.
func FindModel(models map[string]device.ModelParam, name string) (device.ModelParam, bool) {
	if m, ok := models[name]; ok {
		return m, true
	}
	for k, m := range models {
		if strings.EqualFold(k, name) {
			return m, true
		}
	}
	return device.ModelParam{}, false
}

// CreateDevice constructs the engine device for a parsed element,
// binding model cards where the element references one.
func CreateDevice(elem Element, models map[string]device.ModelParam) (device.Device, error) {
	switch elem.Type {
	case "R":
		r := device.NewResistor(elem.Name, elem.Nodes, elem.Value)
		if s, ok := elem.Params["tc1"]; ok {
			v, err := ParseValue(s)
			if err != nil {
				return nil, fmt.Errorf("resistor %s: invalid tc1: %v", elem.Name, err)
			}
			r.Tc1 = v
		}
		if s, ok := elem.Params["tc2"]; ok {
			v, err := ParseValue(s)
			if err != nil {
				return nil, fmt.Errorf("resistor %s: invalid tc2: %v", elem.Name, err)
			}
			r.Tc2 = v
		}
		return r, nil

	case "C":
		return device.NewCapacitor(elem.Name, elem.Nodes, elem.Value), nil

	case "L":
		return device.NewInductor(elem.Name, elem.Nodes, elem.Value), nil

	case "D":
		d := device.NewDiode(elem.Name, elem.Nodes)
		if modelName, ok := elem.Params["model"]; ok {
			model, found := FindModel(models, modelName)
			if !found {
				return nil, fmt.Errorf("diode %s: undefined model %s", elem.Name, modelName)
			}
			if model.Type != "D" {
				return nil, fmt.Errorf("diode %s: model %s has type %s, want D", elem.Name, modelName, model.Type)
			}
			d.SetModelParameters(model.Params)
		}
		return d, nil

	case "Q":
		modelName := elem.Params["model"]
		model, found := FindModel(models, modelName)
		if !found {
			return nil, fmt.Errorf("BJT %s: undefined model %s", elem.Name, modelName)
		}

		var pnp bool
		switch model.Type {
		case "NPN":
		case "PNP":
			pnp = true
		default:
			return nil, fmt.Errorf("BJT %s: model %s has type %s, want NPN or PNP", elem.Name, modelName, model.Type)
		}

		q := device.NewBJT(elem.Name, elem.Nodes, pnp)
		q.SetModelParameters(model.Params)
		return q, nil

	case "M":
		modelName := elem.Params["model"]
		model, found := FindModel(models, modelName)
		if !found {
			return nil, fmt.Errorf("MOSFET %s: undefined model %s", elem.Name, modelName)
		}

		var pmos bool
		switch model.Type {
		case "NMOS":
		case "PMOS":
			pmos = true
		default:
			return nil, fmt.Errorf("MOSFET %s: model %s has type %s, want NMOS or PMOS", elem.Name, modelName, model.Type)
		}

		mos := device.NewMosfet(elem.Name, elem.Nodes, pmos)
		mos.SetModelParameters(model.Params)

		// Per-instance geometry overrides the card.
		geom := make(map[string]float64)
		for _, key := range []string{"w", "l", "ad", "as", "pd", "ps"} {
			if s, ok := elem.Params[key]; ok {
				v, err := ParseValue(s)
				if err != nil {
					return nil, fmt.Errorf("MOSFET %s: invalid %s: %v", elem.Name, key, err)
				}
				geom[key] = v
			}
		}
		mos.SetModelParameters(geom)
		return mos, nil

	case "V":
		switch elem.Params["type"] {
		case "dc":
			return device.NewDCVoltageSource(elem.Name, elem.Nodes, elem.Value), nil

		case "sin":
			offset, amplitude, freq, phase, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewSinVoltageSource(elem.Name, elem.Nodes, offset, amplitude, freq, phase), nil

		case "pulse":
			v1, v2, delay, rise, fall, pWidth, period, err := parsePulseParams(elem.Params["pulse"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewPulseVoltageSource(elem.Name, elem.Nodes, v1, v2, delay, rise, fall, pWidth, period), nil

		case "pwl":
			times, values, err := parsePWLParams(elem.Params["pwl"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewPWLVoltageSource(elem.Name, elem.Nodes, times, values), nil

		case "ac":
			phase, err := ParseValue(elem.Params["phase"])
			if err != nil {
				return nil, fmt.Errorf("source %s: invalid AC phase: %v", elem.Name, err)
			}
			return device.NewACVoltageSource(elem.Name, elem.Nodes, 0, elem.Value, phase), nil

		default:
			return nil, fmt.Errorf("source %s: unsupported type %q", elem.Name, elem.Params["type"])
		}

	case "I":
		switch elem.Params["type"] {
		case "dc":
			return device.NewDCCurrentSource(elem.Name, elem.Nodes, elem.Value), nil

		case "sin":
			offset, amplitude, freq, phase, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewSinCurrentSource(elem.Name, elem.Nodes, offset, amplitude, freq, phase), nil

		case "pulse":
			i1, i2, delay, rise, fall, pWidth, period, err := parsePulseParams(elem.Params["pulse"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewPulseCurrentSource(elem.Name, elem.Nodes, i1, i2, delay, rise, fall, pWidth, period), nil

		case "pwl":
			times, values, err := parsePWLParams(elem.Params["pwl"])
			if err != nil {
				return nil, fmt.Errorf("source %s: %v", elem.Name, err)
			}
			return device.NewPWLCurrentSource(elem.Name, elem.Nodes, times, values), nil

		case "ac":
			phase, err := ParseValue(elem.Params["phase"])
			if err != nil {
				return nil, fmt.Errorf("source %s: invalid AC phase: %v", elem.Name, err)
			}
			return device.NewACCurrentSource(elem.Name, elem.Nodes, 0, elem.Value, phase), nil

		default:
			return nil, fmt.Errorf("source %s: unsupported type %q", elem.Name, elem.Params["type"])
		}
	}

	return nil, fmt.Errorf("unsupported device type: %s", elem.Type)
}

func parseSinParams(params string) (offset, amplitude, freq, phase float64, err error) {
	sinParams := strings.Fields(params)
	if len(sinParams) < 3 {
		return 0, 0, 0, 0, fmt.Errorf("insufficient SIN parameters")
	}

	offset, err = ParseValue(sinParams[0])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid SIN offset: %v", err)
	}
	amplitude, err = ParseValue(sinParams[1])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid SIN amplitude: %v", err)
	}
	freq, err = ParseValue(sinParams[2])
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("invalid SIN frequency: %v", err)
	}

	phase = 0.0
	if len(sinParams) > 3 {
		phase, err = ParseValue(sinParams[3])
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid SIN phase: %v", err)
		}
	}

	return offset, amplitude, freq, phase, nil
}

func parsePulseParams(params string) (v1, v2, delay, rise, fall, pWidth, period float64, err error) {
	pulseParams := strings.Fields(params)
	if len(pulseParams) < 7 {
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("insufficient PULSE parameters")
	}

	targets := []struct {
		dst  *float64
		name string
	}{
		{&v1, "V1"},
		{&v2, "V2"},
		{&delay, "delay"},
		{&rise, "rise"},
		{&fall, "fall"},
		{&pWidth, "width"},
		{&period, "period"},
	}
	for i, t := range targets {
		*t.dst, err = ParseValue(pulseParams[i])
		if err != nil {
			return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("invalid PULSE %s: %v", t.name, err)
		}
	}

	return v1, v2, delay, rise, fall, pWidth, period, nil
}

func parsePWLParams(params string) (times []float64, values []float64, err error) {
	pwlParams := strings.Fields(params)
	if len(pwlParams) < 4 || len(pwlParams)%2 != 0 {
		return nil, nil, fmt.Errorf("PWL needs at least two time-value pairs")
	}

	numPoints := len(pwlParams) / 2
	times = make([]float64, numPoints)
	values = make([]float64, numPoints)

	for i := 0; i < numPoints; i++ {
		times[i], err = ParseValue(pwlParams[2*i])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid PWL time[%d]: %v", i, err)
		}
		values[i], err = ParseValue(pwlParams[2*i+1])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid PWL value[%d]: %v", i, err)
		}

		if i > 0 && times[i] <= times[i-1] {
			return nil, nil, fmt.Errorf("PWL time points must be strictly increasing")
		}
	}

	return times, values, nil
}
