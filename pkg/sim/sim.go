// Package sim runs schematic modules through the analog engine. It
// lowers a module to circuit elements, executes the analysis a profile
// selects and captures the resulting series, including logic-level
// views of the digital ports.
package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/modellib"
	"github.com/breadboard-eda/breadboard/pkg/rawfile"
	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// Build assembles a simulation-ready circuit from a module. Parts and
// input ports lower to deck elements, model references resolve against
// the library (nil falls back to Builtin) and the devices are created
// on a sized matrix. Input ports drive their low level.
//
// The matrix is real valued; AC sweeps need the complex system a
// Simulator builds from its profile.
func Build(m *schematic.Module, lib *modellib.Library) (*circuit.Circuit, error) {
	return build(m, lib, buildOptions{})
}

type buildOptions struct {
	isComplex bool
	temp      float64 // Kelvin, zero keeps the default
	digital   map[string]bool
	analog    map[string]float64
}

func build(m *schematic.Module, lib *modellib.Library, opts buildOptions) (*circuit.Circuit, error) {
	elements, err := deck.ElementsFromModule(m, opts.digital, opts.analog)
	if err != nil {
		return nil, err
	}
	if opts.isComplex {
		exciteAnalogInputs(m, elements)
	}
	if lib == nil {
		lib = modellib.Builtin()
	}

	ckt := circuit.NewWithComplex(m.DeckTitle(), opts.isComplex)
	ckt.SetModels(lib.Models())
	ckt.SetTemperature(opts.temp)
	if err := ckt.AssignNodeBranchMaps(elements); err != nil {
		return nil, err
	}
	if err := ckt.CreateMatrix(); err != nil {
		return nil, err
	}
	if err := ckt.SetupDevices(elements); err != nil {
		ckt.Destroy()
		return nil, err
	}
	return ckt, nil
}

// exciteAnalogInputs swaps the analog input port sources to unit AC
// magnitude. A module has no AC source part, so for AC sweeps the
// analog inputs are the stimulus and the captured magnitudes read as
// transfer functions.
func exciteAnalogInputs(m *schematic.Module, elements []deck.Element) {
	for _, name := range m.SignalNames() {
		s, _ := m.SignalByName(name)
		if !s.Inport || s.Digital || s.Power || s.Ground {
			continue
		}
		src := deck.AnalogInputSource(s.Name)
		for i := range elements {
			if elements[i].Name == src {
				elements[i].Value = 1.0
				elements[i].Params["type"] = "ac"
				elements[i].Params["phase"] = "0"
			}
		}
	}
}

// Result captures one simulation run.
type Result struct {
	RunID    string
	Title    string
	Analysis string
	Temp     float64 // Kelvin

	// Series holds the captured columns keyed the way the analyses
	// name them: V(node), I(name), TIME, FREQ, SWEEP1, SWEEP2 and the
	// _MAG/_PHASE pairs of an AC run.
	Series map[string][]float64

	// Digital holds the logic-level view of every digital output port,
	// keyed by signal name.
	Digital map[string][]bool
}

// Simulator runs one module under one profile. Input levels set
// between runs apply to the next Run; every Run builds a fresh
// circuit, so runs do not inherit device state from each other.
type Simulator struct {
	module  *schematic.Module
	lib     *modellib.Library
	profile Profile
	log     simlog.Logger

	digital map[string]bool
	analog  map[string]float64
}

// NewSimulator validates the profile and binds it to a module. A nil
// library falls back to Builtin.
func NewSimulator(m *schematic.Module, lib *modellib.Library, p Profile) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if lib == nil {
		lib = modellib.Builtin()
	}
	return &Simulator{
		module:  m,
		lib:     lib,
		profile: p,
		log:     simlog.Noop{},
		digital: make(map[string]bool),
		analog:  make(map[string]float64),
	}, nil
}

// SetLogger installs the engine event sink for subsequent runs.
func (s *Simulator) SetLogger(l simlog.Logger) {
	if l == nil {
		l = simlog.Noop{}
	}
	s.log = l
}

// SetDigitalInput drives a digital input port high or low. The backing
// source takes the signal's High or Low level on the next run.
func (s *Simulator) SetDigitalInput(name string, high bool) error {
	sig, ok := s.module.SignalByName(name)
	if !ok {
		return errors.Wrapf(schematic.ErrUnknownSignal, "module %s: %q", s.module.Name(), name)
	}
	if !sig.Inport || !sig.Digital {
		return errors.Errorf("signal %s is not a digital input", name)
	}
	s.digital[name] = high
	return nil
}

// SetAnalogInput sets the drive level of an analog input port in
// volts, effective on the next run.
func (s *Simulator) SetAnalogInput(name string, volts float64) error {
	sig, ok := s.module.SignalByName(name)
	if !ok {
		return errors.Wrapf(schematic.ErrUnknownSignal, "module %s: %q", s.module.Name(), name)
	}
	if !sig.Inport || sig.Digital || sig.Power || sig.Ground {
		return errors.Errorf("signal %s is not an analog input", name)
	}
	s.analog[name] = volts
	return nil
}

// Run builds the circuit, executes the profiled analysis and captures
// the series. The context is consulted between the build and analysis
// stages; a running analysis is not interrupted.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ckt, err := build(s.module, s.lib, buildOptions{
		isComplex: s.profile.Analysis == "ac",
		temp:      s.profile.Kelvin(),
		digital:   s.digital,
		analog:    s.analog,
	})
	if err != nil {
		return nil, err
	}
	defer ckt.Destroy()

	run, err := s.profile.Analyzer()
	if err != nil {
		return nil, err
	}
	run.SetLogger(s.log)
	if c := s.profile.Convergence; c.MaxIter > 0 || c.Abstol > 0 || c.Reltol > 0 {
		run.SetConvergence(c.MaxIter, c.Abstol, c.Reltol)
	}

	if err := run.Setup(ckt); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := run.Execute(); err != nil {
		return nil, err
	}

	series := run.GetResults()
	digital := s.digitalSeries(series)
	if len(s.profile.Probes) > 0 {
		series, err = FilterProbes(series, s.profile.Probes)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Title:    s.module.DeckTitle(),
		Analysis: s.profile.Analysis,
		Temp:     ckt.Temperature(),
		Series:   series,
		Digital:  digital,
	}

	if s.profile.Raw != "" {
		f := rawfile.New(res.RunID, res.Title, res.Analysis, res.Series)
		if err := rawfile.WriteFile(s.profile.Raw, f); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// DigitalValue reads a digital signal's node voltages from a result as
// logic levels.
func (s *Simulator) DigitalValue(res *Result, name string) ([]bool, error) {
	sig, ok := s.module.SignalByName(name)
	if !ok {
		return nil, errors.Wrapf(schematic.ErrUnknownSignal, "module %s: %q", s.module.Name(), name)
	}
	if !sig.Digital {
		return nil, errors.Errorf("signal %s is not digital", name)
	}
	volts, ok := res.Series["V("+sig.NodeName()+")"]
	if !ok {
		return nil, errors.Errorf("no captured voltages for signal %s", name)
	}
	return thresholdSeries(volts, sig.HighThreshold, sig.LowThreshold), nil
}

func (s *Simulator) digitalSeries(series map[string][]float64) map[string][]bool {
	out := make(map[string][]bool)
	for _, name := range s.module.SignalNames() {
		sig, _ := s.module.SignalByName(name)
		if !sig.Digital || !sig.Outport {
			continue
		}
		volts, ok := series["V("+sig.NodeName()+")"]
		if !ok {
			continue
		}
		out[sig.Name] = thresholdSeries(volts, sig.HighThreshold, sig.LowThreshold)
	}
	return out
}

// thresholdSeries converts voltages to logic levels with hysteresis:
// at or above high reads true, at or below low reads false, and the
// band between holds the previous level, starting low.
func thresholdSeries(volts []float64, high, low float64) []bool {
	out := make([]bool, len(volts))
	state := false
	for i, v := range volts {
		switch {
		case v >= high:
			state = true
		case v <= low:
			state = false
		}
		out[i] = state
	}
	return out
}

// FilterProbes trims a result to the requested names, keeping the
// independent variables. An AC probe V(n) keeps its _MAG/_PHASE pair.
func FilterProbes(series map[string][]float64, probes []string) (map[string][]float64, error) {
	out := make(map[string][]float64)
	for _, lead := range []string{"TIME", "FREQ", "SWEEP1", "SWEEP2"} {
		if col, ok := series[lead]; ok {
			out[lead] = col
		}
	}
	for _, p := range probes {
		switch {
		case series[p] != nil:
			out[p] = series[p]
		case series[p+"_MAG"] != nil:
			out[p+"_MAG"] = series[p+"_MAG"]
			out[p+"_PHASE"] = series[p+"_PHASE"]
		default:
			return nil, fmt.Errorf("probe %s not in results", p)
		}
	}
	return out, nil
}
