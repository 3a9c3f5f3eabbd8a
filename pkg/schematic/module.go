package schematic

import (
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/util"
	"github.com/pkg/errors"
)

// Module is a named container of signals and parts. Declaration order
// is tracked so exports are deterministic.
type Module struct {
	design *Design
	name   string

	// Title is free text used as the deck title line. Defaults to the
	// module name when empty.
	Title string

	signals   map[string]*Signal
	sigOrder  []string
	parts     map[string]Part
	partOrder []string
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Design() *Design {
	return m.design
}

// Signal declares a scalar net. Names "0" and "gnd" declare the ground
// reference directly.
func (m *Module) Signal(name string) (*Signal, error) {
	return m.declare(name)
}

// Signals declares several nets at once, names split on whitespace.
func (m *Module) Signals(names string) ([]*Signal, error) {
	fields := strings.Fields(names)
	if len(fields) == 0 {
		return nil, errors.Wrap(ErrBadName, "no signal names given")
	}

	out := make([]*Signal, 0, len(fields))
	for _, name := range fields {
		s, err := m.declare(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Module) declare(name string) (*Signal, error) {
	if len(strings.Fields(name)) != 1 {
		return nil, errors.Wrapf(ErrBadName, "signal name %q", name)
	}
	if _, exists := m.signals[name]; exists {
		return nil, errors.Wrapf(ErrDuplicateSignal, "module %s: signal %q", m.name, name)
	}

	s := &Signal{
		ID:            m.design.allocNetID(),
		Name:          name,
		Width:         1,
		High:          DefaultHigh,
		Low:           DefaultLow,
		HighThreshold: DefaultHighThreshold,
		LowThreshold:  DefaultLowThreshold,
		module:        m,
	}
	if name == "0" || name == "gnd" {
		s.Ground = true
	}

	m.signals[name] = s
	m.sigOrder = append(m.sigOrder, name)
	return s, nil
}

// Sig coerces a value to a net so part constructors accept signals,
// names and literals interchangeably. A *Signal passes through, a
// string looks up or declares a net, and a numeric literal mints a
// constant-voltage rail (0 is the ground rail).
func (m *Module) Sig(v any) (*Signal, error) {
	switch x := v.(type) {
	case *Signal:
		if x == nil {
			return nil, errors.Wrap(ErrUnknownSignal, "nil signal")
		}
		if x.module != m {
			return nil, errors.Wrapf(ErrUnknownSignal, "signal %q belongs to module %s", x.Name, x.module.name)
		}
		return x, nil

	case string:
		if s, ok := m.signals[x]; ok {
			return s, nil
		}
		return m.declare(x)

	case int:
		return m.rail(float64(x))
	case int64:
		return m.rail(float64(x))
	case float32:
		return m.rail(float64(x))
	case float64:
		return m.rail(x)

	default:
		return nil, errors.Wrapf(ErrUnknownSignal, "cannot use %T as a signal", v)
	}
}

var railNamer = strings.NewReplacer(".", "v", "-", "m")

// rail returns a constant-voltage net for a literal, reusing the net
// when the same level was minted before. Zero is the ground rail.
func (m *Module) rail(volts float64) (*Signal, error) {
	if volts == 0 {
		return m.groundRail()
	}

	name := "rail" + railNamer.Replace(util.FormatValue(volts))
	if s, ok := m.signals[name]; ok {
		return s, nil
	}
	return m.AddPower(name, volts)
}

// groundRail returns the module's ground net, declaring "0" if none
// exists yet.
func (m *Module) groundRail() (*Signal, error) {
	if g := m.GroundSignal(); g != nil {
		return g, nil
	}
	return m.declare("0")
}

// GroundSignal returns the first declared ground net, or nil.
func (m *Module) GroundSignal() *Signal {
	for _, name := range m.sigOrder {
		if m.signals[name].Ground {
			return m.signals[name]
		}
	}
	return nil
}

// partName resolves an explicit part name or generates the next
// reference designator for the class. Explicit names must start with
// the class letter so deck cards stay well formed.
func (m *Module) partName(class, explicit string) (string, error) {
	if explicit == "" {
		return m.design.nextRef(class, m), nil
	}
	if len(strings.Fields(explicit)) != 1 {
		return "", errors.Wrapf(ErrBadName, "part name %q", explicit)
	}
	if !strings.HasPrefix(strings.ToUpper(explicit), class) {
		return "", errors.Wrapf(ErrBadName, "part name %q must start with %s", explicit, class)
	}
	if _, exists := m.parts[explicit]; exists {
		return "", errors.Wrapf(ErrDuplicatePart, "module %s: part %q", m.name, explicit)
	}
	return explicit, nil
}

func (m *Module) register(name string, p Part) {
	m.parts[name] = p
	m.partOrder = append(m.partOrder, name)
}

// pin coerces a part-terminal argument and rejects non-scalar nets.
func (m *Module) pin(v any) (*Signal, error) {
	s, err := m.Sig(v)
	if err != nil {
		return nil, err
	}
	if s.Width != 1 {
		return nil, errors.Wrapf(ErrSignalWidth, "signal %q has width %d", s.Name, s.Width)
	}
	return s, nil
}

// AddR places a resistor between a and b. An empty name auto-assigns
// the next R designator.
func (m *Module) AddR(name string, a, b any, ohms float64) (*Resistor, error) {
	sa, err := m.pin(a)
	if err != nil {
		return nil, err
	}
	sb, err := m.pin(b)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("R", name)
	if err != nil {
		return nil, err
	}

	r := &Resistor{name: ref, a: sa, b: sb, Ohms: ohms}
	m.register(ref, r)
	return r, nil
}

func (m *Module) AddC(name string, a, b any, farads float64) (*Capacitor, error) {
	sa, err := m.pin(a)
	if err != nil {
		return nil, err
	}
	sb, err := m.pin(b)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("C", name)
	if err != nil {
		return nil, err
	}

	c := &Capacitor{name: ref, a: sa, b: sb, Farads: farads}
	m.register(ref, c)
	return c, nil
}

func (m *Module) AddL(name string, a, b any, henries float64) (*Inductor, error) {
	sa, err := m.pin(a)
	if err != nil {
		return nil, err
	}
	sb, err := m.pin(b)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("L", name)
	if err != nil {
		return nil, err
	}

	l := &Inductor{name: ref, a: sa, b: sb, Henries: henries}
	m.register(ref, l)
	return l, nil
}

// AddD places a diode, anode to cathode, referencing a model card by
// name.
func (m *Module) AddD(name string, a, k any, model string) (*Diode, error) {
	sa, err := m.pin(a)
	if err != nil {
		return nil, err
	}
	sk, err := m.pin(k)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("D", name)
	if err != nil {
		return nil, err
	}

	d := &Diode{name: ref, a: sa, k: sk, Model: model}
	m.register(ref, d)
	return d, nil
}

// AddQ places a BJT with collector, base, emitter pin order.
func (m *Module) AddQ(name string, c, b, e any, model string) (*BJT, error) {
	sc, err := m.pin(c)
	if err != nil {
		return nil, err
	}
	sb, err := m.pin(b)
	if err != nil {
		return nil, err
	}
	se, err := m.pin(e)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("Q", name)
	if err != nil {
		return nil, err
	}

	q := &BJT{name: ref, c: sc, b: sb, e: se, Model: model}
	m.register(ref, q)
	return q, nil
}

func (m *Module) AddV(name string, p, n any, volts float64) (*VoltageSource, error) {
	sp, err := m.pin(p)
	if err != nil {
		return nil, err
	}
	sn, err := m.pin(n)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("V", name)
	if err != nil {
		return nil, err
	}

	v := &VoltageSource{name: ref, p: sp, n: sn, Volts: volts}
	m.register(ref, v)
	return v, nil
}

func (m *Module) AddI(name string, p, n any, amps float64) (*CurrentSource, error) {
	sp, err := m.pin(p)
	if err != nil {
		return nil, err
	}
	sn, err := m.pin(n)
	if err != nil {
		return nil, err
	}
	ref, err := m.partName("I", name)
	if err != nil {
		return nil, err
	}

	i := &CurrentSource{name: ref, p: sp, n: sn, Amps: amps}
	m.register(ref, i)
	return i, nil
}

// AddPower declares a power rail net and backs it with an auto-named
// voltage source to ground.
func (m *Module) AddPower(name string, volts float64) (*Signal, error) {
	s, err := m.declare(name)
	if err != nil {
		return nil, err
	}
	s.Power = true
	s.High = volts

	gnd, err := m.groundRail()
	if err != nil {
		return nil, err
	}
	if _, err := m.AddV("", s, gnd, volts); err != nil {
		return nil, err
	}
	return s, nil
}

// Ground declares a net as the ground reference, or marks an existing
// one.
func (m *Module) Ground(name string) (*Signal, error) {
	if s, ok := m.signals[name]; ok {
		s.Ground = true
		return s, nil
	}

	s, err := m.declare(name)
	if err != nil {
		return nil, err
	}
	s.Ground = true
	return s, nil
}

// AddAnalogInput declares whitespace-separated nets as analog input
// ports.
func (m *Module) AddAnalogInput(names string) ([]*Signal, error) {
	sigs, err := m.Signals(names)
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		s.Inport = true
	}
	return sigs, nil
}

// AddAnalogOutput declares whitespace-separated nets as analog output
// ports.
func (m *Module) AddAnalogOutput(names string) ([]*Signal, error) {
	sigs, err := m.Signals(names)
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		s.Outport = true
	}
	return sigs, nil
}

// AddDigitalInput declares digital input ports. The drive levels come
// from options, defaulting to 3.3/0 V.
func (m *Module) AddDigitalInput(names string, opts ...SignalOption) ([]*Signal, error) {
	sigs, err := m.Signals(names)
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		s.Inport = true
		s.Digital = true
		for _, opt := range opts {
			opt(s)
		}
	}
	return sigs, nil
}

// AddDigitalOutput declares digital output ports read back against the
// threshold voltages.
func (m *Module) AddDigitalOutput(names string, opts ...SignalOption) ([]*Signal, error) {
	sigs, err := m.Signals(names)
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		s.Outport = true
		s.Digital = true
		for _, opt := range opts {
			opt(s)
		}
	}
	return sigs, nil
}

// SignalByName looks up a declared net.
func (m *Module) SignalByName(name string) (*Signal, bool) {
	s, ok := m.signals[name]
	return s, ok
}

// SignalNames returns net names in declaration order.
func (m *Module) SignalNames() []string {
	out := make([]string, len(m.sigOrder))
	copy(out, m.sigOrder)
	return out
}

// PartByName looks up a placed part.
func (m *Module) PartByName(name string) (Part, bool) {
	p, ok := m.parts[name]
	return p, ok
}

// PartNames returns part names in placement order.
func (m *Module) PartNames() []string {
	out := make([]string, len(m.partOrder))
	copy(out, m.partOrder)
	return out
}

// Parts returns the placed parts in placement order.
func (m *Module) Parts() []Part {
	out := make([]Part, 0, len(m.partOrder))
	for _, name := range m.partOrder {
		out = append(out, m.parts[name])
	}
	return out
}

// DeckTitle is the title line used for generated decks.
func (m *Module) DeckTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.name
}
