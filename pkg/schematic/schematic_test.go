package schematic

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleRegistration(t *testing.T) {
	d := NewDesign()

	m, err := d.NewModule("amp")
	require.NoError(t, err)
	assert.Equal(t, "amp", m.Name())

	_, err = d.NewModule("amp")
	assert.True(t, errors.Is(err, ErrDuplicateModule))

	_, err = d.NewModule("  ")
	assert.True(t, errors.Is(err, ErrBadName))

	_, err = d.NewModule("filter")
	require.NoError(t, err)
	assert.Equal(t, []string{"amp", "filter"}, d.ModuleNames())
}

func TestSignalIDsMonotonic(t *testing.T) {
	d := NewDesign()
	ma, err := d.NewModule("a")
	require.NoError(t, err)
	mb, err := d.NewModule("b")
	require.NoError(t, err)

	s1, err := ma.Signal("in")
	require.NoError(t, err)
	s2, err := ma.Signal("out")
	require.NoError(t, err)
	s3, err := mb.Signal("in")
	require.NoError(t, err)

	assert.Equal(t, 1, s1.ID)
	assert.Equal(t, 2, s2.ID)
	assert.Equal(t, 3, s3.ID)

	_, err = ma.Signal("in")
	assert.True(t, errors.Is(err, ErrDuplicateSignal))
}

func TestSignalsSplitsOnWhitespace(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	sigs, err := m.Signals("a b\tc")
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, m.SignalNames())
}

func TestGroundNames(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	g, err := m.Signal("0")
	require.NoError(t, err)
	assert.True(t, g.Ground)
	assert.Equal(t, "0", g.NodeName())

	s, err := m.Signal("vee")
	require.NoError(t, err)
	assert.False(t, s.Ground)

	marked, err := m.Ground("vee")
	require.NoError(t, err)
	assert.Same(t, s, marked)
	assert.True(t, s.Ground)
	assert.Equal(t, "0", s.NodeName())
}

func TestSigCoercion(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	in, err := m.Signal("in")
	require.NoError(t, err)

	// *Signal passes through.
	got, err := m.Sig(in)
	require.NoError(t, err)
	assert.Same(t, in, got)

	// Strings look up or declare.
	got, err = m.Sig("in")
	require.NoError(t, err)
	assert.Same(t, in, got)

	fresh, err := m.Sig("mid")
	require.NoError(t, err)
	assert.Equal(t, "mid", fresh.Name)

	// Zero is the ground rail, not a 0 V source.
	g, err := m.Sig(0)
	require.NoError(t, err)
	assert.True(t, g.Ground)
	assert.Empty(t, partsOfClass(m, "V"))

	// A nonzero literal mints a powered rail with a backing source.
	rail, err := m.Sig(3.3)
	require.NoError(t, err)
	assert.True(t, rail.Power)
	require.Len(t, partsOfClass(m, "V"), 1)

	// The same literal reuses the rail.
	again, err := m.Sig(3.3)
	require.NoError(t, err)
	assert.Same(t, rail, again)
	assert.Len(t, partsOfClass(m, "V"), 1)

	// Signals from another design's module are rejected.
	other, err := NewDesign().NewModule("other")
	require.NoError(t, err)
	foreign, err := other.Signal("x")
	require.NoError(t, err)
	_, err = m.Sig(foreign)
	assert.True(t, errors.Is(err, ErrUnknownSignal))
}

func partsOfClass(m *Module, class string) []Part {
	var out []Part
	for _, p := range m.Parts() {
		if p.Class() == class {
			out = append(out, p)
		}
	}
	return out
}

func TestAutoRefdes(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	r1, err := m.AddR("", "a", "b", 1e3)
	require.NoError(t, err)
	assert.Equal(t, "R1", r1.Name())

	// An explicit name can squat on the next designator.
	_, err = m.AddR("R2", "b", "c", 2e3)
	require.NoError(t, err)

	r3, err := m.AddR("", "c", "d", 3e3)
	require.NoError(t, err)
	assert.Equal(t, "R3", r3.Name())

	// Counters are shared per class across the Design's modules.
	m2, err := d.NewModule("m2")
	require.NoError(t, err)
	r4, err := m2.AddR("", "x", "y", 1)
	require.NoError(t, err)
	assert.Equal(t, "R4", r4.Name())

	// Classes count independently.
	c1, err := m.AddC("", "a", "b", 1e-9)
	require.NoError(t, err)
	assert.Equal(t, "C1", c1.Name())
}

func TestPartNameRules(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	_, err = m.AddR("X1", "a", "b", 1)
	assert.True(t, errors.Is(err, ErrBadName))

	_, err = m.AddR("Rload", "a", "b", 1)
	require.NoError(t, err)
	_, err = m.AddR("Rload", "a", "b", 1)
	assert.True(t, errors.Is(err, ErrDuplicatePart))
}

func TestAddPower(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	vcc, err := m.AddPower("VCC", 5.0)
	require.NoError(t, err)
	assert.True(t, vcc.Power)
	assert.Equal(t, 5.0, vcc.High)

	// The rail is backed by a source to an auto-declared ground.
	require.NotNil(t, m.GroundSignal())
	srcs := partsOfClass(m, "V")
	require.Len(t, srcs, 1)
	vs := srcs[0].(*VoltageSource)
	assert.Equal(t, 5.0, vs.Volts)
	assert.Same(t, vcc, vs.Pins()[0].Signal)
	assert.True(t, vs.Pins()[1].Signal.Ground)
}

func TestDigitalPorts(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	ins, err := m.AddDigitalInput("en clk", WithLevels(5.0, 0.0))
	require.NoError(t, err)
	require.Len(t, ins, 2)
	for _, s := range ins {
		assert.True(t, s.Inport)
		assert.True(t, s.Digital)
		assert.Equal(t, 5.0, s.High)
		assert.Equal(t, 0.0, s.Low)
	}

	outs, err := m.AddDigitalOutput("q", WithThresholds(3.0, 1.0))
	require.NoError(t, err)
	assert.True(t, outs[0].Outport)
	assert.Equal(t, 3.0, outs[0].HighThreshold)
	assert.Equal(t, 1.0, outs[0].LowThreshold)

	// Defaults.
	def, err := m.AddDigitalInput("rst")
	require.NoError(t, err)
	assert.Equal(t, DefaultHigh, def[0].High)
	assert.Equal(t, DefaultHighThreshold, def[0].HighThreshold)
	assert.Equal(t, DefaultLowThreshold, def[0].LowThreshold)
}

func TestAnalogPorts(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	ins, err := m.AddAnalogInput("sig")
	require.NoError(t, err)
	assert.True(t, ins[0].Inport)
	assert.False(t, ins[0].Digital)

	outs, err := m.AddAnalogOutput("out")
	require.NoError(t, err)
	assert.True(t, outs[0].Outport)
}

func TestPartAccessors(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	_, err = m.AddR("", "in", "out", 10e3)
	require.NoError(t, err)
	_, err = m.AddC("", "out", 0, 100e-9)
	require.NoError(t, err)

	assert.Equal(t, []string{"R1", "C1"}, m.PartNames())

	p, ok := m.PartByName("R1")
	require.True(t, ok)
	assert.Equal(t, "R", p.Class())
	assert.Equal(t, "10k", p.AttrValue())
}

func TestDefaultDesign(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	m, err := NewModule("scratch")
	require.NoError(t, err)
	s, err := m.Signal("n1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ID)

	_, err = NewModule("scratch")
	assert.True(t, errors.Is(err, ErrDuplicateModule))

	Reset()
	m2, err := NewModule("scratch")
	require.NoError(t, err)
	s2, err := m2.Signal("n1")
	require.NoError(t, err)
	assert.Equal(t, 1, s2.ID)
}

func TestBJTSkin(t *testing.T) {
	d := NewDesign()
	m, err := d.NewModule("m")
	require.NoError(t, err)

	q1, err := m.AddQ("", "c", "b", "e", "2N2222")
	require.NoError(t, err)
	assert.Equal(t, "transistor-npn", q1.SkinType())

	q2, err := m.AddQ("", "c", "b", "e", "PNP")
	require.NoError(t, err)
	assert.Equal(t, "transistor-pnp", q2.SkinType())
}

func TestMustPanics(t *testing.T) {
	d := NewDesign()
	m := Must(d.NewModule("m"))
	Must(m.Signal("a"))

	assert.Panics(t, func() {
		Must(m.Signal("a"))
	})
}
