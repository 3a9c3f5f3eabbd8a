package deck

import (
	"testing"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rectifierDeck = `* half wave rectifier
V1 in 0 SIN(0 5 50)
D1 in out D1N4148
R1 out 0 1k
C1 out gnd 10u
.model D1N4148 D (IS=2.52n N=1.752)
.tran 100u 60m
.end
`

func TestToModule(t *testing.T) {
	d, err := Parse(rectifierDeck)
	require.NoError(t, err)

	design := schematic.NewDesign()
	m, err := ToModule(design, "rectifier", d)
	require.NoError(t, err)

	assert.Equal(t, "half wave rectifier", m.Title)
	assert.Equal(t, []string{"V1", "D1", "R1", "C1"}, m.PartNames())

	part, ok := m.PartByName("D1")
	require.True(t, ok)
	diode, ok := part.(*schematic.Diode)
	require.True(t, ok)
	assert.Equal(t, "D1N4148", diode.Model)

	// "0" and "gnd" are the same net.
	gnd := m.GroundSignal()
	require.NotNil(t, gnd)
	r1, _ := m.PartByName("R1")
	assert.Same(t, gnd, r1.Pins()[1].Signal)
	c1, _ := m.PartByName("C1")
	assert.Same(t, gnd, c1.Pins()[1].Signal)

	// The sine source keeps its offset as the part value.
	v1, _ := m.PartByName("V1")
	src, ok := v1.(*schematic.VoltageSource)
	require.True(t, ok)
	assert.Equal(t, 0.0, src.Volts)
}

func TestToModuleBJTNodeOrder(t *testing.T) {
	input := `* bias
Q1 coll base emit QNPN
V1 coll 0 DC 5
R1 base 0 10k
R2 emit 0 1k
.model QNPN NPN (BF=100)
.op
.end
`
	d, err := Parse(input)
	require.NoError(t, err)

	design := schematic.NewDesign()
	m, err := ToModule(design, "bias", d)
	require.NoError(t, err)

	part, _ := m.PartByName("Q1")
	q, ok := part.(*schematic.BJT)
	require.True(t, ok)
	pins := q.Pins()
	require.Len(t, pins, 3)
	assert.Equal(t, "coll", pins[0].Signal.Name)
	assert.Equal(t, "base", pins[1].Signal.Name)
	assert.Equal(t, "emit", pins[2].Signal.Name)
}

func TestToModuleRejectsMOSFET(t *testing.T) {
	input := `* switch
M1 d g 0 0 MN
V1 d 0 DC 5
.model MN NMOS (VTO=0.7)
.op
.end
`
	d, err := Parse(input)
	require.NoError(t, err)

	_, err = ToModule(schematic.NewDesign(), "switch", d)
	assert.ErrorContains(t, err, "MOSFETs have no schematic part")
}

func TestToModuleDuplicateRefdes(t *testing.T) {
	d := &Deck{
		Title: "dup",
		Elements: []Element{
			{Type: "R", Name: "R1", Nodes: []string{"a", "0"}, Value: 1e3},
			{Type: "R", Name: "R1", Nodes: []string{"a", "b"}, Value: 2e3},
		},
	}
	_, err := ToModule(schematic.NewDesign(), "dup", d)
	assert.ErrorContains(t, err, "R1")
}
