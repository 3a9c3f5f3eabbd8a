package netlist

import (
	"bytes"
	"testing"

	"github.com/breadboard-eda/breadboard/pkg/schematic"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dividerModule(t *testing.T) *schematic.Module {
	t.Helper()
	d := schematic.NewDesign()
	m, err := d.NewModule("divider")
	require.NoError(t, err)

	_, err = m.AddPower("VCC", 5.0)
	require.NoError(t, err)
	_, err = m.AddAnalogOutput("out")
	require.NoError(t, err)
	_, err = m.AddR("", "VCC", "out", 10e3)
	require.NoError(t, err)
	_, err = m.AddR("", "out", 0, 10e3)
	require.NoError(t, err)
	return m
}

func TestFromModuleDocument(t *testing.T) {
	m := dividerModule(t)
	got := FromModule(m)

	want := &Document{
		Modules: map[string]ModuleDef{
			"divider": {
				Ports: map[string]Port{
					"out": {Direction: "output", Bits: []int{3}},
				},
				Cells: map[string]Cell{
					"VCC": {
						Type:        "power",
						Connections: map[string][]int{"VCC": {1}},
						Attributes:  map[string]any{"value": "VCC"},
					},
					"0": {
						Type:        "ground",
						Connections: map[string][]int{"GND": {2}},
						Attributes:  map[string]any{"value": "0"},
					},
					"V1": {
						Type:        "vsource",
						Connections: map[string][]int{"P": {1}, "N": {2}},
						Attributes:  map[string]any{"value": "5"},
					},
					"R1": {
						Type:        "resistor",
						Connections: map[string][]int{"L": {1}, "R": {3}},
						Attributes:  map[string]any{"value": "10k"},
					},
					"R2": {
						Type:        "resistor",
						Connections: map[string][]int{"L": {3}, "R": {2}},
						Attributes:  map[string]any{"value": "10k"},
					},
				},
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestPortsFollowSignalRoles(t *testing.T) {
	d := schematic.NewDesign()
	m, err := d.NewModule("gate")
	require.NoError(t, err)

	_, err = m.AddDigitalInput("en")
	require.NoError(t, err)
	_, err = m.AddAnalogInput("sig")
	require.NoError(t, err)
	_, err = m.AddDigitalOutput("q")
	require.NoError(t, err)

	doc := FromModule(m)
	ports := doc.Modules["gate"].Ports
	assert.Equal(t, "input", ports["en"].Direction)
	assert.Equal(t, "input", ports["sig"].Direction)
	assert.Equal(t, "output", ports["q"].Direction)
}

func TestTransistorCell(t *testing.T) {
	d := schematic.NewDesign()
	m, err := d.NewModule("amp")
	require.NoError(t, err)

	vc, err := m.Signal("vc")
	require.NoError(t, err)
	vb, err := m.Signal("vb")
	require.NoError(t, err)
	ve, err := m.Signal("ve")
	require.NoError(t, err)

	q, err := m.AddQ("", vc, vb, ve, "2N2222")
	require.NoError(t, err)

	doc := FromModule(m)
	cell := doc.Modules["amp"].Cells[q.Name()]
	assert.Equal(t, "transistor-npn", cell.Type)
	assert.Equal(t, map[string][]int{"C": {vc.ID}, "B": {vb.ID}, "E": {ve.ID}}, cell.Connections)
	assert.Equal(t, "2N2222", cell.Attributes["value"])
}

func TestWriteJSONStable(t *testing.T) {
	m := dividerModule(t)

	var first, second bytes.Buffer
	require.NoError(t, WriteJSON(&first, FromModule(m)))
	require.NoError(t, WriteJSON(&second, FromModule(m)))

	assert.Equal(t, first.String(), second.String())
	assert.Contains(t, first.String(), `"modules"`)
	assert.Contains(t, first.String(), `"direction": "output"`)
	assert.True(t, bytes.HasSuffix(first.Bytes(), []byte("\n")))
}

func TestFromDesignCollectsModules(t *testing.T) {
	d := schematic.NewDesign()
	m1, err := d.NewModule("one")
	require.NoError(t, err)
	_, err = m1.AddR("", "a", 0, 1e3)
	require.NoError(t, err)

	_, err = d.NewModule("two")
	require.NoError(t, err)

	doc := FromDesign(d)
	assert.Len(t, doc.Modules, 2)
	assert.Contains(t, doc.Modules, "one")
	assert.Contains(t, doc.Modules, "two")
}

func TestWriteKiCad(t *testing.T) {
	m := dividerModule(t)

	var buf bytes.Buffer
	require.NoError(t, WriteKiCad(&buf, m))
	out := buf.String()

	assert.Contains(t, out, `(export (version "E")`)
	assert.Contains(t, out, `(comp (ref "R1")`)
	assert.Contains(t, out, `(value "10k")`)
	assert.Contains(t, out, `(net (code "1") (name "VCC")`)
	assert.Contains(t, out, `(node (ref "R1") (pin "L"))`)
	// Ground nets alias node 0.
	assert.Contains(t, out, `(name "0")`)
}
