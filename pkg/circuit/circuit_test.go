package circuit

import (
	"testing"

	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opStatus() *device.CircuitStatus {
	return &device.CircuitStatus{
		Mode: device.OperatingPointAnalysis,
		Temp: 300.15,
		Gmin: 1e-12,
	}
}

func buildCircuit(t *testing.T, name string, elements []deck.Element) *Circuit {
	t.Helper()
	c := New(name)
	require.NoError(t, c.AssignNodeBranchMaps(elements))
	require.NoError(t, c.CreateMatrix())
	require.NoError(t, c.SetupDevices(elements))
	t.Cleanup(c.Destroy)
	return c
}

func solveOP(t *testing.T, c *Circuit) map[string]float64 {
	t.Helper()
	mat := c.GetMatrix()
	mat.Clear()
	require.NoError(t, c.Stamp(opStatus()))
	require.NoError(t, mat.Solve())
	return c.GetSolution()
}

func TestAssignNodeBranchMaps(t *testing.T) {
	elements := []deck.Element{
		{Type: "V", Name: "V1", Nodes: []string{"in", "0"}, Value: 5, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"in", "out"}, Value: 1e3, Params: map[string]string{}},
		{Type: "L", Name: "L1", Nodes: []string{"out", "gnd"}, Value: 1e-3, Params: map[string]string{}},
	}

	c := New("maps")
	require.NoError(t, c.AssignNodeBranchMaps(elements))

	assert.Equal(t, map[string]int{"in": 1, "out": 2}, c.GetNodeMap())
	// Branch rows follow the nodes, for voltage sources and inductors.
	assert.Equal(t, map[string]int{"V1": 3, "L1": 4}, c.GetBranchMap())
	assert.Equal(t, 2, c.GetNumNodes())
}

func TestSolveDivider(t *testing.T) {
	elements := []deck.Element{
		{Type: "V", Name: "V1", Nodes: []string{"in", "0"}, Value: 5, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"in", "out"}, Value: 1e3, Params: map[string]string{}},
		{Type: "R", Name: "R2", Nodes: []string{"out", "0"}, Value: 1e3, Params: map[string]string{}},
	}

	c := buildCircuit(t, "divider", elements)
	solution := solveOP(t, c)

	assert.InDelta(t, 5.0, solution["V(in)"], 1e-9)
	assert.InDelta(t, 2.5, solution["V(out)"], 1e-9)
	assert.InDelta(t, 2.5e-3, solution["I(V1)"], 1e-9)
	assert.InDelta(t, 2.5e-3, solution["I(R1)"], 1e-9)
}

func TestInductorIsDCShort(t *testing.T) {
	elements := []deck.Element{
		{Type: "V", Name: "V1", Nodes: []string{"in", "0"}, Value: 1, Params: map[string]string{"type": "dc"}},
		{Type: "L", Name: "L1", Nodes: []string{"in", "out"}, Value: 1e-3, Params: map[string]string{}},
		{Type: "R", Name: "R1", Nodes: []string{"out", "0"}, Value: 1e3, Params: map[string]string{}},
	}

	c := buildCircuit(t, "rl", elements)

	// The inductor picked up its branch row.
	var ind *device.Inductor
	for _, dev := range c.GetDevices() {
		if l, ok := dev.(*device.Inductor); ok {
			ind = l
		}
	}
	require.NotNil(t, ind)
	assert.Equal(t, c.GetBranchMap()["L1"], ind.BranchIndex())

	solution := solveOP(t, c)
	assert.InDelta(t, 1.0, solution["V(out)"], 1e-9)
	assert.InDelta(t, 1e-3, solution["I(L1)"], 1e-9)
}

func TestSetupDevicesBindsModels(t *testing.T) {
	elements := []deck.Element{
		{Type: "V", Name: "V1", Nodes: []string{"a", "0"}, Value: 1, Params: map[string]string{"type": "dc"}},
		{Type: "D", Name: "D1", Nodes: []string{"a", "0"}, Params: map[string]string{"model": "DX"}},
	}

	c := New("diode")
	c.SetModels(map[string]device.ModelParam{
		"DX": {Type: "D", Name: "DX", Params: map[string]float64{"is": 1e-12}},
	})
	require.NoError(t, c.AssignNodeBranchMaps(elements))
	require.NoError(t, c.CreateMatrix())
	require.NoError(t, c.SetupDevices(elements))
	t.Cleanup(c.Destroy)

	// Nonlinear devices are collected for the Newton loop.
	require.NoError(t, c.UpdateNonlinearVoltages([]float64{0, 0.1}))
}

func TestSetupDevicesRejectsUnknownModel(t *testing.T) {
	elements := []deck.Element{
		{Type: "Q", Name: "Q1", Nodes: []string{"c", "b", "e"}, Params: map[string]string{"model": "NOPE"}},
	}

	c := New("bad")
	require.NoError(t, c.AssignNodeBranchMaps(elements))
	require.NoError(t, c.CreateMatrix())
	err := c.SetupDevices(elements)
	assert.ErrorContains(t, err, "undefined model")
}

func TestCreateMatrixRequiresNodes(t *testing.T) {
	c := New("empty")
	require.NoError(t, c.AssignNodeBranchMaps(nil))
	assert.Error(t, c.CreateMatrix())
}

func TestTemperature(t *testing.T) {
	c := New("temp")
	assert.InDelta(t, 300.15, c.Temperature(), 1e-9)

	c.SetTemperature(350)
	assert.Equal(t, 350.0, c.Temperature())

	// Nonphysical values are ignored.
	c.SetTemperature(-10)
	assert.Equal(t, 350.0, c.Temperature())
}

func TestGetNodeVoltageBounds(t *testing.T) {
	elements := []deck.Element{
		{Type: "V", Name: "V1", Nodes: []string{"in", "0"}, Value: 2, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"in", "0"}, Value: 1e3, Params: map[string]string{}},
	}

	c := buildCircuit(t, "bounds", elements)
	solveOP(t, c)

	assert.Equal(t, 0.0, c.GetNodeVoltage(0))
	assert.InDelta(t, 2.0, c.GetNodeVoltage(c.GetNodeMap()["in"]), 1e-9)
	assert.Equal(t, 0.0, c.GetNodeVoltage(99))
}
