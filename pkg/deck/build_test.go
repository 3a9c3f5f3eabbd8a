package deck

import (
	"testing"

	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBasicDevices(t *testing.T) {
	r, err := CreateDevice(Element{
		Type: "R", Name: "R1", Nodes: []string{"a", "b"}, Value: 1e3,
		Params: map[string]string{"tc1": "0.001"},
	}, nil)
	require.NoError(t, err)
	res := r.(*device.Resistor)
	assert.Equal(t, 1e3, res.GetValue())
	assert.Equal(t, 0.001, res.Tc1)

	c, err := CreateDevice(Element{Type: "C", Name: "C1", Nodes: []string{"a", "0"}, Value: 1e-9, Params: map[string]string{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "C", c.GetType())

	l, err := CreateDevice(Element{Type: "L", Name: "L1", Nodes: []string{"a", "0"}, Value: 1e-3, Params: map[string]string{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "L", l.GetType())
}

func TestCreateDiodeBindsModel(t *testing.T) {
	models := map[string]device.ModelParam{
		"D1N4148": {Type: "D", Name: "D1N4148", Params: map[string]float64{"is": 2.52e-9}},
	}

	elem := Element{Type: "D", Name: "D1", Nodes: []string{"a", "0"}, Params: map[string]string{"model": "d1n4148"}}
	d, err := CreateDevice(elem, models)
	require.NoError(t, err)
	assert.Equal(t, "D", d.GetType())

	elem.Params["model"] = "missing"
	_, err = CreateDevice(elem, models)
	assert.ErrorContains(t, err, "undefined model")
}

func TestCreateBJTPolarity(t *testing.T) {
	models := map[string]device.ModelParam{
		"QN": {Type: "NPN", Name: "QN", Params: map[string]float64{"bf": 150}},
		"QP": {Type: "PNP", Name: "QP", Params: map[string]float64{}},
	}

	elem := Element{Type: "Q", Name: "Q1", Nodes: []string{"c", "b", "e"}, Params: map[string]string{"model": "QN"}}
	q, err := CreateDevice(elem, models)
	require.NoError(t, err)
	bjt := q.(*device.Bjt)
	assert.False(t, bjt.IsPNP())
	assert.Equal(t, 150.0, bjt.Bf)

	elem.Params["model"] = "QP"
	q, err = CreateDevice(elem, models)
	require.NoError(t, err)
	assert.True(t, q.(*device.Bjt).IsPNP())

	elem.Params["model"] = "D1"
	_, err = CreateDevice(elem, map[string]device.ModelParam{"D1": {Type: "D", Name: "D1"}})
	assert.ErrorContains(t, err, "want NPN or PNP")
}

func TestCreateMosfetGeometry(t *testing.T) {
	models := map[string]device.ModelParam{
		"NFET": {Type: "NMOS", Name: "NFET", Params: map[string]float64{"vto": 0.7, "kp": 1e-4, "w": 10e-6, "l": 10e-6}},
	}

	elem := Element{
		Type: "M", Name: "M1", Nodes: []string{"d", "g", "0", "0"},
		Params: map[string]string{"model": "NFET", "w": "20u", "l": "2u"},
	}
	m, err := CreateDevice(elem, models)
	require.NoError(t, err)

	mos := m.(*device.Mosfet)
	assert.False(t, mos.IsPMOS())
	assert.InDelta(t, 20e-6, mos.W, 1e-12)
	assert.InDelta(t, 2e-6, mos.L, 1e-12)
	assert.Equal(t, 0.7, mos.VTO)
}

func TestCreateSourceWaveforms(t *testing.T) {
	v, err := CreateDevice(Element{
		Type: "V", Name: "V1", Nodes: []string{"a", "0"},
		Params: map[string]string{"type": "sin", "sin": "0 1 1k"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "V", v.GetType())

	_, err = CreateDevice(Element{
		Type: "V", Name: "V2", Nodes: []string{"a", "0"},
		Params: map[string]string{"type": "pwl", "pwl": "0 0 1m 5 0.5m 2"},
	}, nil)
	assert.ErrorContains(t, err, "strictly increasing")

	i, err := CreateDevice(Element{
		Type: "I", Name: "I1", Nodes: []string{"a", "0"}, Value: 1e-3,
		Params: map[string]string{"type": "dc"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "I", i.GetType())
}
