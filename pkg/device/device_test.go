package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stampRecorder collects stamps into dense maps so tests can assert on
// individual matrix positions without a real solver.
type stampRecorder struct {
	elements map[[2]int]float64
	rhs      map[int]float64
	imag     map[[2]int]float64
	rhsImag  map[int]float64
}

func newStampRecorder() *stampRecorder {
	return &stampRecorder{
		elements: make(map[[2]int]float64),
		rhs:      make(map[int]float64),
		imag:     make(map[[2]int]float64),
		rhsImag:  make(map[int]float64),
	}
}

func (r *stampRecorder) AddElement(i, j int, value float64) {
	r.elements[[2]int{i, j}] += value
}

func (r *stampRecorder) AddRHS(i int, value float64) {
	r.rhs[i] += value
}

func (r *stampRecorder) AddComplexElement(i, j int, real, imag float64) {
	r.elements[[2]int{i, j}] += real
	r.imag[[2]int{i, j}] += imag
}

func (r *stampRecorder) AddComplexRHS(i int, real, imag float64) {
	r.rhs[i] += real
	r.rhsImag[i] += imag
}

func TestResistorStamp(t *testing.T) {
	r := NewResistor("R1", []string{"1", "2"}, 1000.0)
	r.SetNodes([]int{1, 2})

	rec := newStampRecorder()
	status := &CircuitStatus{Mode: OperatingPointAnalysis, Temp: 300.15}
	require.NoError(t, r.Stamp(rec, status))

	g := 1.0 / 1000.0
	assert.InDelta(t, g, rec.elements[[2]int{1, 1}], 1e-15)
	assert.InDelta(t, -g, rec.elements[[2]int{1, 2}], 1e-15)
	assert.InDelta(t, -g, rec.elements[[2]int{2, 1}], 1e-15)
	assert.InDelta(t, g, rec.elements[[2]int{2, 2}], 1e-15)
}

func TestResistorGroundedNode(t *testing.T) {
	r := NewResistor("R1", []string{"1", "0"}, 500.0)
	r.SetNodes([]int{1, 0})

	rec := newStampRecorder()
	require.NoError(t, r.Stamp(rec, &CircuitStatus{Temp: 300.15}))

	assert.InDelta(t, 2e-3, rec.elements[[2]int{1, 1}], 1e-15)
	// Nothing may land on the ground row or column.
	for pos := range rec.elements {
		assert.NotEqual(t, 0, pos[0])
		assert.NotEqual(t, 0, pos[1])
	}
}

func TestResistorRejectsNonPositiveValue(t *testing.T) {
	r := NewResistor("R1", []string{"1", "0"}, 0)
	r.SetNodes([]int{1, 0})

	err := r.Stamp(newStampRecorder(), &CircuitStatus{Temp: 300.15})
	assert.Error(t, err)
}

func TestCapacitorTransientCompanion(t *testing.T) {
	c := NewCapacitor("C1", []string{"1", "0"}, 1e-6)
	c.SetNodes([]int{1, 0})

	// Accept a timepoint at 5V across the cap.
	voltages := []float64{0, 5.0}
	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-6, Temp: 300.15}
	c.UpdateState(voltages, status)

	rec := newStampRecorder()
	require.NoError(t, c.Stamp(rec, status))

	geq := 1e-6 / 1e-6
	assert.InDelta(t, geq, rec.elements[[2]int{1, 1}], 1e-12)
	assert.InDelta(t, geq*5.0, rec.rhs[1], 1e-12)
}

func TestCapacitorLTETracksVoltageChange(t *testing.T) {
	c := NewCapacitor("C1", []string{"1", "0"}, 1e-6)
	c.SetNodes([]int{1, 0})

	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-3, Temp: 300.15}
	c.UpdateState([]float64{0, 1.0}, status)
	c.UpdateState([]float64{0, 2.0}, status)

	// Charge moved by C*1V over 1ms.
	lte := c.CalculateLTE(nil, status)
	assert.InDelta(t, 1e-6*1.0/(2*1e-3), lte, 1e-12)
}

func TestVoltageSourceStampAndWaveforms(t *testing.T) {
	v := NewDCVoltageSource("V1", []string{"1", "0"}, 12.0)
	v.SetNodes([]int{1, 0})
	v.SetBranchIndex(2)

	rec := newStampRecorder()
	require.NoError(t, v.Stamp(rec, &CircuitStatus{Mode: OperatingPointAnalysis, Temp: 300.15}))

	assert.InDelta(t, 1.0, rec.elements[[2]int{2, 1}], 1e-15)
	assert.InDelta(t, 1.0, rec.elements[[2]int{1, 2}], 1e-15)
	assert.InDelta(t, 12.0, rec.rhs[2], 1e-15)
}

func TestSinSourceWaveform(t *testing.T) {
	v := NewSinVoltageSource("V1", []string{"1", "0"}, 1.0, 2.0, 1000.0, 0.0)

	assert.InDelta(t, 1.0, v.GetVoltage(0), 1e-12)
	// Quarter period: offset + amplitude.
	assert.InDelta(t, 3.0, v.GetVoltage(0.25e-3), 1e-9)
}

func TestPulseSourceWaveform(t *testing.T) {
	v := NewPulseVoltageSource("V1", []string{"1", "0"}, 0, 5, 1e-6, 1e-6, 1e-6, 5e-6, 20e-6)

	assert.InDelta(t, 0.0, v.GetVoltage(0), 1e-12)          // before delay
	assert.InDelta(t, 2.5, v.GetVoltage(1.5e-6), 1e-9)      // mid rise
	assert.InDelta(t, 5.0, v.GetVoltage(4e-6), 1e-12)       // on
	assert.InDelta(t, 0.0, v.GetVoltage(10e-6), 1e-12)      // off
	assert.InDelta(t, 5.0, v.GetVoltage(4e-6+20e-6), 1e-12) // periodic repeat
}

func TestPWLSourceWaveform(t *testing.T) {
	v := NewPWLVoltageSource("V1", []string{"1", "0"},
		[]float64{0, 1e-3, 2e-3}, []float64{0, 10, 10})

	assert.InDelta(t, 0.0, v.GetVoltage(0), 1e-12)
	assert.InDelta(t, 5.0, v.GetVoltage(0.5e-3), 1e-9)
	assert.InDelta(t, 10.0, v.GetVoltage(1.5e-3), 1e-12)
	assert.InDelta(t, 10.0, v.GetVoltage(5e-3), 1e-12) // holds last value
}

func TestCurrentSourceStamp(t *testing.T) {
	i := NewDCCurrentSource("I1", []string{"1", "2"}, 1e-3)
	i.SetNodes([]int{1, 2})

	rec := newStampRecorder()
	require.NoError(t, i.Stamp(rec, &CircuitStatus{Temp: 300.15}))

	assert.InDelta(t, 1e-3, rec.rhs[1], 1e-15)
	assert.InDelta(t, -1e-3, rec.rhs[2], 1e-15)
	assert.Len(t, rec.elements, 0, "current sources must not stamp matrix elements")
}

func TestInductorTransientStamp(t *testing.T) {
	l := NewInductor("L1", []string{"1", "2"}, 1e-3)
	l.SetNodes([]int{1, 2})
	l.SetBranchIndex(3)

	rec := newStampRecorder()
	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-6, Temp: 300.15}
	require.NoError(t, l.Stamp(rec, status))

	assert.InDelta(t, 1.0, rec.elements[[2]int{1, 3}], 1e-15)
	assert.InDelta(t, 1.0, rec.elements[[2]int{3, 1}], 1e-15)
	assert.InDelta(t, -1.0, rec.elements[[2]int{2, 3}], 1e-15)
	assert.InDelta(t, -1.0, rec.elements[[2]int{3, 2}], 1e-15)
	assert.InDelta(t, -1e-3/1e-6, rec.elements[[2]int{3, 3}], 1e-9)
}

func TestInductorDCShort(t *testing.T) {
	l := NewInductor("L1", []string{"1", "2"}, 1e-3)
	l.SetNodes([]int{1, 2})
	l.SetBranchIndex(3)

	rec := newStampRecorder()
	require.NoError(t, l.Stamp(rec, &CircuitStatus{Mode: OperatingPointAnalysis, Temp: 300.15}))

	// Branch equation v1 - v2 = 0: no diagonal term at DC.
	assert.InDelta(t, 0.0, rec.elements[[2]int{3, 3}], 1e-15)
	assert.InDelta(t, 1.0, rec.elements[[2]int{3, 1}], 1e-15)
	assert.InDelta(t, -1.0, rec.elements[[2]int{3, 2}], 1e-15)
}

func TestInductorTracksBranchCurrent(t *testing.T) {
	l := NewInductor("L1", []string{"1", "0"}, 1e-3)
	l.SetNodes([]int{1, 0})
	l.SetBranchIndex(2)

	status := &CircuitStatus{Mode: TransientAnalysis, TimeStep: 1e-6, Temp: 300.15}
	l.UpdateState([]float64{0, 1.0, 0.25}, status)

	assert.InDelta(t, 0.25, l.GetCurrent(), 1e-15)
}

func TestDiodeForwardCurrent(t *testing.T) {
	d := NewDiode("D1", []string{"a", "k"})
	d.SetNodes([]int{1, 2})

	// 0.6V forward bias at room temperature.
	require.NoError(t, d.UpdateVoltages([]float64{0, 0.6, 0.0}))

	id := d.calculateCurrent(0.6, 300.15)
	assert.Greater(t, id, 1e-6)

	gd := d.calculateConductance(0.6, id, 300.15)
	vt := 0.0258
	assert.InDelta(t, id/vt, gd, id/vt*0.15)
}

func TestDiodeReverseLeakage(t *testing.T) {
	d := NewDiode("D1", []string{"a", "k"})
	d.SetNodes([]int{1, 2})

	id := d.calculateCurrent(-5.0, 300.15)
	assert.InDelta(t, -d.Is, id, 1e-15)
	assert.InDelta(t, d.Gmin, d.calculateConductance(-5.0, id, 300.15), 1e-15)
}

func TestDiodeStampLinearization(t *testing.T) {
	d := NewDiode("D1", []string{"a", "k"})
	d.SetNodes([]int{1, 0})
	require.NoError(t, d.UpdateVoltages([]float64{0, 0.65}))

	rec := newStampRecorder()
	require.NoError(t, d.Stamp(rec, &CircuitStatus{Mode: OperatingPointAnalysis, Temp: 300.15}))

	// RHS holds the companion current -(id - gd*vd).
	assert.InDelta(t, -(d.id - d.gd*d.vd), rec.rhs[1], math.Abs(d.id)*1e-9)
	assert.InDelta(t, d.gd, rec.elements[[2]int{1, 1}], d.gd*1e-12)
}

func TestDiodeModelParameters(t *testing.T) {
	d := NewDiode("D1", []string{"a", "k"})
	d.SetModelParameters(map[string]float64{"is": 2e-12, "n": 1.8, "cj0": 4e-12})

	assert.Equal(t, 2e-12, d.Is)
	assert.Equal(t, 1.8, d.N)
	assert.Equal(t, 4e-12, d.Cj0)
	assert.Equal(t, 0.5, d.M, "untouched parameters keep defaults")
}

func TestBJTForwardActive(t *testing.T) {
	q := NewBJT("Q1", []string{"c", "b", "e"}, false)
	q.SetNodes([]int{1, 2, 3})

	// Forward active: vbe 0.65, vce 3V.
	require.NoError(t, q.UpdateVoltages([]float64{0, 3.0, 0.65, 0.0}))
	q.calculateCurrents(300.15)

	assert.Greater(t, q.ic, 0.0)
	assert.Greater(t, q.ib, 0.0)
	assert.InDelta(t, q.ic/q.ib, q.Bf, q.Bf*0.5, "current gain near Bf")
	assert.InDelta(t, -(q.ic + q.ib), q.ie, math.Abs(q.ie)*1e-9)
}

func TestBJTPNPSignFlip(t *testing.T) {
	q := NewBJT("Q1", []string{"c", "b", "e"}, true)
	q.SetNodes([]int{1, 2, 3})

	// PNP forward active: emitter high, base a diode drop below.
	require.NoError(t, q.UpdateVoltages([]float64{0, 2.0, 4.35, 5.0}))

	assert.InDelta(t, 0.65, q.vbe, 1e-9, "internal vbe is NPN space")
	assert.Greater(t, q.vce, 0.0)
}

func TestBJTStampConservesCurrent(t *testing.T) {
	q := NewBJT("Q1", []string{"c", "b", "e"}, false)
	q.SetNodes([]int{1, 2, 3})
	require.NoError(t, q.UpdateVoltages([]float64{0, 3.0, 0.65, 0.0}))

	rec := newStampRecorder()
	require.NoError(t, q.Stamp(rec, &CircuitStatus{Mode: OperatingPointAnalysis, Temp: 300.15}))

	// KCL: the three RHS contributions cancel.
	sum := rec.rhs[1] + rec.rhs[2] + rec.rhs[3]
	assert.InDelta(t, 0.0, sum, 1e-12)

	// Each matrix row sums to zero across the three node columns.
	for row := 1; row <= 3; row++ {
		rowSum := 0.0
		for col := 1; col <= 3; col++ {
			rowSum += rec.elements[[2]int{row, col}]
		}
		assert.InDelta(t, 0.0, rowSum, 1e-15, "row %d", row)
	}
}

func TestBJTJunctionLimiting(t *testing.T) {
	q := NewBJT("Q1", []string{"c", "b", "e"}, false)
	q.SetNodes([]int{1, 2, 3})

	// A wild Newton step to 5V vbe must be pulled back near vcrit.
	require.NoError(t, q.UpdateVoltages([]float64{0, 0.0, 5.0, 0.0}))
	assert.Less(t, q.vbe, 1.0)
}

func TestMosfetSaturationCurrent(t *testing.T) {
	m := NewMosfet("M1", []string{"d", "g", "s", "b"}, false)
	m.SetNodes([]int{1, 2, 3, 4})
	m.SetModelParameters(map[string]float64{"vto": 1.0, "kp": 1e-4, "lambda": 0, "gamma": 0})

	// vgs 2V, vds 5V: saturation, id = kp/2 * W/L * vgst^2.
	require.NoError(t, m.UpdateVoltages([]float64{0, 5.0, 2.0, 0.0, 0.0}))
	m.calculateCurrents()

	assert.Equal(t, SATURATION, m.region)
	assert.InDelta(t, 0.5*1e-4*1.0, m.id, 1e-12)
}

func TestMosfetCutoff(t *testing.T) {
	m := NewMosfet("M1", []string{"d", "g", "s", "b"}, false)
	m.SetNodes([]int{1, 2, 3, 4})
	m.SetModelParameters(map[string]float64{"vto": 1.0})

	require.NoError(t, m.UpdateVoltages([]float64{0, 5.0, 0.5, 0.0, 0.0}))
	m.calculateCurrents()

	assert.Equal(t, CUTOFF, m.region)
	assert.Equal(t, 0.0, m.id)
}

func TestMosfetPMOSDrainCurrent(t *testing.T) {
	m := NewMosfet("M1", []string{"d", "g", "s", "b"}, true)
	m.SetNodes([]int{1, 2, 3, 4})
	m.SetModelParameters(map[string]float64{"vto": 1.0, "kp": 1e-4, "lambda": 0, "gamma": 0})

	// Source at 5V, gate at 3V, drain at 0V: conducting PMOS.
	require.NoError(t, m.UpdateVoltages([]float64{0, 0.0, 3.0, 5.0, 5.0}))
	m.calculateCurrents()

	assert.Equal(t, SATURATION, m.region)
	assert.Greater(t, m.id, 0.0, "internal current is NMOS space")
	assert.Less(t, m.DrainCurrent(), 0.0, "external drain current flows out")
}

func TestMosfetLinearRegionConductance(t *testing.T) {
	m := NewMosfet("M1", []string{"d", "g", "s", "b"}, false)
	m.SetNodes([]int{1, 2, 3, 4})
	m.SetModelParameters(map[string]float64{"vto": 1.0, "kp": 1e-4, "lambda": 0, "gamma": 0})

	require.NoError(t, m.UpdateVoltages([]float64{0, 0.1, 3.0, 0.0, 0.0}))
	m.calculateCurrents()
	m.calculateConductances()

	assert.Equal(t, LINEAR, m.region)
	// gds in deep triode approximates beta*vgst.
	assert.InDelta(t, 1e-4*(2.0-0.1), m.gds, 1e-6)
}
