package device

import (
	"math"

	"github.com/breadboard-eda/breadboard/pkg/matrix"
	"github.com/breadboard-eda/breadboard/pkg/util"
)

// Inductor carries its branch current as an extra MNA unknown, the same
// way a voltage source does. Positive current flows from the first node
// to the second.
type Inductor struct {
	BaseDevice
	Current0  float64 // Branch current at the last accepted timepoint
	Current1  float64 // Branch current one step earlier
	Voltage0  float64
	Voltage1  float64
	branchIdx int
}

var _ TimeDependent = (*Inductor)(nil)
var _ BranchDevice = (*Inductor)(nil)

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{
		BaseDevice: BaseDevice{
			Name:      name,
			Value:     value,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
	}
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) SetTimeStep(dt float64) {}

func (l *Inductor) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	n1, n2 := l.Nodes[0], l.Nodes[1]
	bIdx := l.branchIdx

	if n1 != 0 {
		if status.Mode == ACAnalysis {
			matrix.AddComplexElement(n1, bIdx, 1, 0)
			matrix.AddComplexElement(bIdx, n1, 1, 0)
		} else {
			matrix.AddElement(n1, bIdx, 1)
			matrix.AddElement(bIdx, n1, 1)
		}
	}
	if n2 != 0 {
		if status.Mode == ACAnalysis {
			matrix.AddComplexElement(n2, bIdx, -1, 0)
			matrix.AddComplexElement(bIdx, n2, -1, 0)
		} else {
			matrix.AddElement(n2, bIdx, -1)
			matrix.AddElement(bIdx, n2, -1)
		}
	}

	switch status.Mode {
	case ACAnalysis:
		omega := 2 * math.Pi * status.Frequency
		matrix.AddComplexElement(bIdx, bIdx, 0, -omega*l.Value)

	case TransientAnalysis:
		dt := status.TimeStep
		if dt <= 0 {
			dt = 1e-9
		}
		coeffs := util.GetIntegratorCoeffs(util.GearMethod, 1, dt)
		matrix.AddElement(bIdx, bIdx, -coeffs[0]*l.Value)
		matrix.AddRHS(bIdx, -coeffs[0]*l.Value*l.Current1)

	default:
		// DC: ideal short, the branch equation pins v1 = v2.
	}

	return nil
}

func (l *Inductor) UpdateState(voltages []float64, status *CircuitStatus) {
	v1 := 0.0
	if l.Nodes[0] != 0 {
		v1 = voltages[l.Nodes[0]]
	}
	v2 := 0.0
	if l.Nodes[1] != 0 {
		v2 = voltages[l.Nodes[1]]
	}

	l.Voltage1 = l.Voltage0
	l.Voltage0 = v1 - v2

	l.Current1 = l.Current0
	if l.branchIdx > 0 && l.branchIdx < len(voltages) {
		l.Current0 = voltages[l.branchIdx]
	}
}

func (l *Inductor) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	fluxLTE := l.Value * math.Abs(l.Current0-l.Current1) / (2.0 * status.TimeStep)
	voltageLTE := math.Abs(l.Voltage0-l.Voltage1) / (2.0 * status.TimeStep)

	return math.Max(fluxLTE, voltageLTE)
}

func (l *Inductor) GetCurrent() float64 {
	return l.Current0
}

func (l *Inductor) BranchIndex() int {
	return l.branchIdx
}

func (l *Inductor) SetBranchIndex(idx int) {
	l.branchIdx = idx
}
