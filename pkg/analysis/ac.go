package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// ACAnalysis sweeps frequency over complex solves of the linearized
// circuit. The operating point runs first so nonlinear devices hold
// small-signal conductances from their bias.
type ACAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	startFreq   float64
	stopFreq    float64
	numPoints   int
	pointsType  string // DEC, OCT or LIN
	frequencies []float64
}

func NewAC(fStart, fStop float64, nPoints int, pType string) *ACAnalysis {
	return &ACAnalysis{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startFreq:    fStart,
		stopFreq:     fStop,
		numPoints:    nPoints,
		pointsType:   strings.ToUpper(pType),
	}
}

func (ac *ACAnalysis) SetLogger(l simlog.Logger) {
	ac.BaseAnalysis.SetLogger(l)
	ac.op.SetLogger(l)
}

func (ac *ACAnalysis) SetConvergence(maxIter int, abstol, reltol float64) {
	ac.BaseAnalysis.SetConvergence(maxIter, abstol, reltol)
	ac.op.SetConvergence(maxIter, abstol, reltol)
}

func (ac *ACAnalysis) Setup(ckt *circuit.Circuit) error {
	ac.Circuit = ckt

	if err := ac.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %v", err)
	}
	if err := ac.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %v", err)
	}

	return ac.generateFrequencyPoints()
}

func (ac *ACAnalysis) Execute() error {
	if ac.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	ac.log.Log(simlog.Event{Analysis: "ac", Phase: simlog.PhaseStart, Freq: ac.startFreq})

	for _, freq := range ac.frequencies {
		ac.Circuit.Status = &device.CircuitStatus{
			Frequency: freq,
			Mode:      device.ACAnalysis,
			Temp:      ac.Circuit.Temperature(),
		}

		mat := ac.Circuit.GetMatrix()
		mat.Clear()
		if err := ac.Circuit.Stamp(ac.Circuit.Status); err != nil {
			ac.log.Log(simlog.Event{Analysis: "ac", Phase: simlog.PhaseEnd, Freq: freq})
			return fmt.Errorf("stamping error at f=%g: %v", freq, err)
		}

		if err := mat.Solve(); err != nil {
			ac.log.Log(simlog.Event{Analysis: "ac", Phase: simlog.PhaseEnd, Freq: freq})
			return fmt.Errorf("matrix solve error at f=%g: %v", freq, err)
		}

		solution := make(map[string]complex128)

		for name, nodeIdx := range ac.Circuit.GetNodeMap() {
			if nodeIdx > 0 {
				re, im := mat.GetComplexSolution(nodeIdx)
				solution[fmt.Sprintf("V(%s)", name)] = complex(re, im)
			}
		}

		// Branch currents carry the same sign convention as the real
		// analyses: source current flows out of the positive terminal.
		for _, dev := range ac.Circuit.GetDevices() {
			switch d := dev.(type) {
			case *device.VoltageSource:
				re, im := mat.GetComplexSolution(d.BranchIndex())
				solution[fmt.Sprintf("I(%s)", d.GetName())] = complex(-re, -im)
			case *device.Inductor:
				re, im := mat.GetComplexSolution(d.BranchIndex())
				solution[fmt.Sprintf("I(%s)", d.GetName())] = complex(re, im)
			}
		}

		ac.StoreACResult(freq, solution)
	}

	ac.log.Log(simlog.Event{Analysis: "ac", Phase: simlog.PhaseEnd, Freq: ac.stopFreq, Converged: true})
	return nil
}

func (ac *ACAnalysis) generateFrequencyPoints() error {
	if ac.numPoints < 1 {
		return fmt.Errorf("frequency sweep needs at least one point")
	}
	if ac.startFreq <= 0 || ac.stopFreq <= 0 {
		return fmt.Errorf("frequency sweep bounds must be positive")
	}
	if ac.numPoints == 1 {
		ac.frequencies = []float64{ac.startFreq}
		return nil
	}

	ac.frequencies = make([]float64, ac.numPoints)

	switch ac.pointsType {
	case "DEC":
		logStart := math.Log10(ac.startFreq)
		logStop := math.Log10(ac.stopFreq)
		step := (logStop - logStart) / float64(ac.numPoints-1)
		for i := range ac.frequencies {
			ac.frequencies[i] = math.Pow(10, logStart+float64(i)*step)
		}

	case "OCT":
		logStart := math.Log2(ac.startFreq)
		logStop := math.Log2(ac.stopFreq)
		step := (logStop - logStart) / float64(ac.numPoints-1)
		for i := range ac.frequencies {
			ac.frequencies[i] = math.Pow(2, logStart+float64(i)*step)
		}

	case "LIN":
		step := (ac.stopFreq - ac.startFreq) / float64(ac.numPoints-1)
		for i := range ac.frequencies {
			ac.frequencies[i] = ac.startFreq + float64(i)*step
		}

	default:
		return fmt.Errorf("unknown sweep type: %s", ac.pointsType)
	}

	return nil
}
