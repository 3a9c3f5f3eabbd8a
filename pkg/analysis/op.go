package analysis

import (
	"fmt"
	"math"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// OperatingPoint solves the DC bias point. When plain Newton iteration
// fails it walks a gmin ladder: start with a large conductance on every
// diagonal and reduce it tenfold per step until the extra conductance
// is gone.
type OperatingPoint struct{ BaseAnalysis }

func NewOP() *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	op.Circuit = ckt
	return nil
}

func (op *OperatingPoint) status(gmin float64) *device.CircuitStatus {
	return &device.CircuitStatus{
		Time: 0,
		Mode: device.OperatingPointAnalysis,
		Temp: op.Circuit.Temperature(),
		Gmin: gmin,
	}
}

func (op *OperatingPoint) Execute() error {
	if op.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseStart})

	iters, err := op.newtonSolve(op.status(0), 0)
	if err == nil {
		op.storeResults()
		op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseEnd, Iter: iters, Converged: true})
		return nil
	}

	numGminSteps := 10
	startGmin := float64(op.Circuit.GetMatrix().Size) * 0.001
	gmin := startGmin * math.Pow(10, float64(numGminSteps))

	for i := 0; i <= numGminSteps; i++ {
		iters, err = op.newtonSolve(op.status(gmin), gmin)
		if err != nil {
			op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseEnd, Gmin: gmin})
			return fmt.Errorf("gmin stepping failed at %g: %v", gmin, err)
		}
		op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseGminStep, Gmin: gmin, Iter: iters})
		gmin /= 10
	}

	iters, err = op.newtonSolve(op.status(0), 0)
	if err != nil {
		op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseEnd})
		return fmt.Errorf("final solution failed with zero gmin: %v", err)
	}

	op.storeResults()
	op.log.Log(simlog.Event{Analysis: "op", Phase: simlog.PhaseEnd, Iter: iters, Converged: true})
	return nil
}

// storeResults captures the bias point as one-sample series, using the
// circuit's V(node)/I(element) naming.
func (op *OperatingPoint) storeResults() {
	for name, value := range op.Circuit.GetSolution() {
		op.results[name] = []float64{value}
	}
}
