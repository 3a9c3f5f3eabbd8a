// Package analysis implements the engine passes: operating point,
// transient, AC sweep and DC sweep. All of them drive the same
// Newton-Raphson loop over an assembled circuit and collect results
// as named series.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
	"github.com/breadboard-eda/breadboard/pkg/util"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	Circuit     *circuit.Circuit
	results     map[string][]float64 // key: variable name, value: series
	log         simlog.Logger
	convergence struct {
		maxIter int
		abstol  float64
		reltol  float64
		gmin    float64
	}
}

func NewBaseAnalysis() *BaseAnalysis {
	ba := &BaseAnalysis{
		results: make(map[string][]float64),
		log:     simlog.Noop{},
	}

	ba.convergence.maxIter = 100
	ba.convergence.abstol = 1e-12
	ba.convergence.reltol = 1e-6
	ba.convergence.gmin = 1e-12

	return ba
}

// SetLogger replaces the event sink. Nil restores the no-op sink.
func (a *BaseAnalysis) SetLogger(l simlog.Logger) {
	if l == nil {
		l = simlog.Noop{}
	}
	a.log = l
}

// SetConvergence overrides the Newton iteration limits. Zero or
// negative arguments keep the current setting.
func (a *BaseAnalysis) SetConvergence(maxIter int, abstol, reltol float64) {
	if maxIter > 0 {
		a.convergence.maxIter = maxIter
	}
	if abstol > 0 {
		a.convergence.abstol = abstol
	}
	if reltol > 0 {
		a.convergence.reltol = reltol
	}
}

// newtonSolve iterates stamp/solve until every unknown settles within
// reltol*max(|new|,|old|)+abstol. Nonlinear devices are re-linearized
// around the previous solution each round. Returns the iteration count.
func (a *BaseAnalysis) newtonSolve(status *device.CircuitStatus, gmin float64) (int, error) {
	ckt := a.Circuit
	mat := ckt.GetMatrix()
	var oldSolution []float64

	for iter := 0; iter < a.convergence.maxIter; iter++ {
		mat.Clear()

		// First iteration has no previous solution to linearize around.
		if iter > 0 {
			if err := ckt.UpdateNonlinearVoltages(oldSolution); err != nil {
				return iter, fmt.Errorf("updating nonlinear voltages: %v", err)
			}
		}

		if err := ckt.Stamp(status); err != nil {
			return iter, fmt.Errorf("stamping error: %v", err)
		}
		mat.LoadGmin(gmin)

		if err := mat.Solve(); err != nil {
			return iter, fmt.Errorf("matrix solve error: %v", err)
		}

		solution := mat.Solution()
		if iter > 0 && a.converged(oldSolution, solution) {
			return iter + 1, nil
		}

		if oldSolution == nil {
			oldSolution = make([]float64, len(solution))
		}
		copy(oldSolution, solution)
	}

	return a.convergence.maxIter, fmt.Errorf("failed to converge in %d iterations", a.convergence.maxIter)
}

func (a *BaseAnalysis) converged(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := 1; i < len(newSol); i++ {
		diff := math.Abs(newSol[i] - oldSol[i])
		tol := a.convergence.reltol*math.Max(math.Abs(newSol[i]), math.Abs(oldSol[i])) + a.convergence.abstol
		if diff > tol {
			return false
		}
	}
	return true
}

// StoreTimeResult appends one timepoint. Timestamps that format to the
// same engineering string as the previous point are dropped so plots
// do not carry near-duplicate samples like 1.999999e-5 next to 2e-5.
func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	if n := len(a.results["TIME"]); n > 0 {
		lastTime := a.results["TIME"][n-1]
		if time == lastTime {
			return
		}
		if util.FormatValueFactor(time, "s") == util.FormatValueFactor(lastTime, "s") {
			return
		}
	}

	a.results["TIME"] = append(a.results["TIME"], time)
	for name, value := range solution {
		a.results[name] = append(a.results[name], value)
	}
}

// StoreACResult appends one frequency point as magnitude and phase
// (degrees) series per variable.
func (a *BaseAnalysis) StoreACResult(freq float64, solution map[string]complex128) {
	a.results["FREQ"] = append(a.results["FREQ"], freq)

	for name, value := range solution {
		magnitude := cmplx.Abs(value)
		a.results[name+"_MAG"] = append(a.results[name+"_MAG"], magnitude)

		phase := cmplx.Phase(value) * 180.0 / math.Pi
		a.results[name+"_PHASE"] = append(a.results[name+"_PHASE"], phase)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
