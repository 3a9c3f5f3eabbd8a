package analysis

import (
	"fmt"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// Transient integrates the circuit over time with an adaptive step.
// Each candidate step solves a Newton iteration; non-convergence halves
// the step, a large local truncation error drops the integration order
// and shrinks the step, and accepted steps grow it again up to tmax.
type Transient struct {
	BaseAnalysis
	op        *OperatingPoint
	time      float64
	startTime float64
	stopTime  float64
	timeStep  float64
	maxStep   float64
	minStep   float64
	useUIC    bool

	order     int     // integration order, 1=BE 2=TR
	trtol     float64 // truncation error tolerance, SPICE3F5 default 7
	firstTime bool
}

func NewTransient(tStart, tStop, tStep, tMax float64, uic bool) *Transient {
	minStep := tStep / 50.0
	if tMax == 0 {
		tMax = tStep
	}

	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
		maxStep:      tMax,
		minStep:      minStep,
		useUIC:       uic,
		time:         0,
		order:        1,
		trtol:        7.0,
		firstTime:    true,
	}
}

func (tr *Transient) SetLogger(l simlog.Logger) {
	tr.BaseAnalysis.SetLogger(l)
	tr.op.SetLogger(l)
}

func (tr *Transient) SetConvergence(maxIter int, abstol, reltol float64) {
	tr.BaseAnalysis.SetConvergence(maxIter, abstol, reltol)
	tr.op.SetConvergence(maxIter, abstol, reltol)
}

// Setup finds the initial bias point unless initial conditions were
// requested, then primes the device timesteps.
func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	tr.Circuit = ckt

	if !tr.useUIC {
		if err := tr.op.Setup(ckt); err != nil {
			return fmt.Errorf("operating point setup error: %v", err)
		}
		if err := tr.op.Execute(); err != nil {
			return fmt.Errorf("operating point analysis error: %v", err)
		}

		// Seed both history slots of the reactive devices with the bias
		// point so the first step does not integrate a jump from zero.
		tr.Circuit.SetTimeStep(tr.timeStep)
		tr.Circuit.Update()
		tr.Circuit.Update()
	}

	tr.Circuit.SetTimeStep(tr.timeStep)
	return nil
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	tr.log.Log(simlog.Event{Analysis: "tran", Phase: simlog.PhaseStart, Step: tr.timeStep})

	for tr.time < tr.stopTime {
		step := tr.timeStep
		if tr.time+step > tr.stopTime {
			step = tr.stopTime - tr.time
			if step < tr.minStep {
				step = tr.minStep
			}
		}

		for {
			status := &device.CircuitStatus{
				Time:     tr.time,
				TimeStep: step,
				Mode:     device.TransientAnalysis,
				Method:   tr.order,
				Temp:     tr.Circuit.Temperature(),
			}
			tr.Circuit.Status = status
			tr.Circuit.SetTimeStep(step)

			if _, err := tr.newtonSolve(status, 0); err != nil {
				if step > tr.minStep {
					step /= 2
					tr.log.Log(simlog.Event{
						Analysis: "tran", Phase: simlog.PhaseRetry,
						SimTime: tr.time, Step: step, Detail: "newton did not converge",
					})
					continue
				}
				tr.log.Log(simlog.Event{Analysis: "tran", Phase: simlog.PhaseEnd, SimTime: tr.time})
				return fmt.Errorf("failed to converge at t=%g", tr.time)
			}

			if tr.firstTime {
				// Probe the higher order once; fall back if the first
				// step already exceeds the tolerance.
				tr.firstTime = false
				tr.order = 2
				if tr.truncError() > tr.trtol {
					tr.order = 1
				}
				break
			}

			if tr.order == 2 {
				if tol := tr.truncError(); tol >= 1.0 {
					tr.order = 1
					if step > tr.minStep {
						oldStep := step
						step /= 8
						if step < tr.minStep {
							step = oldStep / 2
						}
						tr.log.Log(simlog.Event{
							Analysis: "tran", Phase: simlog.PhaseReject,
							SimTime: tr.time, Step: step, Detail: "truncation error",
						})
						continue
					}
				}
			}
			break
		}

		tr.timeStep = step
		tr.Circuit.Time = tr.time
		tr.Circuit.Update()
		tr.time += step
		if tr.time >= tr.startTime {
			tr.StoreTimeResult(tr.time, tr.Circuit.GetSolution())
		}

		if tr.time < tr.stopTime && tr.timeStep < tr.maxStep {
			tr.timeStep *= 1.2
			if tr.timeStep > tr.maxStep {
				tr.timeStep = tr.maxStep
			}
			tr.order = 2
		}
	}

	tr.log.Log(simlog.Event{Analysis: "tran", Phase: simlog.PhaseEnd, SimTime: tr.time, Converged: true})
	return nil
}

// truncError returns the worst local truncation error estimate over
// all reactive devices for the candidate solution.
func (tr *Transient) truncError() float64 {
	maxLTE := 0.0
	solution := tr.Circuit.GetSolution()
	for _, dev := range tr.Circuit.GetDevices() {
		if td, ok := dev.(device.TimeDependent); ok {
			lte := td.CalculateLTE(solution, tr.Circuit.Status)
			if lte > maxLTE {
				maxLTE = lte
			}
		}
	}
	return maxLTE
}
