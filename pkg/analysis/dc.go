package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/breadboard-eda/breadboard/pkg/circuit"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/simlog"
)

// sweepSource is any element whose drive level can be stepped.
// Voltage and current sources both qualify.
type sweepSource interface {
	device.Device
	SetValue(float64)
}

// DCSweep steps one or two sources through their ranges and solves an
// operating point at every combination.
type DCSweep struct {
	BaseAnalysis
	sourceNames []string
	startVals   []float64
	stopVals    []float64
	increments  []float64
	sweepVals   [][]float64
	origVals    []float64
}

func NewDCSweep(sources []string, starts, stops, increments []float64) *DCSweep {
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(increments) {
		panic("inconsistent parameter lengths")
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceNames:  sources,
		startVals:    starts,
		stopVals:     stops,
		increments:   increments,
		sweepVals:    make([][]float64, len(sources)),
		origVals:     make([]float64, len(sources)),
	}

	for i := range sources {
		dc.sweepVals[i] = sweepPoints(starts[i], stops[i], increments[i])
	}

	return dc
}

// sweepPoints expands start/stop/increment into explicit values. The
// count is computed up front so rounding never drops the stop value,
// and a negative increment sweeps downward.
func sweepPoints(start, stop, incr float64) []float64 {
	if incr == 0 {
		return []float64{start}
	}

	n := int(math.Floor((stop-start)/incr+1e-9)) + 1
	if n < 1 {
		return []float64{start}
	}

	points := make([]float64, n)
	for i := range points {
		points[i] = start + float64(i)*incr
	}
	return points
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	dc.Circuit = ckt

	for i, name := range dc.sourceNames {
		src, err := dc.findSource(name)
		if err != nil {
			return err
		}
		dc.origVals[i] = src.GetValue()
	}

	return nil
}

func (dc *DCSweep) findSource(name string) (sweepSource, error) {
	for _, dev := range dc.Circuit.GetDevices() {
		if !strings.EqualFold(dev.GetName(), name) {
			continue
		}
		if src, ok := dev.(sweepSource); ok {
			return src, nil
		}
		return nil, fmt.Errorf("element %s is not a sweepable source", name)
	}
	return nil, fmt.Errorf("source %s not found", name)
}

func (dc *DCSweep) Execute() error {
	if dc.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	dc.log.Log(simlog.Event{
		Analysis: "dc", Phase: simlog.PhaseStart,
		Detail: strings.Join(dc.sourceNames, ","),
	})

	var err error
	switch len(dc.sourceNames) {
	case 1:
		err = dc.singleSweep()
	case 2:
		err = dc.nestedSweep()
	default:
		err = fmt.Errorf("unsupported number of sweep sources: %d", len(dc.sourceNames))
	}
	if err != nil {
		return err
	}

	dc.log.Log(simlog.Event{Analysis: "dc", Phase: simlog.PhaseEnd, Converged: true})
	return nil
}

// solvePoint runs one operating point at the present source settings.
// Device bias carries over between points, which keeps Newton close to
// the solution along the sweep.
func (dc *DCSweep) solvePoint() error {
	status := &device.CircuitStatus{
		Mode: device.OperatingPointAnalysis,
		Temp: dc.Circuit.Temperature(),
		Gmin: dc.convergence.gmin,
	}
	_, err := dc.newtonSolve(status, 0)
	return err
}

func (dc *DCSweep) singleSweep() error {
	source, err := dc.findSource(dc.sourceNames[0])
	if err != nil {
		return err
	}

	for _, val := range dc.sweepVals[0] {
		source.SetValue(val)

		if err := dc.solvePoint(); err != nil {
			dc.log.Log(simlog.Event{Analysis: "dc", Phase: simlog.PhaseEnd, Sweep: val})
			return fmt.Errorf("convergence error at %s=%g: %v", dc.sourceNames[0], val, err)
		}

		dc.StoreResult(val, dc.Circuit.GetSolution())
	}

	source.SetValue(dc.origVals[0])
	return nil
}

func (dc *DCSweep) nestedSweep() error {
	source1, err := dc.findSource(dc.sourceNames[0])
	if err != nil {
		return err
	}
	source2, err := dc.findSource(dc.sourceNames[1])
	if err != nil {
		return err
	}

	for _, val1 := range dc.sweepVals[0] {
		source1.SetValue(val1)

		for _, val2 := range dc.sweepVals[1] {
			source2.SetValue(val2)

			if err := dc.solvePoint(); err != nil {
				dc.log.Log(simlog.Event{Analysis: "dc", Phase: simlog.PhaseEnd, Sweep: val2})
				return fmt.Errorf("convergence error at %s=%g, %s=%g: %v",
					dc.sourceNames[0], val1, dc.sourceNames[1], val2, err)
			}

			dc.StoreNestedResult(val1, val2, dc.Circuit.GetSolution())
		}
	}

	source1.SetValue(dc.origVals[0])
	source2.SetValue(dc.origVals[1])
	return nil
}

func (dc *DCSweep) StoreResult(sweepVal float64, solution map[string]float64) {
	dc.results["SWEEP1"] = append(dc.results["SWEEP1"], sweepVal)
	for name, value := range solution {
		dc.results[name] = append(dc.results[name], value)
	}
}

func (dc *DCSweep) StoreNestedResult(val1, val2 float64, solution map[string]float64) {
	dc.results["SWEEP1"] = append(dc.results["SWEEP1"], val1)
	dc.results["SWEEP2"] = append(dc.results["SWEEP2"], val2)
	for name, value := range solution {
		dc.results[name] = append(dc.results[name], value)
	}
}
