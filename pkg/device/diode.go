package device

import (
	"fmt"
	"math"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/matrix"
)

type Diode struct {
	BaseDevice
	// Model parameters
	Is   float64 // Saturation current
	N    float64 // Emission coefficient
	Rs   float64 // Series resistance, not used yet
	Cj0  float64 // Zero-bias junction capacitance
	M    float64 // Grading coefficient
	Vj   float64 // Built-in potential
	Bv   float64 // Breakdown voltage
	Gmin float64 // Minimum conductance

	// Temperature parameters
	Eg  float64 // Energy gap (eV)
	Xti float64 // Saturation current temperature exponent
	Tt  float64 // Transit time
	Fc  float64 // Forward-bias depletion capacitance coefficient

	// Operating point state
	vd float64
	id float64
	gd float64

	// Transient state
	vdOld      float64
	idOld      float64
	capCurrent float64
}

var _ NonLinear = (*Diode)(nil)
var _ TimeDependent = (*Diode)(nil)
var _ ACStamper = (*Diode)(nil)

func NewDiode(name string, nodeNames []string) *Diode {
	d := &Diode{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
	}
	d.setDefaultParameters()
	return d
}

func (d *Diode) GetType() string { return "D" }

func (d *Diode) setDefaultParameters() {
	d.Is = 1e-14
	d.N = 1.0
	d.Rs = 0.0
	d.Cj0 = 0.0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Gmin = 1e-12

	d.Eg = 1.11 // Silicon bandgap
	d.Xti = 3.0
	d.Tt = 0.0
	d.Fc = 0.5
}

func (d *Diode) SetModelParameters(params map[string]float64) {
	targets := map[string]*float64{
		"is":  &d.Is,
		"n":   &d.N,
		"rs":  &d.Rs,
		"cj0": &d.Cj0,
		"m":   &d.M,
		"vj":  &d.Vj,
		"bv":  &d.Bv,
		"eg":  &d.Eg,
		"xti": &d.Xti,
		"tt":  &d.Tt,
		"fc":  &d.Fc,
	}

	for key, value := range params {
		if target, ok := targets[key]; ok {
			*target = value
		}
	}
}

func (d *Diode) temperatureAdjustedIs(temp float64) float64 {
	vt := consts.ThermalVoltage(temp)

	// is(T2) = is(T1) * (T2/T1)^(XTI/N) * exp(-(Eg/(2*vt))*(T2/T1 - 1))
	ratio := temp / consts.REFTEMP
	egfact := -d.Eg / (2 * vt) * (temp/consts.REFTEMP - 1.0)

	return d.Is * math.Pow(ratio, d.Xti/d.N) * math.Exp(egfact)
}

func (d *Diode) calculateCurrent(vd, temp float64) float64 {
	nvt := d.N * consts.ThermalVoltage(temp)

	// Forward bias and weak reverse bias
	if vd > -3.0*nvt {
		arg := vd / nvt
		if arg > 40.0 {
			arg = 40.0
		}
		evd := math.Exp(arg)
		isT := d.temperatureAdjustedIs(temp)
		return isT * (evd - 1.0)
	}

	return -d.temperatureAdjustedIs(temp)
}

func (d *Diode) calculateConductance(vd, id, temp float64) float64 {
	nvt := d.N * consts.ThermalVoltage(temp)

	if vd > -3.0*nvt {
		return (math.Abs(id)+d.temperatureAdjustedIs(temp))/nvt + d.Gmin
	}

	// Strong reverse bias
	return d.Gmin
}

func (d *Diode) calculateJunctionCap(vd float64) float64 {
	if d.Cj0 == 0 {
		return 0
	}

	if vd < 0 {
		arg := 1 - vd/d.Vj
		if arg < 0.1 {
			arg = 0.1
		}
		return d.Cj0 / math.Pow(arg, d.M)
	}

	// Forward bias
	return d.Cj0 * (1 + d.M*vd/d.Vj)
}

func (d *Diode) diffusionCapacitance(vd float64, temp float64, timeStep float64) float64 {
	if d.Tt == 0.0 || timeStep == 0.0 {
		return 0.0
	}

	id := d.calculateCurrent(vd, temp)
	didt := (id - d.idOld) / timeStep

	// Cd = Tt * dI/dt
	return d.Tt * didt
}

func (d *Diode) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if status.Mode == ACAnalysis {
		return d.StampAC(matrix, status)
	}

	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]

	d.id = d.calculateCurrent(d.vd, status.Temp)
	d.gd = d.calculateConductance(d.vd, d.id, status.Temp)

	if status.Mode == TransientAnalysis && status.TimeStep > 0 {
		cd := d.diffusionCapacitance(d.vd, status.Temp, status.TimeStep)
		d.capCurrent = cd * (d.vd - d.vdOld) / status.TimeStep
		d.id += d.capCurrent
	}

	if n1 != 0 {
		matrix.AddElement(n1, n1, d.gd)
		if n2 != 0 {
			matrix.AddElement(n1, n2, -d.gd)
		}
		matrix.AddRHS(n1, -(d.id - d.gd*d.vd))
	}

	if n2 != 0 {
		if n1 != 0 {
			matrix.AddElement(n2, n1, -d.gd)
		}
		matrix.AddElement(n2, n2, d.gd)
		matrix.AddRHS(n2, (d.id - d.gd*d.vd))
	}

	return nil
}

func (d *Diode) StampAC(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]
	omega := 2 * math.Pi * status.Frequency

	// Small-signal admittance around the operating point: G + jωC
	gd := d.gd
	cj := d.calculateJunctionCap(d.vd)
	yeq := complex(gd, omega*cj)

	if n1 != 0 {
		matrix.AddComplexElement(n1, n1, real(yeq), imag(yeq))
		if n2 != 0 {
			matrix.AddComplexElement(n1, n2, -real(yeq), -imag(yeq))
		}
	}

	if n2 != 0 {
		if n1 != 0 {
			matrix.AddComplexElement(n2, n1, -real(yeq), -imag(yeq))
		}
		matrix.AddComplexElement(n2, n2, real(yeq), imag(yeq))
	}

	return nil
}

func (d *Diode) LoadConductance(matrix matrix.DeviceMatrix) error {
	n1, n2 := d.Nodes[0], d.Nodes[1]

	if n1 != 0 {
		matrix.AddElement(n1, n1, d.gd)
		if n2 != 0 {
			matrix.AddElement(n1, n2, -d.gd)
		}
	}
	if n2 != 0 {
		if n1 != 0 {
			matrix.AddElement(n2, n1, -d.gd)
		}
		matrix.AddElement(n2, n2, d.gd)
	}

	return nil
}

func (d *Diode) LoadCurrent(matrix matrix.DeviceMatrix) error {
	n1, n2 := d.Nodes[0], d.Nodes[1]

	if n1 != 0 {
		matrix.AddRHS(n1, -(d.id - d.gd*d.vd))
	}
	if n2 != 0 {
		matrix.AddRHS(n2, (d.id - d.gd*d.vd))
	}

	return nil
}

func (d *Diode) SetTimeStep(dt float64) {}

func (d *Diode) UpdateState(voltages []float64, status *CircuitStatus) {
	d.vdOld = d.vd
	d.idOld = d.id - d.capCurrent // Store DC current only
	d.capCurrent = 0.0
}

func (d *Diode) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	return math.Abs(d.vd - d.vdOld)
}

func (d *Diode) UpdateVoltages(voltages []float64) error {
	if len(d.Nodes) != 2 {
		return fmt.Errorf("diode %s: requires exactly 2 nodes", d.Name)
	}

	n1, n2 := d.Nodes[0], d.Nodes[1]
	var v1, v2 float64

	if n1 != 0 {
		v1 = voltages[n1]
	}
	if n2 != 0 {
		v2 = voltages[n2]
	}

	d.vd = v1 - v2
	return nil
}
