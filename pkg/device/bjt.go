package device

import (
	"fmt"
	"math"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/matrix"
)

// Bjt is a Gummel-Poon style bipolar transistor. Nodes are collector,
// base, emitter. PNP devices run the NPN equations on sign-flipped
// junction voltages, the same trick the MOSFET uses for PMOS.
type Bjt struct {
	BaseDevice
	// DC model parameters
	Is  float64 // Transport saturation current
	Bf  float64 // Ideal maximum forward beta
	Br  float64 // Ideal maximum reverse beta
	Nf  float64 // Forward emission coefficient
	Nr  float64 // Reverse emission coefficient
	Vaf float64 // Forward Early voltage
	Var float64 // Reverse Early voltage
	Ikf float64 // Forward beta roll-off corner current
	Ikr float64 // Reverse beta roll-off corner current
	Ise float64 // B-E leakage saturation current
	Ne  float64 // B-E leakage emission coefficient
	Isc float64 // B-C leakage saturation current
	Nc  float64 // B-C leakage emission coefficient

	// AC and capacitance parameters
	Cje  float64 // B-E zero-bias depletion capacitance
	Vje  float64 // B-E built-in potential
	Mje  float64 // B-E grading coefficient
	Fc   float64 // Forward bias depletion capacitance coefficient
	Cjc  float64 // B-C zero-bias depletion capacitance
	Vjc  float64 // B-C built-in potential
	Mjc  float64 // B-C grading coefficient
	Xcjc float64 // Fraction of B-C capacitance at the internal base
	Tf   float64 // Ideal forward transit time
	Tr   float64 // Ideal reverse transit time

	// Temperature parameters
	Xtb  float64 // Beta temperature coefficient
	Eg   float64 // Energy gap
	Xti  float64 // Temperature exponent for Is
	Tnom float64 // Parameter measurement temperature

	pnp bool

	// Junction voltages in NPN space
	vbe float64
	vbc float64
	vce float64

	// Branch currents and small-signal conductances
	ic  float64
	ib  float64
	ie  float64
	it  float64 // Transport current, collector to emitter
	ibe float64 // B-E diode current
	ibc float64 // B-C diode current
	gm  float64
	gpi float64
	gmu float64
	gout float64
	qbe float64
	qbc float64

	seeded bool

	// Previous timepoint state
	prevVbe float64
	prevVbc float64
	prevIc  float64
	prevIb  float64
	prevQbe float64
	prevQbc float64
}

var _ NonLinear = (*Bjt)(nil)
var _ TimeDependent = (*Bjt)(nil)
var _ ACStamper = (*Bjt)(nil)

func NewBJT(name string, nodeNames []string, pnp bool) *Bjt {
	b := &Bjt{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
		pnp: pnp,
	}
	b.setDefaultParameters()
	return b
}

func (b *Bjt) GetType() string { return "Q" }

func (b *Bjt) IsPNP() bool { return b.pnp }

func (b *Bjt) setDefaultParameters() {
	b.Is = 1e-16
	b.Bf = 100.0
	b.Br = 1.0
	b.Nf = 1.0
	b.Nr = 1.0
	b.Vaf = 100.0
	b.Var = 100.0
	b.Ikf = 0.01
	b.Ikr = 0.01
	b.Ise = 0.0
	b.Ne = 1.5
	b.Isc = 0.0
	b.Nc = 2.0

	b.Cje = 0.0
	b.Vje = 0.75
	b.Mje = 0.33
	b.Fc = 0.5
	b.Cjc = 0.0
	b.Vjc = 0.75
	b.Mjc = 0.33
	b.Xcjc = 1.0
	b.Tf = 0.0
	b.Tr = 0.0

	b.Xtb = 0.0
	b.Eg = 1.11
	b.Xti = 3.0
	b.Tnom = consts.REFTEMP
}

func (b *Bjt) SetModelParameters(params map[string]float64) {
	targets := map[string]*float64{
		"is":  &b.Is,
		"bf":  &b.Bf,
		"br":  &b.Br,
		"nf":  &b.Nf,
		"nr":  &b.Nr,
		"vaf": &b.Vaf,
		"var": &b.Var,
		"ikf": &b.Ikf,
		"ikr": &b.Ikr,
		"ise": &b.Ise,
		"ne":  &b.Ne,
		"isc": &b.Isc,
		"nc":  &b.Nc,

		"cje":  &b.Cje,
		"vje":  &b.Vje,
		"mje":  &b.Mje,
		"fc":   &b.Fc,
		"cjc":  &b.Cjc,
		"vjc":  &b.Vjc,
		"mjc":  &b.Mjc,
		"xcjc": &b.Xcjc,
		"tf":   &b.Tf,
		"tr":   &b.Tr,

		"xtb":  &b.Xtb,
		"eg":   &b.Eg,
		"xti":  &b.Xti,
		"tnom": &b.Tnom,
	}

	for key, value := range params {
		if target, ok := targets[key]; ok {
			*target = value
		}
	}
}

func (b *Bjt) temperatureAdjustedIs(temp float64) float64 {
	vt := consts.ThermalVoltage(temp)
	ratio := temp / b.Tnom

	factlog := b.Eg/vt*(ratio-1.0) + b.Xti*math.Log(ratio)
	return b.Is * b.limitExp(factlog)
}

func (b *Bjt) temperatureAdjustedBeta(temp float64) (float64, float64) {
	ratio := temp / b.Tnom

	bf := b.Bf * math.Pow(ratio, b.Xtb)
	br := b.Br * math.Pow(ratio, b.Xtb)

	return bf, br
}

func (b *Bjt) temperatureAdjustedLeakage(temp float64) (float64, float64) {
	vt := consts.ThermalVoltage(temp)
	ratio := temp / b.Tnom

	iseT := b.Ise * math.Pow(ratio, b.Xti/b.Ne) * b.limitExp(b.Eg/vt*(ratio-1.0))
	iscT := b.Isc * math.Pow(ratio, b.Xti/b.Nc) * b.limitExp(b.Eg/vt*(ratio-1.0))

	return iseT, iscT
}

// calculateCurrents evaluates the transport model at the stored junction
// voltages and fills the current and conductance state.
func (b *Bjt) calculateCurrents(temp float64) {
	vt := consts.ThermalVoltage(temp)
	isT := b.temperatureAdjustedIs(temp)
	bfT, brT := b.temperatureAdjustedBeta(temp)
	iseT, iscT := b.temperatureAdjustedLeakage(temp)

	iF, gf := b.diodeCurrentSlope(b.vbe, isT, b.Nf*vt)
	iR, gr := b.diodeCurrentSlope(b.vbc, isT, b.Nr*vt)

	// Base charge: Early effect in q1, high-level injection in q2.
	q1 := 1.0
	if b.Vaf > 0 || b.Var > 0 {
		denom := 1.0 - b.vbc/math.Max(b.Vaf, 1e-10) - b.vbe/math.Max(b.Var, 1e-10)
		if denom < 0.1 {
			denom = 0.1
		}
		q1 = 1.0 / denom
	}
	q2 := 0.0
	if b.Ikf > 0 {
		q2 += iF / b.Ikf
	}
	if b.Ikr > 0 {
		q2 += iR / b.Ikr
	}
	qb := q1 * (1.0 + math.Sqrt(1.0+4.0*math.Max(q2, 0))) / 2.0

	b.it = (iF - iR) / qb

	b.ibe = iF / bfT
	if b.Ise > 0 {
		ile, _ := b.diodeCurrentSlope(b.vbe, iseT, b.Ne*vt)
		b.ibe += ile
	}
	b.ibc = iR / brT
	if b.Isc > 0 {
		ilc, _ := b.diodeCurrentSlope(b.vbc, iscT, b.Nc*vt)
		b.ibc += ilc
	}

	b.ib = b.ibe + b.ibc
	b.ic = b.it - b.ibc
	b.ie = -(b.ic + b.ib)

	const gminFloor = 1e-12
	b.gm = math.Max(gf/qb, gminFloor)
	b.gpi = math.Max(gf/bfT, gminFloor)
	b.gmu = math.Max(gr/brT, gminFloor)
	b.gout = gminFloor
	if b.Vaf > 0 {
		b.gout += math.Abs(b.it) / math.Max(b.Vaf, 1.0)
	}
}

func (b *Bjt) calculateCapacitances() (float64, float64) {
	cbe := b.junctionCap(b.Cje, b.vbe, b.Vje, b.Mje)
	cbc := b.junctionCap(b.Cjc, b.vbc, b.Vjc, b.Mjc)

	// Diffusion capacitance from transit time
	if b.Tf > 0 {
		cbe += b.Tf * b.gm
	}
	if b.Tr > 0 {
		cbc += b.Tr * b.gmu
	}

	return cbe, cbc
}

func (b *Bjt) junctionCap(cj0, v, vj, m float64) float64 {
	if cj0 == 0 {
		return 0
	}
	if v < 0 {
		arg := 1 - v/vj
		if arg < 0.1 {
			arg = 0.1
		}
		return cj0 / math.Pow(arg, m)
	}
	return cj0 * (1 + m*v/vj)
}

func (b *Bjt) sign() float64 {
	if b.pnp {
		return -1.0
	}
	return 1.0
}

func (b *Bjt) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if status.Mode == ACAnalysis {
		return b.StampAC(matrix, status)
	}

	if len(b.Nodes) != 3 {
		return fmt.Errorf("bjt %s: requires exactly 3 nodes", b.Name)
	}

	nc := b.Nodes[0] // Collector
	nb := b.Nodes[1] // Base
	ne := b.Nodes[2] // Emitter

	// Seed a typical forward-active bias so the first iteration has
	// nonzero conductance to work with.
	if !b.seeded && b.vbe == 0 && b.vce == 0 {
		b.vbe = 0.7
		b.vce = 0.3
		b.vbc = b.vbe - b.vce
		b.seeded = true
	}

	b.calculateCurrents(status.Temp)

	gm := b.gm
	gpi := b.gpi + status.Gmin
	gmu := b.gmu + status.Gmin
	gout := b.gout + status.Gmin

	// Companion currents in external polarity.
	s := b.sign()
	ceqT := s * (b.it - gm*b.vbe - gout*b.vce)
	ceqBE := s * (b.ibe - gpi*b.vbe)
	ceqBC := s * (b.ibc - gmu*b.vbc)

	if nc != 0 {
		matrix.AddElement(nc, nc, gout+gmu)
		if nb != 0 {
			matrix.AddElement(nc, nb, gm-gmu)
		}
		if ne != 0 {
			matrix.AddElement(nc, ne, -gout-gm)
		}
		matrix.AddRHS(nc, -ceqT+ceqBC)
	}

	if nb != 0 {
		matrix.AddElement(nb, nb, gpi+gmu)
		if nc != 0 {
			matrix.AddElement(nb, nc, -gmu)
		}
		if ne != 0 {
			matrix.AddElement(nb, ne, -gpi)
		}
		matrix.AddRHS(nb, -ceqBE-ceqBC)
	}

	if ne != 0 {
		matrix.AddElement(ne, ne, gpi+gm+gout)
		if nc != 0 {
			matrix.AddElement(ne, nc, -gout)
		}
		if nb != 0 {
			matrix.AddElement(ne, nb, -gpi-gm)
		}
		matrix.AddRHS(ne, ceqT+ceqBE)
	}

	return nil
}

// StampAC loads the small-signal model around the operating point:
// gpi and Cbe between base and emitter, gmu and Cbc between base and
// collector, the gm transconductance and go across the output.
func (b *Bjt) StampAC(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	nc := b.Nodes[0]
	nb := b.Nodes[1]
	ne := b.Nodes[2]

	cbe, cbc := b.calculateCapacitances()
	omega := 2 * math.Pi * status.Frequency

	// B-E branch
	stampComplexPair(matrix, nb, ne, b.gpi, omega*cbe)
	// B-C branch
	stampComplexPair(matrix, nb, nc, b.gmu, omega*cbc)
	// Output conductance
	stampComplexPair(matrix, nc, ne, b.gout, 0)

	// Transconductance: current gm*vbe from collector to emitter.
	if nc != 0 {
		if nb != 0 {
			matrix.AddComplexElement(nc, nb, b.gm, 0)
		}
		if ne != 0 {
			matrix.AddComplexElement(nc, ne, -b.gm, 0)
		}
	}
	if ne != 0 {
		if nb != 0 {
			matrix.AddComplexElement(ne, nb, -b.gm, 0)
		}
		matrix.AddComplexElement(ne, ne, b.gm, 0)
	}

	return nil
}

func stampComplexPair(m matrix.DeviceMatrix, n1, n2 int, g, bSusceptance float64) {
	if n1 != 0 {
		m.AddComplexElement(n1, n1, g, bSusceptance)
		if n2 != 0 {
			m.AddComplexElement(n1, n2, -g, -bSusceptance)
		}
	}
	if n2 != 0 {
		m.AddComplexElement(n2, n2, g, bSusceptance)
		if n1 != 0 {
			m.AddComplexElement(n2, n1, -g, -bSusceptance)
		}
	}
}

func (b *Bjt) LoadConductance(matrix matrix.DeviceMatrix) error {
	nc := b.Nodes[0]
	nb := b.Nodes[1]
	ne := b.Nodes[2]

	if nc != 0 {
		matrix.AddElement(nc, nc, b.gout+b.gmu)
		if nb != 0 {
			matrix.AddElement(nc, nb, b.gm-b.gmu)
		}
		if ne != 0 {
			matrix.AddElement(nc, ne, -b.gout-b.gm)
		}
	}

	if nb != 0 {
		matrix.AddElement(nb, nb, b.gpi+b.gmu)
		if nc != 0 {
			matrix.AddElement(nb, nc, -b.gmu)
		}
		if ne != 0 {
			matrix.AddElement(nb, ne, -b.gpi)
		}
	}

	if ne != 0 {
		matrix.AddElement(ne, ne, b.gpi+b.gm+b.gout)
		if nc != 0 {
			matrix.AddElement(ne, nc, -b.gout)
		}
		if nb != 0 {
			matrix.AddElement(ne, nb, -b.gpi-b.gm)
		}
	}

	return nil
}

func (b *Bjt) LoadCurrent(matrix matrix.DeviceMatrix) error {
	nc := b.Nodes[0]
	nb := b.Nodes[1]
	ne := b.Nodes[2]

	s := b.sign()
	ceqT := s * (b.it - b.gm*b.vbe - b.gout*b.vce)
	ceqBE := s * (b.ibe - b.gpi*b.vbe)
	ceqBC := s * (b.ibc - b.gmu*b.vbc)

	if nc != 0 {
		matrix.AddRHS(nc, -ceqT+ceqBC)
	}
	if nb != 0 {
		matrix.AddRHS(nb, -ceqBE-ceqBC)
	}
	if ne != 0 {
		matrix.AddRHS(ne, ceqT+ceqBE)
	}

	return nil
}

// UpdateVoltages pulls junction voltages from the latest Newton
// solution with SPICE style pn-junction limiting to keep the
// exponentials in range.
func (b *Bjt) UpdateVoltages(voltages []float64) error {
	if len(b.Nodes) != 3 {
		return fmt.Errorf("bjt %s: requires exactly 3 nodes", b.Name)
	}

	var vc, vb, ve float64
	if b.Nodes[0] != 0 {
		vc = voltages[b.Nodes[0]]
	}
	if b.Nodes[1] != 0 {
		vb = voltages[b.Nodes[1]]
	}
	if b.Nodes[2] != 0 {
		ve = voltages[b.Nodes[2]]
	}

	s := b.sign()
	vt := consts.ThermalVoltage(b.Tnom)

	vbeNew := b.limitJunction(s*(vb-ve), b.vbe, b.Nf*vt)
	vbcNew := b.limitJunction(s*(vb-vc), b.vbc, b.Nr*vt)

	b.vbe = vbeNew
	b.vbc = vbcNew
	b.vce = vbeNew - vbcNew

	return nil
}

// limitJunction is the pn-junction limiting scheme from Berkeley SPICE:
// once past the critical voltage, steps larger than 2*vt are pulled
// back logarithmically.
func (b *Bjt) limitJunction(vnew, vold, nvt float64) float64 {
	vcrit := nvt * math.Log(nvt/(math.Sqrt2*math.Max(b.Is, 1e-30)))

	if vnew > vcrit && math.Abs(vnew-vold) > nvt+nvt {
		if vold > 0 {
			arg := 1.0 + (vnew-vold)/nvt
			if arg > 0 {
				vnew = vold + nvt*math.Log(arg)
			} else {
				vnew = vcrit
			}
		} else {
			vnew = nvt * math.Log(vnew/nvt)
		}
	}

	if vnew < -5.0 {
		vnew = -5.0
	}

	return vnew
}

func (b *Bjt) limitExp(x float64) float64 {
	if x > 80.0 {
		return math.Exp(80.0)
	}
	if x < -80.0 {
		return math.Exp(-80.0)
	}
	return math.Exp(x)
}

func (b *Bjt) UpdateState(voltages []float64, status *CircuitStatus) {
	b.prevVbe = b.vbe
	b.prevVbc = b.vbc
	b.prevIc = b.ic
	b.prevIb = b.ib
	b.prevQbe = b.qbe
	b.prevQbc = b.qbc

	cbe, cbc := b.calculateCapacitances()
	b.qbe = cbe*b.vbe + b.Tf*b.it
	b.qbc = cbc * b.vbc
}

func (b *Bjt) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	dv := math.Max(math.Abs(b.vbe-b.prevVbe), math.Abs(b.vbc-b.prevVbc))
	di := math.Max(math.Abs(b.ic-b.prevIc), math.Abs(b.ib-b.prevIb))

	return math.Max(dv, di)
}

func (b *Bjt) SetTimeStep(dt float64) {}

func (b *Bjt) diodeCurrentSlope(v, is, nvt float64) (float64, float64) {
	if v < -3.0*nvt {
		return -is, 0.0
	}
	ev := b.limitExp(v / nvt)
	current := is * (ev - 1.0)
	conductance := is * ev / nvt
	return current, conductance
}
