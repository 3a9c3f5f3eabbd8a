package device

import (
	"fmt"
	"math"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/matrix"
)

// Mosfet is a level 1 (Shichman-Hodges) MOSFET. Nodes are drain, gate,
// source, bulk. Junction voltages are kept in NMOS space internally;
// PMOS flips them on the way in and the currents on the way out.
type Mosfet struct {
	BaseDevice
	pmos bool

	// Geometry parameters
	L  float64 // Channel length (m)
	W  float64 // Channel width (m)
	AD float64 // Drain area (m²)
	AS float64 // Source area (m²)
	PD float64 // Drain perimeter (m)
	PS float64 // Source perimeter (m)

	// DC parameters
	VTO    float64 // Threshold voltage
	KP     float64 // Transconductance parameter (A/V²)
	GAMMA  float64 // Body effect parameter (V^0.5)
	PHI    float64 // Surface potential (V)
	LAMBDA float64 // Channel length modulation (1/V)
	IS     float64 // Bulk junction saturation current (A)

	// Capacitance parameters
	CBD  float64 // Bulk-drain zero-bias capacitance (F)
	CBS  float64 // Bulk-source zero-bias capacitance (F)
	CGSO float64 // Gate-source overlap capacitance per width (F/m)
	CGDO float64 // Gate-drain overlap capacitance per width (F/m)
	CGBO float64 // Gate-bulk overlap capacitance per length (F/m)
	CJ   float64 // Bulk junction capacitance (F/m²)
	MJ   float64 // Bulk junction grading coefficient
	CJSW float64 // Bulk junction sidewall capacitance (F/m)
	PB   float64 // Bulk junction potential (V)
	FC   float64 // Forward-bias depletion capacitance coefficient
	TOX  float64 // Oxide thickness (m)

	TNOM float64 // Parameter measurement temperature (K)

	// Junction voltages in NMOS space
	vgs float64
	vds float64
	vbs float64
	vgd float64
	vbd float64

	id   float64 // Drain current, NMOS space
	gm   float64
	gds  float64
	gmbs float64
	cgs  float64
	cgd  float64
	cgb  float64
	cbs  float64 // Effective bulk-source junction capacitance
	cbd  float64

	region int

	seeded bool

	prevVgs float64
	prevVds float64
	prevVbs float64
	prevId  float64

	qgs float64
	qgd float64
	qgb float64
	qbs float64
	qbd float64

	prevQgs float64
	prevQgd float64
	prevQgb float64
	prevQbs float64
	prevQbd float64
}

const (
	CUTOFF     = 0
	LINEAR     = 1
	SATURATION = 2
)

var _ NonLinear = (*Mosfet)(nil)
var _ TimeDependent = (*Mosfet)(nil)
var _ ACStamper = (*Mosfet)(nil)

func NewMosfet(name string, nodeNames []string, pmos bool) *Mosfet {
	m := &Mosfet{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
		},
		pmos: pmos,
	}
	m.setDefaultParameters()
	return m
}

func (m *Mosfet) GetType() string { return "M" }

func (m *Mosfet) IsPMOS() bool { return m.pmos }

func (m *Mosfet) setDefaultParameters() {
	m.L = 10e-6
	m.W = 10e-6
	m.AD = 0.0
	m.AS = 0.0
	m.PD = 0.0
	m.PS = 0.0

	m.VTO = 0.7
	m.KP = 2e-5
	m.GAMMA = 0.5
	m.PHI = 0.6
	m.LAMBDA = 0.01
	m.IS = 1e-14

	m.CBD = 0.0
	m.CBS = 0.0
	m.CGSO = 0.0
	m.CGDO = 0.0
	m.CGBO = 0.0
	m.CJ = 0.0
	m.MJ = 0.5
	m.CJSW = 0.0
	m.PB = 0.8
	m.FC = 0.5
	m.TOX = 1e-7

	m.TNOM = consts.REFTEMP
}

func (m *Mosfet) SetModelParameters(params map[string]float64) {
	targets := map[string]*float64{
		"l":  &m.L,
		"w":  &m.W,
		"ad": &m.AD,
		"as": &m.AS,
		"pd": &m.PD,
		"ps": &m.PS,

		"vto":    &m.VTO,
		"kp":     &m.KP,
		"gamma":  &m.GAMMA,
		"phi":    &m.PHI,
		"lambda": &m.LAMBDA,
		"is":     &m.IS,

		"cbd":  &m.CBD,
		"cbs":  &m.CBS,
		"cgso": &m.CGSO,
		"cgdo": &m.CGDO,
		"cgbo": &m.CGBO,
		"cj":   &m.CJ,
		"mj":   &m.MJ,
		"cjsw": &m.CJSW,
		"pb":   &m.PB,
		"fc":   &m.FC,
		"tox":  &m.TOX,

		"tnom": &m.TNOM,
	}

	for key, value := range params {
		if target, ok := targets[key]; ok {
			*target = value
		}
	}
}

func (m *Mosfet) sign() float64 {
	if m.pmos {
		return -1.0
	}
	return 1.0
}

// calculateVth applies the body effect in NMOS space.
func (m *Mosfet) calculateVth(vbs float64) float64 {
	if m.GAMMA > 0 {
		return m.VTO + m.GAMMA*(math.Sqrt(math.Max(0, m.PHI-vbs))-math.Sqrt(m.PHI))
	}
	return m.VTO
}

// calculateCurrents evaluates the square-law model at the stored
// junction voltages and fills id and the operating region.
func (m *Mosfet) calculateCurrents() {
	vth := m.calculateVth(m.vbs)
	vgst := m.vgs - vth

	if vgst <= 0 {
		m.id = 0.0
		m.region = CUTOFF
		return
	}

	beta := m.KP * m.W / m.L

	if m.vds < vgst {
		m.id = beta * (vgst*m.vds - 0.5*m.vds*m.vds) * (1.0 + m.LAMBDA*m.vds)
		m.region = LINEAR
	} else {
		m.id = 0.5 * beta * vgst * vgst * (1.0 + m.LAMBDA*m.vds)
		m.region = SATURATION
	}
}

func (m *Mosfet) calculateConductances() {
	const gmin = 1e-12

	if m.region == CUTOFF {
		m.gm = gmin
		m.gds = gmin
		m.gmbs = gmin
		return
	}

	vth := m.calculateVth(m.vbs)
	vgst := m.vgs - vth
	beta := m.KP * m.W / m.L

	if m.region == LINEAR {
		m.gm = beta * m.vds * (1.0 + m.LAMBDA*m.vds)
		m.gds = beta*(vgst-m.vds)*(1.0+m.LAMBDA*m.vds) + beta*m.LAMBDA*(vgst*m.vds-0.5*m.vds*m.vds)
	} else {
		m.gm = beta * vgst * (1.0 + m.LAMBDA*m.vds)
		m.gds = 0.5 * beta * vgst * vgst * m.LAMBDA
	}

	m.gm = math.Max(m.gm, gmin)
	m.gds = math.Max(m.gds, gmin)

	if m.GAMMA > 0 && m.PHI > 0 && m.vbs < 0 {
		m.gmbs = m.gm * m.GAMMA / (2.0 * math.Sqrt(m.PHI-m.vbs))
	} else {
		m.gmbs = gmin
	}
}

// calculateCapacitances fills the Meyer gate capacitances for the
// present region plus the effective bulk junction capacitances.
func (m *Mosfet) calculateCapacitances() {
	cox := 3.9 * 8.85e-14 / m.TOX
	cgate := cox * m.W * m.L

	cgso := m.CGSO * m.W
	cgdo := m.CGDO * m.W
	cgbo := m.CGBO * m.L

	m.cbs = m.CBS
	if m.cbs == 0 && m.CJ > 0 {
		m.cbs = m.CJ*m.AS + m.CJSW*m.PS
	}
	m.cbd = m.CBD
	if m.cbd == 0 && m.CJ > 0 {
		m.cbd = m.CJ*m.AD + m.CJSW*m.PD
	}

	switch m.region {
	case CUTOFF:
		m.cgs = cgso
		m.cgd = cgdo
		m.cgb = cgbo + 2.0*cgate/3.0

	case LINEAR:
		m.cgs = cgate/2.0 + cgso
		m.cgd = cgate/2.0 + cgdo
		m.cgb = cgbo

	case SATURATION:
		m.cgs = 2.0*cgate/3.0 + cgso
		m.cgd = cgdo
		m.cgb = cgbo + cgate/3.0
	}
}

func (m *Mosfet) calculateCharges() {
	m.qgs = m.cgs * m.vgs
	m.qgd = m.cgd * m.vgd
	m.qgb = m.cgb * (m.vgs - m.vbs)

	cbs := m.cbs
	if m.vbs < 0 {
		cbs = m.cbs / math.Pow(1.0-m.vbs/m.PB, m.MJ)
	} else {
		cbs = m.cbs * (1.0 + m.MJ*m.vbs/m.PB)
	}

	cbd := m.cbd
	if m.vbd < 0 {
		cbd = m.cbd / math.Pow(1.0-m.vbd/m.PB, m.MJ)
	} else {
		cbd = m.cbd * (1.0 + m.MJ*m.vbd/m.PB)
	}

	m.qbs = cbs * m.vbs
	m.qbd = cbd * m.vbd
}

func (m *Mosfet) UpdateVoltages(voltages []float64) error {
	if len(m.Nodes) != 4 {
		return fmt.Errorf("mosfet %s: requires exactly 4 nodes", m.Name)
	}

	var vd, vg, vs, vb float64
	if m.Nodes[0] != 0 {
		vd = voltages[m.Nodes[0]]
	}
	if m.Nodes[1] != 0 {
		vg = voltages[m.Nodes[1]]
	}
	if m.Nodes[2] != 0 {
		vs = voltages[m.Nodes[2]]
	}
	if m.Nodes[3] != 0 {
		vb = voltages[m.Nodes[3]]
	}

	s := m.sign()
	m.vgs = s * (vg - vs)
	m.vds = s * (vd - vs)
	m.vbs = s * (vb - vs)

	m.vgd = m.vgs - m.vds
	m.vbd = m.vbs - m.vds

	return nil
}

func (m *Mosfet) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if status.Mode == ACAnalysis {
		return m.StampAC(matrix, status)
	}

	if len(m.Nodes) != 4 {
		return fmt.Errorf("mosfet %s: requires exactly 4 nodes", m.Name)
	}

	nd := m.Nodes[0] // Drain
	ng := m.Nodes[1] // Gate
	ns := m.Nodes[2] // Source
	nb := m.Nodes[3] // Bulk

	// Seed a conducting bias for the first iteration.
	if !m.seeded && m.vgs == 0 && m.vds == 0 && m.vbs == 0 {
		m.vgs = m.VTO + 0.5
		m.vds = 0.1
		m.vgd = m.vgs - m.vds
		m.vbd = m.vbs - m.vds
		m.seeded = true
	}

	m.calculateCurrents()
	m.calculateConductances()
	m.calculateCapacitances()

	gmin := status.Gmin
	s := m.sign()
	ieq := s * (m.id - m.gds*m.vds - m.gm*m.vgs - m.gmbs*m.vbs)

	if nd != 0 {
		matrix.AddElement(nd, nd, m.gds+gmin)
		if ng != 0 {
			matrix.AddElement(nd, ng, m.gm)
		}
		if ns != 0 {
			matrix.AddElement(nd, ns, -m.gds-m.gm-m.gmbs)
		}
		if nb != 0 {
			matrix.AddElement(nd, nb, m.gmbs)
		}
		matrix.AddRHS(nd, -ieq)
	}

	if ns != 0 {
		matrix.AddElement(ns, ns, m.gds+m.gm+m.gmbs+gmin)
		if nd != 0 {
			matrix.AddElement(ns, nd, -m.gds)
		}
		if ng != 0 {
			matrix.AddElement(ns, ng, -m.gm)
		}
		if nb != 0 {
			matrix.AddElement(ns, nb, -m.gmbs)
		}
		matrix.AddRHS(ns, ieq)
	}

	if status.Mode == TransientAnalysis && status.TimeStep > 0 {
		m.stampCharges(matrix, status.TimeStep)
	}

	return nil
}

// stampCharges loads the companion models of the gate and bulk
// capacitances for a transient timepoint.
func (m *Mosfet) stampCharges(mat matrix.DeviceMatrix, dt float64) {
	nd := m.Nodes[0]
	ng := m.Nodes[1]
	ns := m.Nodes[2]
	nb := m.Nodes[3]

	m.calculateCharges()

	s := m.sign()

	// Companion model per charge branch: geq plus an equivalent current
	// that carries the charge history.
	stampCapPair := func(n1, n2 int, c, q, qprev, v0 float64) {
		geq := c / dt
		ieq := s * ((q-qprev)/dt - geq*v0)

		if n1 != 0 {
			mat.AddElement(n1, n1, geq)
			if n2 != 0 {
				mat.AddElement(n1, n2, -geq)
			}
			mat.AddRHS(n1, -ieq)
		}
		if n2 != 0 {
			mat.AddElement(n2, n2, geq)
			if n1 != 0 {
				mat.AddElement(n2, n1, -geq)
			}
			mat.AddRHS(n2, ieq)
		}
	}

	stampCapPair(ng, ns, m.cgs, m.qgs, m.prevQgs, m.vgs)
	stampCapPair(ng, nd, m.cgd, m.qgd, m.prevQgd, m.vgd)
	stampCapPair(ng, nb, m.cgb, m.qgb, m.prevQgb, m.vgs-m.vbs)
	stampCapPair(nb, ns, m.cbs, m.qbs, m.prevQbs, m.vbs)
	stampCapPair(nb, nd, m.cbd, m.qbd, m.prevQbd, m.vbd)
}

func (m *Mosfet) StampAC(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	nd := m.Nodes[0]
	ng := m.Nodes[1]
	ns := m.Nodes[2]
	nb := m.Nodes[3]

	m.calculateCapacitances()
	omega := 2.0 * math.Pi * status.Frequency

	// Output conductance and capacitive branches
	stampComplexPair(matrix, nd, ns, m.gds, 0)
	stampComplexPair(matrix, ng, ns, 0, omega*m.cgs)
	stampComplexPair(matrix, ng, nd, 0, omega*m.cgd)
	stampComplexPair(matrix, ng, nb, 0, omega*m.cgb)
	stampComplexPair(matrix, nb, ns, 0, omega*m.cbs)
	stampComplexPair(matrix, nb, nd, 0, omega*m.cbd)

	// gm and gmbs controlled sources, drain to source
	if nd != 0 {
		if ng != 0 {
			matrix.AddComplexElement(nd, ng, m.gm, 0)
		}
		if nb != 0 {
			matrix.AddComplexElement(nd, nb, m.gmbs, 0)
		}
		if ns != 0 {
			matrix.AddComplexElement(nd, ns, -m.gm-m.gmbs, 0)
		}
	}
	if ns != 0 {
		if ng != 0 {
			matrix.AddComplexElement(ns, ng, -m.gm, 0)
		}
		if nb != 0 {
			matrix.AddComplexElement(ns, nb, -m.gmbs, 0)
		}
		matrix.AddComplexElement(ns, ns, m.gm+m.gmbs, 0)
	}

	return nil
}

func (m *Mosfet) LoadConductance(matrix matrix.DeviceMatrix) error {
	nd := m.Nodes[0]
	ng := m.Nodes[1]
	ns := m.Nodes[2]
	nb := m.Nodes[3]

	const gmin = 1e-12

	if nd != 0 {
		matrix.AddElement(nd, nd, m.gds+gmin)
		if ng != 0 {
			matrix.AddElement(nd, ng, m.gm)
		}
		if ns != 0 {
			matrix.AddElement(nd, ns, -m.gds-m.gm-m.gmbs)
		}
		if nb != 0 {
			matrix.AddElement(nd, nb, m.gmbs)
		}
	}

	if ns != 0 {
		matrix.AddElement(ns, ns, m.gds+m.gm+m.gmbs+gmin)
		if nd != 0 {
			matrix.AddElement(ns, nd, -m.gds)
		}
		if ng != 0 {
			matrix.AddElement(ns, ng, -m.gm)
		}
		if nb != 0 {
			matrix.AddElement(ns, nb, -m.gmbs)
		}
	}

	return nil
}

func (m *Mosfet) LoadCurrent(matrix matrix.DeviceMatrix) error {
	nd := m.Nodes[0]
	ns := m.Nodes[2]

	ieq := m.sign() * (m.id - m.gds*m.vds - m.gm*m.vgs - m.gmbs*m.vbs)

	if nd != 0 {
		matrix.AddRHS(nd, -ieq)
	}
	if ns != 0 {
		matrix.AddRHS(ns, ieq)
	}

	return nil
}

func (m *Mosfet) SetTimeStep(dt float64) {}

func (m *Mosfet) UpdateState(voltages []float64, status *CircuitStatus) {
	m.prevQgs = m.qgs
	m.prevQgd = m.qgd
	m.prevQgb = m.qgb
	m.prevQbs = m.qbs
	m.prevQbd = m.qbd

	m.prevVgs = m.vgs
	m.prevVds = m.vds
	m.prevVbs = m.vbs
	m.prevId = m.id

	m.calculateCharges()
}

func (m *Mosfet) CalculateLTE(voltages map[string]float64, status *CircuitStatus) float64 {
	dv := math.Max(math.Abs(m.vgs-m.prevVgs), math.Abs(m.vds-m.prevVds))
	di := math.Abs(m.id - m.prevId)

	return math.Max(dv, di)
}

// DrainCurrent reports the drain current in external polarity.
func (m *Mosfet) DrainCurrent() float64 {
	return m.sign() * m.id
}

func (m *Mosfet) GetRegion() int {
	return m.region
}
