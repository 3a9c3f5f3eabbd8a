package circuit

import (
	"fmt"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/deck"
	"github.com/breadboard-eda/breadboard/pkg/device"
	"github.com/breadboard-eda/breadboard/pkg/matrix"
)

// Circuit owns the device list, the node and branch numbering and the
// MNA matrix built from them. Nodes are numbered 1..N in order of first
// appearance, branch rows follow for every device that carries its
// current as an unknown.
type Circuit struct {
	name             string
	nodeMap          map[string]int
	branchMap        map[string]int
	devices          []device.Device
	numNodes         int
	matrix           *matrix.CircuitMatrix
	Status           *device.CircuitStatus
	Time             float64
	timeStep         float64
	temp             float64
	isComplex        bool
	nonlinearDevices []device.NonLinear
	Models           map[string]device.ModelParam
}

func New(name string) *Circuit {
	return NewWithComplex(name, false)
}

func NewWithComplex(name string, isComplex bool) *Circuit {
	return &Circuit{
		name:      name,
		nodeMap:   make(map[string]int),
		branchMap: make(map[string]int),
		devices:   make([]device.Device, 0),
		Status:    &device.CircuitStatus{},
		temp:      consts.REFTEMP,
		isComplex: isComplex,
		Models:    make(map[string]device.ModelParam),
	}
}

func (c *Circuit) SetModels(models map[string]device.ModelParam) {
	c.Models = models
}

// SetTemperature sets the simulation temperature in Kelvin.
func (c *Circuit) SetTemperature(temp float64) {
	if temp > 0 {
		c.temp = temp
	}
}

func (c *Circuit) Temperature() float64 {
	return c.temp
}

// AssignNodeBranchMaps numbers the nodes in element order and appends a
// branch row for every voltage source and inductor.
func (c *Circuit) AssignNodeBranchMaps(elements []deck.Element) error {
	for _, elem := range elements {
		for _, nodeName := range elem.Nodes {
			if nodeName == "0" || nodeName == "gnd" {
				continue
			}
			if _, exists := c.nodeMap[nodeName]; !exists {
				idx := len(c.nodeMap) + 1
				c.nodeMap[nodeName] = idx
			}
		}
	}

	branchStart := len(c.nodeMap) + 1
	for _, elem := range elements {
		if elem.Type == "V" || elem.Type == "L" {
			c.branchMap[elem.Name] = branchStart
			branchStart++
		}
	}

	c.numNodes = len(c.nodeMap)
	return nil
}

func (c *Circuit) CreateMatrix() error {
	matrixSize := len(c.nodeMap) + len(c.branchMap)
	if matrixSize == 0 {
		return fmt.Errorf("circuit %s: no nodes to solve", c.name)
	}

	mat, err := matrix.NewMatrix(matrixSize, c.isComplex)
	if err != nil {
		return fmt.Errorf("circuit %s: %v", c.name, err)
	}
	c.matrix = mat
	return nil
}

func (c *Circuit) SetupDevices(elements []deck.Element) error {
	for _, elem := range elements {
		dev, err := deck.CreateDevice(elem, c.Models)
		if err != nil {
			return fmt.Errorf("creating device %s: %v", elem.Name, err)
		}

		nodeIndices := make([]int, len(elem.Nodes))
		for i, nodeName := range elem.Nodes {
			if nodeName == "0" || nodeName == "gnd" {
				nodeIndices[i] = 0
				continue
			}
			nodeIndices[i] = c.nodeMap[nodeName]
		}
		dev.SetNodes(nodeIndices)

		if bd, ok := dev.(device.BranchDevice); ok {
			bd.SetBranchIndex(c.branchMap[elem.Name])
		}

		if nl, ok := dev.(device.NonLinear); ok {
			c.nonlinearDevices = append(c.nonlinearDevices, nl)
		}

		c.devices = append(c.devices, dev)
	}

	// Initial stamp allocates the sparse structure.
	cktStatus := &device.CircuitStatus{Time: 0, Temp: c.temp}
	if err := c.Stamp(cktStatus); err != nil {
		return fmt.Errorf("initial stamping failed: %v", err)
	}
	c.matrix.SetupElements()

	return nil
}

func (c *Circuit) Stamp(status *device.CircuitStatus) error {
	for _, dev := range c.devices {
		if err := dev.Stamp(c.matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %v", dev.GetName(), err)
		}
	}
	return nil
}

func (c *Circuit) SetTimeStep(dt float64) {
	c.timeStep = dt
	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.SetTimeStep(dt)
		}
	}
}

// Update accepts the present solution as a timepoint and rotates device
// state for the next step.
func (c *Circuit) Update() {
	solution := c.matrix.Solution()

	c.Status = &device.CircuitStatus{
		Time:     c.Time,
		TimeStep: c.timeStep,
		Gmin:     1e-12,
		Mode:     device.TransientAnalysis,
		Temp:     c.temp,
	}

	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.SetTimeStep(c.timeStep)
			td.UpdateState(solution, c.Status)
		}
	}
}

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix {
	return c.matrix
}

func (c *Circuit) GetNodeMap() map[string]int {
	return c.nodeMap
}

func (c *Circuit) GetBranchMap() map[string]int {
	return c.branchMap
}

func (c *Circuit) GetDevices() []device.Device {
	return c.devices
}

// GetSolution flattens the solved system into result keys: V(node) for
// node voltages, I(name) for source, inductor and resistor currents.
func (c *Circuit) GetSolution() map[string]float64 {
	solution := make(map[string]float64)
	matrixSolution := c.matrix.Solution()

	for name, idx := range c.nodeMap {
		solution[fmt.Sprintf("V(%s)", name)] = matrixSolution[idx]
	}

	for _, dev := range c.devices {
		switch d := dev.(type) {
		case *device.VoltageSource:
			solution[fmt.Sprintf("I(%s)", d.GetName())] = -matrixSolution[d.BranchIndex()]
		case *device.Inductor:
			solution[fmt.Sprintf("I(%s)", d.GetName())] = matrixSolution[d.BranchIndex()]
		case *device.Resistor:
			nodes := d.GetNodes()
			v1, v2 := 0.0, 0.0
			if nodes[0] > 0 {
				v1 = matrixSolution[nodes[0]]
			}
			if nodes[1] > 0 {
				v2 = matrixSolution[nodes[1]]
			}
			solution[fmt.Sprintf("I(%s)", d.GetName())] = (v1 - v2) / d.GetValue()
		}
	}

	return solution
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
}

func (c *Circuit) Name() string {
	return c.name
}

func (c *Circuit) GetNumNodes() int {
	return c.numNodes
}

func (c *Circuit) GetNodeVoltage(nodeIdx int) float64 {
	if nodeIdx <= 0 { // ground or invalid node
		return 0
	}

	solution := c.matrix.Solution()
	if nodeIdx >= len(solution) {
		return 0
	}

	return solution[nodeIdx]
}

func (c *Circuit) UpdateNonlinearVoltages(solution []float64) error {
	for _, dev := range c.nonlinearDevices {
		if err := dev.UpdateVoltages(solution); err != nil {
			return fmt.Errorf("updating voltages: %v", err)
		}
	}
	return nil
}
