package matrix

import (
	"fmt"
	"io"

	"github.com/edp1096/sparse"
)

// CircuitMatrix wraps a sparse MNA system: the conductance matrix plus
// right-hand side and solution vectors. Real analyses use the real parts
// only, AC analysis stamps complex admittances.
type CircuitMatrix struct {
	Size         int
	matrix       *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	config       *sparse.Configuration
}

func NewMatrix(size int, isComplex bool) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 isComplex,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("create sparse matrix: %v", err)
	}

	vectorSize := size + 1 // 1-based indexing
	vectorSizeImag := size + 1
	if isComplex && !config.SeparatedComplexVectors {
		vectorSize *= 2
		vectorSizeImag = 1
	}

	return &CircuitMatrix{
		Size:         size,
		matrix:       mat,
		rhs:          make([]float64, vectorSize),
		rhsImag:      make([]float64, vectorSizeImag),
		solution:     make([]float64, vectorSize),
		solutionImag: make([]float64, vectorSizeImag),
		config:       config,
	}, nil
}

// SetupElements touches every position once so the sparse structure is
// allocated before the first factorization.
func (m *CircuitMatrix) SetupElements() {
	for i := 1; i <= m.Size; i++ {
		for j := 1; j <= m.Size; j++ {
			m.matrix.GetElement(int64(i), int64(j))
		}
	}
}

// AddElement accumulates into position (i, j). Indices at or below zero
// address the ground row or column and are skipped.
func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddComplexElement(i, j int, real, imag float64) {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return
	}

	element := m.matrix.GetElement(int64(i), int64(j))
	element.Real += real
	element.Imag += imag
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		return
	}
	if m.config.Complex && !m.config.SeparatedComplexVectors {
		m.rhs[2*i] += value
		return
	}
	m.rhs[i] += value
}

func (m *CircuitMatrix) AddComplexRHS(i int, real, imag float64) {
	if i <= 0 || i > m.Size {
		return
	}

	if m.config.SeparatedComplexVectors {
		m.rhs[i] += real
		m.rhsImag[i] += imag
	} else {
		m.rhs[2*i] += real
		m.rhs[2*i+1] += imag
	}
}

// LoadGmin adds a small conductance on every diagonal to aid convergence.
func (m *CircuitMatrix) LoadGmin(gmin float64) {
	for i := 1; i <= m.Size; i++ {
		if diag := m.getDiag(i); diag != nil {
			diag.Real += gmin
		}
	}
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i := range m.rhsImag {
		m.rhsImag[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	err := m.matrix.Factor()
	if err != nil {
		return fmt.Errorf("matrix factorization failed: %v", err)
	}

	if m.config.Complex {
		m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	} else {
		m.solution, err = m.matrix.Solve(m.rhs)
	}

	if err != nil {
		return fmt.Errorf("matrix solve failed: %v", err)
	}

	return nil
}

func (m *CircuitMatrix) getDiag(i int) *sparse.Element {
	if i <= 0 || i > m.Size {
		return nil
	}
	return m.matrix.Diags[i]
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

// Solution returns the latest solve result indexed 1..Size. On a
// combined-vector complex matrix the real parts are pulled out of the
// interleaved storage so real-valued iterations index it the same way.
func (m *CircuitMatrix) Solution() []float64 {
	if m.config.Complex && !m.config.SeparatedComplexVectors {
		out := make([]float64, m.Size+1)
		for i := 1; i <= m.Size; i++ {
			out[i] = m.solution[2*i]
		}
		return out
	}
	return m.solution
}

// GetComplexSolution returns the real and imaginary part of unknown i.
// With combined complex vectors the solver keeps the solution in the
// same interleaved layout as the right-hand side, pairs at 2i and 2i+1.
func (m *CircuitMatrix) GetComplexSolution(i int) (float64, float64) {
	if !m.config.Complex || i <= 0 || i > m.Size {
		return 0, 0
	}
	if m.config.SeparatedComplexVectors {
		return m.solution[i], m.solutionImag[i]
	}
	return m.solution[2*i], m.solution[2*i+1]
}

func (m *CircuitMatrix) SolutionImag() []float64 {
	return m.solutionImag
}

// Dump writes the stamped equations in human-readable form, one row per
// unknown. Node equations come first, branch equations after.
func (m *CircuitMatrix) Dump(w io.Writer) {
	fmt.Fprintf(w, "circuit equations (%dx%d):\n", m.Size, m.Size)

	for i := 1; i <= m.Size; i++ {
		rowHasElements := false
		for j := 1; j <= m.Size; j++ {
			element := m.matrix.GetElement(int64(i), int64(j))
			if m.config.Complex {
				if element.Real != 0 || element.Imag != 0 {
					if element.Imag == 0 {
						fmt.Fprintf(w, "  %+g*x%d", element.Real, j)
					} else {
						fmt.Fprintf(w, "  (%g + j%g)*x%d", element.Real, element.Imag, j)
					}
					rowHasElements = true
				}
			} else {
				if element.Real != 0 {
					fmt.Fprintf(w, "  %+g*x%d", element.Real, j)
					rowHasElements = true
				}
			}
		}

		if !rowHasElements {
			continue
		}

		if !m.config.Complex {
			fmt.Fprintf(w, " = %g\n", m.rhs[i])
		} else if !m.config.SeparatedComplexVectors {
			fmt.Fprintf(w, " = %g + j%g\n", m.rhs[2*i], m.rhs[2*i+1])
		} else {
			fmt.Fprintf(w, " = %g + j%g\n", m.rhs[i], m.rhsImag[i])
		}
	}
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}
