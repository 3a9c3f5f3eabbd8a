package matrix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two-node resistive divider: 10V source through 1k into 1k to ground.
// With the source eliminated, node 1 is driven: solve G*v = i for a
// single unknown as a smoke test of the sparse wrapper.
func TestSolveReal(t *testing.T) {
	m, err := NewMatrix(1, false)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()

	// (1/1k + 1/1k) * v1 = 10/1k
	m.AddElement(1, 1, 1e-3)
	m.AddElement(1, 1, 1e-3)
	m.AddRHS(1, 10*1e-3)

	require.NoError(t, m.Solve())
	assert.InDelta(t, 5.0, m.Solution()[1], 1e-9)
}

func TestSolveComplex(t *testing.T) {
	m, err := NewMatrix(1, true)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()

	// (1 + j1) * v = 1  =>  v = 0.5 - j0.5
	m.AddComplexElement(1, 1, 1.0, 1.0)
	m.AddComplexRHS(1, 1.0, 0.0)

	require.NoError(t, m.Solve())
	re, im := m.GetComplexSolution(1)
	assert.InDelta(t, 0.5, re, 1e-9)
	assert.InDelta(t, -0.5, im, 1e-9)
}

// Bias solves run on the complex matrix before the AC sweep, stamping
// through the real-valued entry points.
func TestRealSolveOnComplexMatrix(t *testing.T) {
	m, err := NewMatrix(1, true)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()
	m.AddElement(1, 1, 2e-3)
	m.AddRHS(1, 10e-3)

	require.NoError(t, m.Solve())
	assert.InDelta(t, 5.0, m.Solution()[1], 1e-9)

	re, im := m.GetComplexSolution(1)
	assert.InDelta(t, 5.0, re, 1e-9)
	assert.InDelta(t, 0.0, im, 1e-9)
}

func TestOutOfBoundsStampsIgnored(t *testing.T) {
	m, err := NewMatrix(2, false)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()

	// Ground stamps land on index 0 and must be dropped.
	m.AddElement(0, 1, 1.0)
	m.AddElement(1, 0, 1.0)
	m.AddRHS(0, 1.0)
	m.AddElement(3, 3, 1.0)

	m.AddElement(1, 1, 1.0)
	m.AddElement(2, 2, 1.0)
	m.AddRHS(1, 2.0)

	require.NoError(t, m.Solve())
	assert.InDelta(t, 2.0, m.Solution()[1], 1e-9)
	assert.InDelta(t, 0.0, m.Solution()[2], 1e-9)
}

func TestClearResetsSystem(t *testing.T) {
	m, err := NewMatrix(1, false)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()
	m.AddElement(1, 1, 2.0)
	m.AddRHS(1, 4.0)
	require.NoError(t, m.Solve())
	assert.InDelta(t, 2.0, m.Solution()[1], 1e-9)

	m.Clear()
	m.AddElement(1, 1, 2.0)
	m.AddRHS(1, 2.0)
	require.NoError(t, m.Solve())
	assert.InDelta(t, 1.0, m.Solution()[1], 1e-9)
}

func TestDump(t *testing.T) {
	m, err := NewMatrix(1, false)
	require.NoError(t, err)
	defer m.Destroy()

	m.SetupElements()
	m.AddElement(1, 1, 1.0)
	m.AddRHS(1, 3.0)

	var sb strings.Builder
	m.Dump(&sb)
	out := sb.String()
	assert.Contains(t, out, "circuit equations (1x1)")
	assert.Contains(t, out, "x1 = 3")
}
