package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lintDeck(t *testing.T, input string) []Finding {
	t.Helper()
	d, err := Parse(input)
	require.NoError(t, err)
	return Check(d, nil)
}

func TestCheckCleanDeck(t *testing.T) {
	findings := lintDeck(t, `clean
V1 in 0 DC 5
R1 in out 1k
R2 out 0 1k
`)
	assert.Empty(t, findings)
}

func TestCheckNoGround(t *testing.T) {
	findings := lintDeck(t, `floating
V1 a b DC 5
R1 a b 1k
`)
	require.NotEmpty(t, findings)
	assert.True(t, HasErrors(findings))
	assert.Contains(t, findings[0].Message, "no ground")
}

func TestCheckSingleConnectionNode(t *testing.T) {
	findings := lintDeck(t, `dangling
V1 in 0 DC 5
R1 in out 1k
`)
	require.Len(t, findings, 1)
	assert.Equal(t, Warning, findings[0].Severity)
	assert.Contains(t, findings[0].Message, "out")
	assert.False(t, HasErrors(findings))
}

func TestCheckParallelVoltageSources(t *testing.T) {
	findings := lintDeck(t, `parallel
V1 in 0 DC 5
V2 0 in DC 3
R1 in 0 1k
`)
	require.NotEmpty(t, findings)
	assert.True(t, HasErrors(findings))
	assert.Contains(t, findings[0].Message, "parallel")
}

func TestCheckDanglingModel(t *testing.T) {
	findings := lintDeck(t, `nomodel
V1 in 0 DC 5
D1 in 0 DX
R1 in 0 1k
`)
	require.NotEmpty(t, findings)
	found := false
	for _, f := range findings {
		if f.Severity == Error && f.Message == "element D1 references undefined model DX" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckEmptyDeck(t *testing.T) {
	d, err := Parse("empty\n.op\n")
	require.NoError(t, err)
	findings := Check(d, nil)
	require.Len(t, findings, 1)
	assert.True(t, HasErrors(findings))
}
