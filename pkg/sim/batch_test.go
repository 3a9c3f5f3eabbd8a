package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRunAll(t *testing.T) {
	b := NewBatch(inputDividerModule(t), nil)
	b.SetLimit(2)

	cases := map[string]float64{"low": 1.0, "mid": 2.0, "high": 4.0}
	for name, volts := range cases {
		err := b.Add(BatchRun{
			Name:    name,
			Profile: Profile{Analysis: "op"},
			Analog:  map[string]float64{"sig": volts},
		})
		require.NoError(t, err)
	}

	require.NoError(t, b.RunAll(context.Background()))

	assert.Equal(t, []string{"high", "low", "mid"}, b.Names())
	for name, volts := range cases {
		res, ok := b.Result(name)
		require.True(t, ok, name)
		assert.InDelta(t, volts/2, res.Series["V(out)"][0], 1e-9, name)
	}

	results := b.Results()
	require.Len(t, results, 3)
	assert.InDelta(t, 2.0, results[0].Series["V(out)"][0], 1e-9)
}

func TestBatchAddValidation(t *testing.T) {
	b := NewBatch(dividerModule(t), nil)

	err := b.Add(BatchRun{Profile: Profile{Analysis: "op"}})
	assert.ErrorContains(t, err, "needs a name")

	require.NoError(t, b.Add(BatchRun{Name: "a", Profile: Profile{Analysis: "op"}}))
	err = b.Add(BatchRun{Name: "a", Profile: Profile{Analysis: "op"}})
	assert.ErrorContains(t, err, "duplicate run name")

	err = b.Add(BatchRun{Name: "b", Profile: Profile{Analysis: "noise"}})
	assert.ErrorContains(t, err, "unknown analysis kind")
}

func TestBatchRunFailure(t *testing.T) {
	b := NewBatch(dividerModule(t), nil)

	p := Profile{Analysis: "dc"}
	p.DC.Source = "VX"
	p.DC.Start = "0"
	p.DC.Stop = "1"
	p.DC.Step = "1"
	require.NoError(t, b.Add(BatchRun{Name: "bad", Profile: p}))

	err := b.RunAll(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "run bad")
	assert.ErrorContains(t, err, "not found")
}

func TestBatchRerunResets(t *testing.T) {
	b := NewBatch(dividerModule(t), nil)
	require.NoError(t, b.Add(BatchRun{Name: "only", Profile: Profile{Analysis: "op"}}))

	require.NoError(t, b.RunAll(context.Background()))
	first, ok := b.Result("only")
	require.True(t, ok)

	require.NoError(t, b.RunAll(context.Background()))
	second, ok := b.Result("only")
	require.True(t, ok)
	assert.NotEqual(t, first.RunID, second.RunID)
}
