package modellib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadboard-eda/breadboard/pkg/device"
)

const sampleLib = `
models:
  - name: DFAST
    type: D
    doc: fast recovery diode
    params:
      IS: 1.0e-12
      N: 1.8
  - name: Q1A
    type: npn
    params:
      bf: 180
`

func TestLoadAndLookup(t *testing.T) {
	lib := New()
	require.NoError(t, lib.Load(strings.NewReader(sampleLib)))
	require.Equal(t, 2, lib.Len())
	assert.Equal(t, []string{"DFAST", "Q1A"}, lib.Names())

	m, ok := lib.Lookup("dfast")
	require.True(t, ok)
	assert.Equal(t, "D", m.Type)
	assert.InDelta(t, 1e-12, m.Params["is"], 1e-24)
	assert.InDelta(t, 1.8, m.Params["n"], 1e-12)
	assert.Equal(t, "fast recovery diode", lib.Doc("DFAST"))

	q, ok := lib.Lookup("q1a")
	require.True(t, ok)
	assert.Equal(t, "NPN", q.Type)

	_, ok = lib.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	lib := New()
	err := lib.Load(strings.NewReader(`
models:
  - name: D1
    type: D
    parms:
      is: 1.0e-14
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding model library")
}

func TestAddValidation(t *testing.T) {
	lib := New()
	require.NoError(t, lib.Add(Card{Name: "DX", Type: "D"}))

	err := lib.Add(Card{Name: "DX", Type: "D"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate model")

	err = lib.Add(Card{Name: "J1", Type: "NJF"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	err = lib.Add(Card{Type: "D"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a name")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleLib), 0o644))

	lib := New()
	require.NoError(t, lib.LoadFile(path))
	assert.Equal(t, 2, lib.Len())

	err := lib.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMergeDeckWins(t *testing.T) {
	lib := New()
	require.NoError(t, lib.Add(Card{
		Name: "DMOD", Type: "D",
		Params: map[string]float64{"is": 1e-14},
	}))
	require.NoError(t, lib.Add(Card{
		Name: "QX", Type: "NPN",
		Params: map[string]float64{"bf": 100},
	}))

	deckModels := map[string]device.ModelParam{
		"dmod": {Name: "dmod", Type: "D", Params: map[string]float64{"is": 5e-12}},
	}

	merged := Merge(lib.Models(), deckModels)
	require.Len(t, merged, 2)

	// The library spelling is gone, only the deck card remains.
	_, hasLib := merged["DMOD"]
	assert.False(t, hasLib)
	assert.InDelta(t, 5e-12, merged["dmod"].Params["is"], 1e-24)
	assert.Equal(t, "NPN", merged["QX"].Type)

	assert.Len(t, Merge(nil, deckModels), 1)
}

func TestBuiltin(t *testing.T) {
	lib := Builtin()
	require.GreaterOrEqual(t, lib.Len(), 6)

	for _, name := range []string{"D", "1N4148", "2N2222", "2N2907", "NPN", "PNP", "NMOS", "PMOS"} {
		m, ok := lib.Lookup(name)
		require.True(t, ok, "builtin card %s", name)
		assert.True(t, validTypes[m.Type])
	}

	npn, _ := lib.Lookup("2n2222")
	assert.Equal(t, "NPN", npn.Type)
	assert.InDelta(t, 255.9, npn.Params["bf"], 1e-9)

	pmos, _ := lib.Lookup("pmos")
	assert.Less(t, pmos.Params["vto"], 0.0)
}
