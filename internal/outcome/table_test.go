package outcome

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

func TestDefaultTable_Valid(t *testing.T) {
	require.NoError(t, DefaultTable().Validate())

	p := DefaultTable().Probabilities(model.VariantNormal, 0)
	assert.InDelta(t, 0.40, p[KindNothing], 1e-9)
	assert.InDelta(t, 0.20, p[KindFoil], 1e-9)
	assert.InDelta(t, 0.15, p[KindDestroyed], 1e-9)
	assert.InDelta(t, 0.15, p[KindTransform], 1e-9)
	assert.InDelta(t, 0.10, p[KindDuplicate], 1e-9)

	p = DefaultTable().Probabilities(model.VariantFoil, 0)
	assert.InDelta(t, 0.10, p[KindSynthesised], 1e-9)
	assert.InDelta(t, 0.50, p[KindLoseFoil], 1e-9)
	assert.InDelta(t, 0.40, p[KindDestroyed], 1e-9)
}

func TestTable_ValidateRejects(t *testing.T) {
	good := DefaultTable().Foil

	tests := []struct {
		name   string
		normal []Weighted
	}{
		{"empty set", nil},
		{"zero sum", []Weighted{{KindNothing, 0}, {KindFoil, 0}}},
		{"negative weight", []Weighted{{KindNothing, 10}, {KindFoil, -1}}},
		{"nan weight", []Weighted{{KindNothing, math.NaN()}}},
		{"infinite weight", []Weighted{{KindNothing, math.Inf(1)}}},
		{"unknown kind", []Weighted{{Kind("explode"), 1}}},
		{"kind for other variant", []Weighted{{KindLoseFoil, 1}}},
		{"duplicate kind", []Weighted{{KindNothing, 1}, {KindNothing, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := &Table{Normal: tt.normal, Foil: good}
			assert.ErrorIs(t, tbl.Validate(), ErrInvalidTable)
		})
	}
}

func TestParseTable(t *testing.T) {
	src := []byte(`
normal:
  - kind: nothing
    weight: 1
  - kind: foil
    weight: 3
foil:
  - kind: destroyed
    weight: 1
`)
	tbl, err := ParseTable(src)
	require.NoError(t, err)
	assert.Len(t, tbl.Normal, 2)
	assert.InDelta(t, 0.75, tbl.Probabilities(model.VariantNormal, 0)[KindFoil], 1e-9)

	_, err = ParseTable([]byte("normal:\n  - kind: nothing\n    weigth: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = ParseTable([]byte("normal:\n  - kind: nothing\n    weight: 0\nfoil:\n  - kind: destroyed\n    weight: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestLoadTable(t *testing.T) {
	tbl, err := LoadTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable(), tbl)

	path := filepath.Join(t.TempDir(), "outcomes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("normal:\n  - kind: duplicate\n    weight: 5\nfoil:\n  - kind: lose_foil\n    weight: 5\n"), 0o600))
	tbl, err = LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []Weighted{{KindDuplicate, 5}}, tbl.Normal)

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTable_SampleBoundaries(t *testing.T) {
	tbl := DefaultTable()

	// Cumulative normal weights: nothing 0.40, foil 0.60, destroyed 0.75,
	// transform 0.90, duplicate 1.00.
	tests := []struct {
		u    float64
		want Kind
	}{
		{0, KindNothing},
		{0.3999, KindNothing},
		{0.40, KindNothing},
		{0.4001, KindFoil},
		{0.5999, KindFoil},
		{0.60, KindFoil},
		{0.75, KindDestroyed},
		{0.90, KindTransform},
		{0.9001, KindDuplicate},
		{0.99999, KindDuplicate},
		{1, KindDuplicate},
	}
	for _, tt := range tests {
		got, err := tbl.Sample(model.VariantNormal, tt.u, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "u=%v", tt.u)
	}
}

func TestTable_SampleSkipsZeroWeight(t *testing.T) {
	tbl := &Table{
		Normal: []Weighted{{KindNothing, 0}, {KindFoil, 1}, {KindDuplicate, 0}},
		Foil:   []Weighted{{KindDestroyed, 1}},
	}
	for _, u := range []float64{0, 0.5, 0.999, 1} {
		got, err := tbl.Sample(model.VariantNormal, u, 0)
		require.NoError(t, err)
		assert.Equal(t, KindFoil, got)
	}
}

func TestTable_SampleFoilBoost(t *testing.T) {
	tbl := DefaultTable()
	// boost 0.5 adds 50 to foil: total 150, nothing ends at 40/150.
	p := tbl.Probabilities(model.VariantNormal, 0.5)
	assert.InDelta(t, 70.0/150.0, p[KindFoil], 1e-9)

	got, err := tbl.Sample(model.VariantNormal, 0.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, KindFoil, got)

	// the table itself is untouched
	assert.Equal(t, 20.0, tbl.Normal[1].Weight)
}

// TestSampleConvergence checks empirical frequencies against normalized
// weights over many seeded draws.
func TestSampleConvergence(t *testing.T) {
	const n = 200000
	tbl := DefaultTable()

	for _, v := range []model.Variant{model.VariantNormal, model.VariantFoil} {
		t.Run(string(v), func(t *testing.T) {
			rng := NewSeededRNG(42)
			counts := make(map[Kind]int)
			for i := 0; i < n; i++ {
				k, err := tbl.Sample(v, rng.Float64(), 0)
				require.NoError(t, err)
				counts[k]++
			}
			for k, want := range tbl.Probabilities(v, 0) {
				freq := float64(counts[k]) / n
				if diff := freq - want; diff > 0.01 || diff < -0.01 {
					t.Fatalf("%s freq=%f not close to p=%f", k, freq, want)
				}
			}
		})
	}
}
