package outcome

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// FoilBoostScale converts an Atlas Influence boost into foil weight.
const FoilBoostScale = 100

// Weighted is one outcome of an applicable set with its relative weight.
type Weighted struct {
	Kind   Kind    `yaml:"kind" json:"kind"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Table maps each variant to its applicable outcomes. Order matters:
// it is the declaration order used for tie-breaking.
type Table struct {
	Normal []Weighted `yaml:"normal" json:"normal"`
	Foil   []Weighted `yaml:"foil" json:"foil"`
}

// DefaultTable returns the built-in weights.
func DefaultTable() *Table {
	return &Table{
		Normal: []Weighted{
			{Kind: KindNothing, Weight: 40},
			{Kind: KindFoil, Weight: 20},
			{Kind: KindDestroyed, Weight: 15},
			{Kind: KindTransform, Weight: 15},
			{Kind: KindDuplicate, Weight: 10},
		},
		Foil: []Weighted{
			{Kind: KindSynthesised, Weight: 10},
			{Kind: KindLoseFoil, Weight: 50},
			{Kind: KindDestroyed, Weight: 40},
		},
	}
}

// LoadTable reads and validates a YAML weight table. An empty path yields
// the default table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outcome table: %w", err)
	}
	return ParseTable(b)
}

// ParseTable decodes and validates a YAML weight table. Unknown fields are
// rejected so a typo cannot silently drop an outcome.
func ParseTable(b []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every applicable set. Any failure wraps ErrInvalidTable.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	if err := validateSet(model.VariantNormal, t.Normal); err != nil {
		return err
	}
	return validateSet(model.VariantFoil, t.Foil)
}

func validateSet(v model.Variant, set []Weighted) error {
	if len(set) == 0 {
		return fmt.Errorf("%w: %s set is empty", ErrInvalidTable, v)
	}

	seen := make(map[Kind]bool, len(set))
	var sum float64
	for _, w := range set {
		if !w.Kind.Valid() {
			return fmt.Errorf("%w: %s set has unknown kind %q", ErrInvalidTable, v, w.Kind)
		}
		if !w.Kind.ApplicableTo(v) {
			return fmt.Errorf("%w: kind %q does not apply to %s cards", ErrInvalidTable, w.Kind, v)
		}
		if seen[w.Kind] {
			return fmt.Errorf("%w: %s set declares %q twice", ErrInvalidTable, v, w.Kind)
		}
		seen[w.Kind] = true

		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) || w.Weight < 0 {
			return fmt.Errorf("%w: %s weight for %q must be a finite non-negative number", ErrInvalidTable, v, w.Kind)
		}
		sum += w.Weight
	}
	if sum <= 0 {
		return fmt.Errorf("%w: %s weights sum to zero", ErrInvalidTable, v)
	}
	return nil
}

// Applicable returns a copy of the variant's outcome set.
func (t *Table) Applicable(v model.Variant) []Weighted {
	var set []Weighted
	switch v {
	case model.VariantNormal:
		set = t.Normal
	case model.VariantFoil:
		set = t.Foil
	}
	out := make([]Weighted, len(set))
	copy(out, set)
	return out
}

// Contains reports whether k is declared in the variant's set.
func (t *Table) Contains(v model.Variant, k Kind) bool {
	for _, w := range t.Applicable(v) {
		if w.Kind == k {
			return true
		}
	}
	return false
}

// Probabilities returns the normalized weight of every kind in the set.
func (t *Table) Probabilities(v model.Variant, boost float64) map[Kind]float64 {
	set := boosted(t.Applicable(v), boost)
	var total float64
	for _, w := range set {
		total += w.Weight
	}
	out := make(map[Kind]float64, len(set))
	for _, w := range set {
		out[w.Kind] = w.Weight / total
	}
	return out
}

// Sample maps u in [0, 1) onto the variant's cumulative distribution and
// returns the first outcome whose cumulative weight reaches u. A sample
// landing exactly on a boundary belongs to the earlier outcome. Zero-weight
// outcomes are never returned.
func (t *Table) Sample(v model.Variant, u, boost float64) (Kind, error) {
	set := boosted(t.Applicable(v), boost)
	if len(set) == 0 {
		return "", fmt.Errorf("%w: no outcomes for variant %q", ErrInvalidTable, v)
	}

	var total float64
	for _, w := range set {
		total += w.Weight
	}
	if total <= 0 {
		return "", fmt.Errorf("%w: %s weights sum to zero", ErrInvalidTable, v)
	}

	if u < 0 {
		u = 0
	}
	target := u * total

	var cum float64
	last := set[0].Kind
	for _, w := range set {
		if w.Weight == 0 {
			continue
		}
		cum += w.Weight
		last = w.Kind
		if target <= cum {
			return w.Kind, nil
		}
	}
	// u >= 1 or rounding at the top edge
	return last, nil
}

func boosted(set []Weighted, boost float64) []Weighted {
	if boost <= 0 || math.IsNaN(boost) || math.IsInf(boost, 0) {
		return set
	}
	for i := range set {
		if set[i].Kind == KindFoil {
			set[i].Weight += boost * FoilBoostScale
		}
	}
	return set
}
