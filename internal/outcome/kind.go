// Package outcome implements the vaal outcome engine: a weighted selector
// deciding what happens to a card when a vaal orb is used on it.
package outcome

import (
	"errors"
	"fmt"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Kind is the categorical result of a vaal.
type Kind string

// Outcome kinds. The first five apply to normal cards, the last two plus
// KindDestroyed apply to foil cards.
const (
	KindNothing     Kind = "nothing"
	KindFoil        Kind = "foil"
	KindDestroyed   Kind = "destroyed"
	KindTransform   Kind = "transform"
	KindDuplicate   Kind = "duplicate"
	KindSynthesised Kind = "synthesised"
	KindLoseFoil    Kind = "lose_foil"
)

// SettingRandom is the forced-outcome setting value meaning "no override".
const SettingRandom = "random"

// Outcome errors.
var (
	ErrUnknownKind  = errors.New("unknown outcome kind")
	ErrInvalidTable = errors.New("invalid outcome table")
)

var allKinds = []Kind{
	KindNothing,
	KindFoil,
	KindDestroyed,
	KindTransform,
	KindDuplicate,
	KindSynthesised,
	KindLoseFoil,
}

var applicable = map[model.Variant]map[Kind]bool{
	model.VariantNormal: {
		KindNothing:   true,
		KindFoil:      true,
		KindDestroyed: true,
		KindTransform: true,
		KindDuplicate: true,
	},
	model.VariantFoil: {
		KindSynthesised: true,
		KindLoseFoil:    true,
		KindDestroyed:   true,
	},
}

// AllKinds returns every known kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a member of the known set.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ApplicableTo reports whether k belongs to the variant's outcome set.
func (k Kind) ApplicableTo(v model.Variant) bool {
	return applicable[v][k]
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
