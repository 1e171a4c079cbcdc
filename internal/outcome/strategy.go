package outcome

import (
	"fmt"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Strategy decides which kind an engine returns for a variant.
type Strategy interface {
	Choose(t *Table, v model.Variant, boost float64) (Kind, error)
	Name() string
}

// RandomSelection samples the table with a random source.
type RandomSelection struct {
	Source RandomSource
}

// Choose draws one sample and maps it onto the table.
func (s RandomSelection) Choose(t *Table, v model.Variant, boost float64) (Kind, error) {
	src := s.Source
	if src == nil {
		src = DefaultRNG()
	}
	return t.Sample(v, src.Float64(), boost)
}

// Name implements Strategy.
func (RandomSelection) Name() string { return SettingRandom }

// ForcedSelection always returns Kind. When Fallback is set, a kind outside
// the variant's table is ignored and Fallback decides instead.
type ForcedSelection struct {
	Kind     Kind
	Fallback Strategy
}

// NewForcedSelection validates k before building the strategy.
func NewForcedSelection(k Kind, fallback Strategy) (ForcedSelection, error) {
	if !k.Valid() {
		return ForcedSelection{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return ForcedSelection{Kind: k, Fallback: fallback}, nil
}

// Choose implements Strategy.
func (s ForcedSelection) Choose(t *Table, v model.Variant, boost float64) (Kind, error) {
	if !s.Kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	if s.Fallback != nil && !t.Contains(v, s.Kind) {
		return s.Fallback.Choose(t, v, boost)
	}
	return s.Kind, nil
}

// Name implements Strategy.
func (s ForcedSelection) Name() string { return string(s.Kind) }

// Policy controls forced kinds that do not apply to the card's variant.
type Policy string

const (
	// PolicyAllow returns the forced kind regardless of the variant.
	PolicyAllow Policy = "allow"
	// PolicyFallback samples randomly when the forced kind does not apply.
	PolicyFallback Policy = "fallback"
)

// ParsePolicy validates a policy name. Empty means PolicyAllow.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAllow:
		return PolicyAllow, nil
	case PolicyFallback:
		return PolicyFallback, nil
	}
	return "", fmt.Errorf("unknown forced outcome policy %q", s)
}

// StrategyFor builds the strategy matching a forced-outcome setting:
// "random" (or empty) samples with src, anything else must be a known kind.
func StrategyFor(setting string, policy Policy, src RandomSource) (Strategy, error) {
	random := RandomSelection{Source: src}
	if setting == "" || setting == SettingRandom {
		return random, nil
	}

	k, err := ParseKind(setting)
	if err != nil {
		return nil, err
	}

	var fallback Strategy
	if policy == PolicyFallback {
		fallback = random
	}
	return NewForcedSelection(k, fallback)
}
