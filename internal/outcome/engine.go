package outcome

import (
	"context"
	"fmt"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// OrbCost is the currency consumed by every vaal, whatever the outcome.
const OrbCost int64 = 1

// Catalogue lists transformation targets.
type Catalogue interface {
	// SameTier returns every template of the tier except excludeID.
	SameTier(tier model.Tier, excludeID string) []model.Card
}

// Decision is a finished vaal: the chosen kind and the card changes it implies.
type Decision struct {
	Kind          Kind                       `json:"outcome"`
	Card          model.Card                 `json:"card"`
	ResultCard    *model.Card                `json:"result_card,omitempty"`
	Updates       map[string]model.CardDelta `json:"updates"`
	CurrencyDelta int64                      `json:"currency_delta"`
	BoostConsumed bool                       `json:"boost_consumed,omitempty"`
	VaalOrbs      *int64                     `json:"vaal_orbs,omitempty"`
}

// RollRequest asks an authoritative source to vaal one owned card.
type RollRequest struct {
	OperationID string `json:"operation_id"`
	Username    string `json:"username"`
	CardID      string `json:"card_id"`
	Foil        bool   `json:"foil"`
}

// AuthoritativeSource decides and applies outcomes remotely. Its decisions
// are final; the caller only mirrors them.
type AuthoritativeSource interface {
	Roll(ctx context.Context, req RollRequest) (*Decision, error)
}

// Engine selects outcomes from a table using a strategy.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	table     *Table
	strategy  Strategy
	catalogue Catalogue
	picker    RandomSource
}

// NewEngine validates the table and builds an engine. picker draws the
// transformation target; strategy draws the outcome kind.
func NewEngine(table *Table, strategy Strategy, catalogue Catalogue, picker RandomSource) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if picker == nil {
		picker = DefaultRNG()
	}
	if strategy == nil {
		strategy = RandomSelection{Source: picker}
	}
	return &Engine{
		table:     table,
		strategy:  strategy,
		catalogue: catalogue,
		picker:    picker,
	}, nil
}

// Table returns the engine's weight table.
func (e *Engine) Table() *Table { return e.table }

// Strategy returns the engine's selection strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// WithStrategy returns a copy of the engine using s.
func (e *Engine) WithStrategy(s Strategy) *Engine {
	cp := *e
	cp.strategy = s
	return &cp
}

// Select picks an outcome kind for a card of the given variant.
func (e *Engine) Select(v model.Variant) (Kind, error) {
	return e.SelectWithBoost(v, 0)
}

// SelectWithBoost is Select with an Atlas Influence foil boost.
func (e *Engine) SelectWithBoost(v model.Variant, boost float64) (Kind, error) {
	switch v {
	case model.VariantNormal, model.VariantFoil:
	default:
		return "", fmt.Errorf("unknown variant %q", v)
	}
	return e.strategy.Choose(e.table, v, boost)
}

// Roll selects a kind for card and resolves it.
func (e *Engine) Roll(card model.Card, boost float64) (Decision, error) {
	k, err := e.SelectWithBoost(model.VariantOf(card.Foil), boost)
	if err != nil {
		return Decision{}, err
	}
	d := e.Resolve(card, k)
	d.BoostConsumed = boost > 0
	return d, nil
}

// Resolve computes the card changes of kind k applied to one copy of card.
// Transform and synthesised fall back to nothing when no target exists.
func (e *Engine) Resolve(card model.Card, k Kind) Decision {
	from := model.VariantOf(card.Foil)
	d := Decision{
		Kind:          k,
		Card:          card,
		Updates:       make(map[string]model.CardDelta),
		CurrencyDelta: -OrbCost,
	}

	switch k {
	case KindNothing:
	case KindFoil:
		d.move(card, from, card, model.VariantFoil)
	case KindLoseFoil:
		d.move(card, from, card, model.VariantNormal)
	case KindDestroyed:
		d.add(card, from, -1)
	case KindDuplicate:
		d.add(card, from, 1)
		d.ResultCard = withFoil(card, card.Foil)
	case KindTransform:
		target, ok := e.pickTarget(card, false)
		if !ok {
			d.Kind = KindNothing
			break
		}
		d.move(card, from, target, from)
	case KindSynthesised:
		target, ok := e.pickTarget(card, true)
		if !ok {
			d.Kind = KindNothing
			break
		}
		d.move(card, from, target, model.VariantFoil)
	}
	return d
}

// move takes one copy of src in variant from and gives one copy of dst in
// variant to. Deltas on the same template are merged.
func (d *Decision) move(src model.Card, from model.Variant, dst model.Card, to model.Variant) {
	d.add(src, from, -1)
	d.add(dst, to, 1)
	d.ResultCard = withFoil(dst, to == model.VariantFoil)
}

func (d *Decision) add(card model.Card, v model.Variant, n int) {
	cd := d.Updates[card.ID]
	if v == model.VariantFoil {
		cd.FoilDelta += n
	} else {
		cd.NormalDelta += n
	}
	if cd.Card == nil {
		cd.Card = withFoil(card, false)
	}
	if cd.IsZero() {
		delete(d.Updates, card.ID)
		return
	}
	d.Updates[card.ID] = cd
}

func withFoil(c model.Card, foil bool) *model.Card {
	c.Foil = foil
	return &c
}

// pickTarget draws a same-tier template weighted by drop weight. The
// synthesised outcome narrows candidates to the card's item class.
func (e *Engine) pickTarget(card model.Card, sameClass bool) (model.Card, bool) {
	if e.catalogue == nil {
		return model.Card{}, false
	}
	candidates := e.catalogue.SameTier(card.Tier, card.ID)
	if sameClass {
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if c.ItemClass == card.ItemClass {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}
	return weightedPick(candidates, e.picker.Float64())
}

// weightedPick returns the first card whose cumulative drop weight reaches
// u * total, so boundary samples go to the earlier card.
func weightedPick(cards []model.Card, u float64) (model.Card, bool) {
	if len(cards) == 0 {
		return model.Card{}, false
	}
	var total float64
	for _, c := range cards {
		total += c.DropWeight()
	}
	target := u * total
	var cum float64
	for _, c := range cards {
		cum += c.DropWeight()
		if target <= cum {
			return c, true
		}
	}
	return cards[len(cards)-1], true
}
