// Package catalogue holds the card templates known to the altar.
package catalogue

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Catalogue errors.
var (
	ErrCardNotFound = errors.New("card template not found")
	ErrInvalidCard  = errors.New("invalid card template")
)

// Catalogue is a thread-safe set of card templates indexed by id and tier.
type Catalogue struct {
	mu     sync.RWMutex
	cards  map[string]model.Card
	byTier map[model.Tier][]string
}

// New creates an empty catalogue.
func New() *Catalogue {
	return &Catalogue{
		cards:  make(map[string]model.Card),
		byTier: make(map[model.Tier][]string),
	}
}

// FromCards builds a catalogue from a list of templates.
func FromCards(cards []model.Card) (*Catalogue, error) {
	c := New()
	for _, card := range cards {
		if err := c.Register(card); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type file struct {
	Cards []model.Card `yaml:"cards"`
}

// Load reads templates from a YAML file with a top-level "cards" list.
func Load(path string) (*Catalogue, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	return FromCards(f.Cards)
}

// Register adds or replaces a template.
func (c *Catalogue) Register(card model.Card) error {
	if card.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCard)
	}
	if !card.Tier.Valid() {
		return fmt.Errorf("%w: %s has tier %q", ErrInvalidCard, card.ID, card.Tier)
	}
	card.Foil = false

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.cards[card.ID]; ok {
		c.removeFromTier(old.Tier, old.ID)
	}
	c.cards[card.ID] = card
	ids := append(c.byTier[card.Tier], card.ID)
	sort.Strings(ids)
	c.byTier[card.Tier] = ids
	return nil
}

func (c *Catalogue) removeFromTier(tier model.Tier, id string) {
	ids := c.byTier[tier]
	for i, existing := range ids {
		if existing == id {
			c.byTier[tier] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

// Get returns a template by id.
func (c *Catalogue) Get(id string) (model.Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.cards[id]
	return card, ok
}

// MustGet returns a template by id or ErrCardNotFound.
func (c *Catalogue) MustGet(id string) (model.Card, error) {
	card, ok := c.Get(id)
	if !ok {
		return model.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return card, nil
}

// SameTier returns every template of tier except excludeID, ordered by id.
func (c *Catalogue) SameTier(tier model.Tier, excludeID string) []model.Card {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byTier[tier]
	out := make([]model.Card, 0, len(ids))
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		out = append(out, c.cards[id])
	}
	return out
}

// All returns every template ordered by id.
func (c *Catalogue) All() []model.Card {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.cards))
	for id := range c.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.cards[id])
	}
	return out
}

// Count returns the number of templates.
func (c *Catalogue) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}
