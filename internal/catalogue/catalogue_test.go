package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

func TestCatalogue_SameTier(t *testing.T) {
	c, err := FromCards([]model.Card{
		{ID: "mageblood", Tier: model.TierT0},
		{ID: "headhunter", Tier: model.TierT0},
		{ID: "tabula", Tier: model.TierT3},
		{ID: "kaom", Tier: model.TierT0},
	})
	require.NoError(t, err)

	got := c.SameTier(model.TierT0, "headhunter")
	require.Len(t, got, 2)
	assert.Equal(t, "kaom", got[0].ID)
	assert.Equal(t, "mageblood", got[1].ID)

	assert.Empty(t, c.SameTier(model.TierT3, "tabula"))
	assert.Empty(t, c.SameTier(model.TierT2, ""))
}

func TestCatalogue_RegisterReplacesTier(t *testing.T) {
	c := New()
	require.NoError(t, c.Register(model.Card{ID: "a", Tier: model.TierT1}))
	require.NoError(t, c.Register(model.Card{ID: "a", Tier: model.TierT2}))

	assert.Empty(t, c.SameTier(model.TierT1, ""))
	assert.Len(t, c.SameTier(model.TierT2, ""), 1)
	assert.Equal(t, 1, c.Count())
}

func TestCatalogue_RegisterInvalid(t *testing.T) {
	tests := []struct {
		name string
		card model.Card
	}{
		{"empty id", model.Card{Tier: model.TierT1}},
		{"bad tier", model.Card{ID: "x", Tier: "T9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.card)
			assert.ErrorIs(t, err, ErrInvalidCard)
		})
	}
}

func TestCatalogue_RegisterStripsFoil(t *testing.T) {
	c := New()
	require.NoError(t, c.Register(model.Card{ID: "a", Tier: model.TierT1, Foil: true}))
	card, ok := c.Get("a")
	require.True(t, ok)
	assert.False(t, card.Foil)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.yaml")
	content := `
cards:
  - id: headhunter
    uid: 1
    name: Headhunter
    item_class: Belt
    rarity: Unique
    tier: T0
    game_data:
      weight: 2
  - id: goldrim
    uid: 2
    name: Goldrim
    item_class: Helmet
    rarity: Unique
    tier: T3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	hh, err := c.MustGet("headhunter")
	require.NoError(t, err)
	assert.Equal(t, "Belt", hh.ItemClass)
	assert.Equal(t, 2.0, hh.DropWeight())

	_, err = c.MustGet("missing")
	assert.ErrorIs(t, err, ErrCardNotFound)
}
