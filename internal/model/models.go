// Package model defines the data models shared by the altar client and server.
package model

import (
	"fmt"
	"time"
)

// Tier classifies a card template. Transformations only move between
// templates of the same tier.
type Tier string

// Card tiers, from the rarest to the most common.
const (
	TierT0 Tier = "T0"
	TierT1 Tier = "T1"
	TierT2 Tier = "T2"
	TierT3 Tier = "T3"
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierT0, TierT1, TierT2, TierT3:
		return true
	}
	return false
}

// Rarity is the in-game rarity label of a card.
type Rarity string

const (
	RarityUnique Rarity = "Unique"
	RarityRare   Rarity = "Rare"
	RarityMagic  Rarity = "Magic"
	RarityNormal Rarity = "Normal"
)

// Variant is the finish of an owned card.
type Variant string

const (
	VariantNormal Variant = "normal"
	VariantFoil   Variant = "foil"
)

// VariantOf maps the foil flag to a Variant.
func VariantOf(foil bool) Variant {
	if foil {
		return VariantFoil
	}
	return VariantNormal
}

// ParseVariant parses a variant name.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantNormal, VariantFoil:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown variant %q", s)
}

// GameData holds the drop weight and artwork of a card template.
type GameData struct {
	Weight  float64 `json:"weight" yaml:"weight" db:"weight"`
	Img     string  `json:"img,omitempty" yaml:"img,omitempty" db:"img"`
	FoilImg string  `json:"foil_img,omitempty" yaml:"foil_img,omitempty" db:"foil_img"`
}

// Card is a card template together with the identity of an owned instance.
type Card struct {
	UID            int64    `json:"uid" yaml:"uid" db:"uid"`
	ID             string   `json:"id" yaml:"id" db:"id"`
	Name           string   `json:"name" yaml:"name" db:"name"`
	ItemClass      string   `json:"item_class" yaml:"item_class" db:"item_class"`
	Rarity         Rarity   `json:"rarity" yaml:"rarity" db:"rarity"`
	Tier           Tier     `json:"tier" yaml:"tier" db:"tier"`
	FlavourText    string   `json:"flavour_text,omitempty" yaml:"flavour_text,omitempty" db:"flavour_text"`
	WikiURL        string   `json:"wiki_url,omitempty" yaml:"wiki_url,omitempty" db:"wiki_url"`
	GameData       GameData `json:"game_data" yaml:"game_data" db:"game_data"`
	Foil           bool     `json:"foil" yaml:"foil" db:"foil"`
	RelevanceScore *float64 `json:"relevance_score,omitempty" yaml:"relevance_score,omitempty" db:"relevance_score"`
}

// DropWeight returns the relative weight used when this template is picked
// as a transformation target. Missing or non-positive weights count as 1.
func (c Card) DropWeight() float64 {
	if c.GameData.Weight <= 0 {
		return 1
	}
	return c.GameData.Weight
}

// CardDelta is a signed change to the counts of one card template.
// Card optionally carries the template metadata, needed when the delta
// introduces a template the collection does not hold yet.
type CardDelta struct {
	NormalDelta int   `json:"normal_delta"`
	FoilDelta   int   `json:"foil_delta"`
	Card        *Card `json:"card,omitempty"`
}

// IsZero reports whether the delta leaves both counts unchanged.
func (d CardDelta) IsZero() bool {
	return d.NormalDelta == 0 && d.FoilDelta == 0
}

// User is a player account holding the vaal orb balance.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	VaalOrbs  int64     `db:"vaal_orbs"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CollectionEntry is a user's owned counts for one template.
type CollectionEntry struct {
	CardID      string    `json:"card_id" db:"card_id"`
	NormalCount int       `json:"normal_count" db:"normal_count"`
	FoilCount   int       `json:"foil_count" db:"foil_count"`
	Card        *Card     `json:"card,omitempty" db:"-"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Buff is a temporary user effect. The only buff affecting the altar is
// Atlas Influence, which raises the foil chance of the next vaal.
type Buff struct {
	Username        string    `db:"username"`
	Type            string    `db:"buff_type"`
	FoilChanceBoost float64   `db:"foil_chance_boost"`
	ExpiresAt       time.Time `db:"expires_at"`
}

// BuffAtlasInfluence is the buff type consumed by a vaal to boost the foil outcome.
const BuffAtlasInfluence = "atlas_influence"

// ActivityLog records a settled altar action.
type ActivityLog struct {
	ID          string    `db:"id"`
	Username    string    `db:"username"`
	ActionType  string    `db:"action_type"`
	Description string    `db:"description"`
	CardID      *string   `db:"card_id"`
	Outcome     *string   `db:"outcome"`
	CreatedAt   time.Time `db:"created_at"`
}

// Activity types recorded in the activity log.
const (
	ActivityVaalOutcome = "vaal_outcome" // Server rolled and applied a vaal
	ActivityCommit      = "commit"       // Client computed change committed
	ActivityOrbGrant    = "orb_grant"    // Orbs granted to a user
)
