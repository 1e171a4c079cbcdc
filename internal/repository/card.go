package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// ErrCardNotFound is returned when a card template does not exist.
var ErrCardNotFound = errors.New("card not found")

// CardRepository handles card template persistence.
type CardRepository struct {
	db DBTX
}

// NewCardRepository creates a new CardRepository instance.
func NewCardRepository(db DBTX) *CardRepository {
	return &CardRepository{db: db}
}

const cardColumns = `id, uid, name, item_class, rarity, tier, flavour_text, wiki_url, weight, img, foil_img, relevance_score`

func scanCard(row pgx.Row) (*model.Card, error) {
	var c model.Card
	err := row.Scan(
		&c.ID,
		&c.UID,
		&c.Name,
		&c.ItemClass,
		&c.Rarity,
		&c.Tier,
		&c.FlavourText,
		&c.WikiURL,
		&c.GameData.Weight,
		&c.GameData.Img,
		&c.GameData.FoilImg,
		&c.RelevanceScore,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts a card template or overwrites the stored one.
func (r *CardRepository) Upsert(ctx context.Context, c model.Card) error {
	const query = `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			uid = EXCLUDED.uid,
			name = EXCLUDED.name,
			item_class = EXCLUDED.item_class,
			rarity = EXCLUDED.rarity,
			tier = EXCLUDED.tier,
			flavour_text = EXCLUDED.flavour_text,
			wiki_url = EXCLUDED.wiki_url,
			weight = EXCLUDED.weight,
			img = EXCLUDED.img,
			foil_img = EXCLUDED.foil_img,
			relevance_score = EXCLUDED.relevance_score
	`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.UID, c.Name, c.ItemClass, c.Rarity, c.Tier, c.FlavourText, c.WikiURL,
		c.GameData.Weight, c.GameData.Img, c.GameData.FoilImg, c.RelevanceScore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card %s: %w", c.ID, err)
	}
	return nil
}

// GetByID retrieves a card template.
// Returns ErrCardNotFound if it does not exist.
func (r *CardRepository) GetByID(ctx context.Context, id string) (*model.Card, error) {
	const query = `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	c, err := scanCard(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return c, nil
}

// List returns every card template ordered by id.
func (r *CardRepository) List(ctx context.Context) ([]model.Card, error) {
	const query = `SELECT ` + cardColumns + ` FROM cards ORDER BY id`
	return r.list(ctx, query)
}

// ListByTier returns the templates of a tier, ordered by id.
func (r *CardRepository) ListByTier(ctx context.Context, tier model.Tier) ([]model.Card, error) {
	const query = `SELECT ` + cardColumns + ` FROM cards WHERE tier = $1 ORDER BY id`
	return r.list(ctx, query, tier)
}

func (r *CardRepository) list(ctx context.Context, query string, args ...any) ([]model.Card, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}
