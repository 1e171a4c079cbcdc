package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// ErrNegativeCount is returned when a change would leave a negative count.
var ErrNegativeCount = errors.New("card count would become negative")

// CollectionRepository handles the per-user card counts.
type CollectionRepository struct {
	db DBTX
}

// NewCollectionRepository creates a new CollectionRepository instance.
func NewCollectionRepository(db DBTX) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// List returns the user's non-empty entries with their templates, ordered
// by card id.
func (r *CollectionRepository) List(ctx context.Context, username string) ([]model.CollectionEntry, error) {
	const query = `
		SELECT uc.card_id, uc.normal_count, uc.foil_count, uc.updated_at,
			c.id, c.uid, c.name, c.item_class, c.rarity, c.tier, c.flavour_text, c.wiki_url,
			c.weight, c.img, c.foil_img, c.relevance_score
		FROM user_collections uc
		JOIN cards c ON c.id = uc.card_id
		WHERE uc.username = $1 AND (uc.normal_count > 0 OR uc.foil_count > 0)
		ORDER BY uc.card_id
	`

	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	defer rows.Close()

	var entries []model.CollectionEntry
	for rows.Next() {
		var e model.CollectionEntry
		var c model.Card
		err := rows.Scan(
			&e.CardID, &e.NormalCount, &e.FoilCount, &e.UpdatedAt,
			&c.ID, &c.UID, &c.Name, &c.ItemClass, &c.Rarity, &c.Tier, &c.FlavourText, &c.WikiURL,
			&c.GameData.Weight, &c.GameData.Img, &c.GameData.FoilImg, &c.RelevanceScore,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection entry: %w", err)
		}
		e.Card = &c
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collection: %w", err)
	}
	return entries, nil
}

// Get returns the user's counts for one card. A card the user never owned
// yields a zero entry.
func (r *CollectionRepository) Get(ctx context.Context, username, cardID string) (model.CollectionEntry, error) {
	const query = `
		SELECT card_id, normal_count, foil_count, updated_at
		FROM user_collections
		WHERE username = $1 AND card_id = $2
	`
	return r.get(ctx, query, username, cardID)
}

// GetForUpdate is Get with a row lock held until the transaction ends.
func (r *CollectionRepository) GetForUpdate(ctx context.Context, username, cardID string) (model.CollectionEntry, error) {
	const query = `
		SELECT card_id, normal_count, foil_count, updated_at
		FROM user_collections
		WHERE username = $1 AND card_id = $2
		FOR UPDATE
	`
	return r.get(ctx, query, username, cardID)
}

func (r *CollectionRepository) get(ctx context.Context, query, username, cardID string) (model.CollectionEntry, error) {
	var e model.CollectionEntry
	err := r.db.QueryRow(ctx, query, username, cardID).Scan(&e.CardID, &e.NormalCount, &e.FoilCount, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CollectionEntry{CardID: cardID}, nil
		}
		return model.CollectionEntry{}, fmt.Errorf("failed to get collection entry: %w", err)
	}
	return e, nil
}

// AddCounts applies signed deltas to one card's counts, creating the row on
// first ownership. Returns ErrNegativeCount if a count would drop below
// zero and ErrCardNotFound if the template is unknown.
func (r *CollectionRepository) AddCounts(ctx context.Context, username, cardID string, normalDelta, foilDelta int) (model.CollectionEntry, error) {
	const query = `
		INSERT INTO user_collections (username, card_id, normal_count, foil_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (username, card_id) DO UPDATE SET
			normal_count = user_collections.normal_count + EXCLUDED.normal_count,
			foil_count = user_collections.foil_count + EXCLUDED.foil_count,
			updated_at = NOW()
		RETURNING card_id, normal_count, foil_count, updated_at
	`

	var e model.CollectionEntry
	err := r.db.QueryRow(ctx, query, username, cardID, normalDelta, foilDelta).
		Scan(&e.CardID, &e.NormalCount, &e.FoilCount, &e.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case pgCheckViolation:
			return model.CollectionEntry{}, ErrNegativeCount
		case pgForeignKeyViolation:
			return model.CollectionEntry{}, ErrCardNotFound
		}
		return model.CollectionEntry{}, fmt.Errorf("failed to update collection: %w", err)
	}
	return e, nil
}

// SetCounts overwrites one card's counts.
func (r *CollectionRepository) SetCounts(ctx context.Context, username, cardID string, normal, foil int) error {
	if normal < 0 || foil < 0 {
		return ErrNegativeCount
	}

	const query = `
		INSERT INTO user_collections (username, card_id, normal_count, foil_count, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (username, card_id) DO UPDATE SET
			normal_count = EXCLUDED.normal_count,
			foil_count = EXCLUDED.foil_count,
			updated_at = NOW()
	`

	if _, err := r.db.Exec(ctx, query, username, cardID, normal, foil); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrCardNotFound
		}
		return fmt.Errorf("failed to set collection entry: %w", err)
	}
	return nil
}
