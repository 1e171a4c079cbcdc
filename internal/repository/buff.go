package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// BuffRepository handles temporary user buffs.
type BuffRepository struct {
	db DBTX
}

// NewBuffRepository creates a new BuffRepository instance.
func NewBuffRepository(db DBTX) *BuffRepository {
	return &BuffRepository{db: db}
}

// Grant gives the user a buff, replacing any buff of the same type.
func (r *BuffRepository) Grant(ctx context.Context, b model.Buff) error {
	const query = `
		INSERT INTO user_buffs (username, buff_type, foil_chance_boost, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username, buff_type) DO UPDATE SET
			foil_chance_boost = EXCLUDED.foil_chance_boost,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := r.db.Exec(ctx, query, b.Username, b.Type, b.FoilChanceBoost, b.ExpiresAt); err != nil {
		return fmt.Errorf("failed to grant buff: %w", err)
	}
	return nil
}

// Active returns the user's buff of the given type if it has not expired
// at now, or nil.
func (r *BuffRepository) Active(ctx context.Context, username, buffType string, now time.Time) (*model.Buff, error) {
	const query = `
		SELECT username, buff_type, foil_chance_boost, expires_at
		FROM user_buffs
		WHERE username = $1 AND buff_type = $2 AND expires_at > $3
	`

	var b model.Buff
	err := r.db.QueryRow(ctx, query, username, buffType, now).Scan(&b.Username, &b.Type, &b.FoilChanceBoost, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get buff: %w", err)
	}
	return &b, nil
}

// Consume removes the user's buff of the given type.
// Returns true if a buff was removed.
func (r *BuffRepository) Consume(ctx context.Context, username, buffType string) (bool, error) {
	const query = `DELETE FROM user_buffs WHERE username = $1 AND buff_type = $2`

	tag, err := r.db.Exec(ctx, query, username, buffType)
	if err != nil {
		return false, fmt.Errorf("failed to consume buff: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
