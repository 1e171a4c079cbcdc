package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(255) NOT NULL UNIQUE,
		vaal_orbs BIGINT NOT NULL DEFAULT 0 CHECK (vaal_orbs >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		id VARCHAR(255) PRIMARY KEY,
		uid BIGINT NOT NULL DEFAULT 0,
		name VARCHAR(255) NOT NULL,
		item_class VARCHAR(100) NOT NULL DEFAULT '',
		rarity VARCHAR(20) NOT NULL DEFAULT '',
		tier VARCHAR(4) NOT NULL,
		flavour_text TEXT NOT NULL DEFAULT '',
		wiki_url TEXT NOT NULL DEFAULT '',
		weight DOUBLE PRECISION NOT NULL DEFAULT 1,
		img TEXT NOT NULL DEFAULT '',
		foil_img TEXT NOT NULL DEFAULT '',
		relevance_score DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cards_tier ON cards(tier)`,
	`CREATE TABLE IF NOT EXISTS user_collections (
		username VARCHAR(255) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		card_id VARCHAR(255) NOT NULL REFERENCES cards(id),
		normal_count INTEGER NOT NULL DEFAULT 0 CHECK (normal_count >= 0),
		foil_count INTEGER NOT NULL DEFAULT 0 CHECK (foil_count >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (username, card_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_buffs (
		username VARCHAR(255) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		buff_type VARCHAR(50) NOT NULL,
		foil_chance_boost DOUBLE PRECISION NOT NULL DEFAULT 0,
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (username, buff_type)
	)`,
	`CREATE TABLE IF NOT EXISTS processed_operations (
		operation_id VARCHAR(64) PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		kind VARCHAR(20) NOT NULL,
		result JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		action_type VARCHAR(50) NOT NULL,
		description TEXT NOT NULL,
		card_id VARCHAR(255),
		outcome VARCHAR(20),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_logs_username ON activity_logs(username, created_at DESC)`,
}

// Migrate creates the tables the altar server needs. It is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
