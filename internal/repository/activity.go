package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// ActivityRepository records settled altar actions.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates a new ActivityRepository instance.
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create stores an activity log entry under a new random UUID.
func (r *ActivityRepository) Create(ctx context.Context, username, actionType, description string, cardID, outcome *string) (*model.ActivityLog, error) {
	const query = `
		INSERT INTO activity_logs (id, username, action_type, description, card_id, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, username, action_type, description, card_id, outcome, created_at
	`

	var a model.ActivityLog
	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, uuid.New(), username, actionType, description, cardID, outcome).Scan(
		&id,
		&a.Username,
		&a.ActionType,
		&a.Description,
		&a.CardID,
		&a.Outcome,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity log: %w", err)
	}
	a.ID = id.String()
	return &a, nil
}

// ListByUser returns the user's latest activity, newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, username string, limit int) ([]*model.ActivityLog, error) {
	const query = `
		SELECT id, username, action_type, description, card_id, outcome, created_at
		FROM activity_logs
		WHERE username = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.ActivityLog
	for rows.Next() {
		var a model.ActivityLog
		var id uuid.UUID
		if err := rows.Scan(&id, &a.Username, &a.ActionType, &a.Description, &a.CardID, &a.Outcome, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		a.ID = id.String()
		logs = append(logs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity logs: %w", err)
	}
	return logs, nil
}
