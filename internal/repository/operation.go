package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrOperationNotFound is returned when no operation is stored under an id.
var ErrOperationNotFound = errors.New("operation not found")

// ProcessedOperation is the stored result of an already settled request,
// replayed when a client retries the same operation id.
type ProcessedOperation struct {
	OperationID string
	Username    string
	Kind        string
	Result      json.RawMessage
	CreatedAt   time.Time
}

// OperationRepository records processed operation ids.
type OperationRepository struct {
	db DBTX
}

// NewOperationRepository creates a new OperationRepository instance.
func NewOperationRepository(db DBTX) *OperationRepository {
	return &OperationRepository{db: db}
}

// Save records an operation and its result. Returns false without writing
// if the id was already recorded.
func (r *OperationRepository) Save(ctx context.Context, op ProcessedOperation) (bool, error) {
	const query = `
		INSERT INTO processed_operations (operation_id, username, kind, result, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (operation_id) DO NOTHING
	`

	var result any
	if len(op.Result) > 0 {
		result = string(op.Result)
	}
	tag, err := r.db.Exec(ctx, query, op.OperationID, op.Username, op.Kind, result)
	if err != nil {
		return false, fmt.Errorf("failed to save operation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns a recorded operation.
// Returns ErrOperationNotFound if the id is unknown.
func (r *OperationRepository) Get(ctx context.Context, operationID string) (*ProcessedOperation, error) {
	const query = `
		SELECT operation_id, username, kind, result, created_at
		FROM processed_operations
		WHERE operation_id = $1
	`

	var op ProcessedOperation
	var result []byte
	err := r.db.QueryRow(ctx, query, operationID).Scan(&op.OperationID, &op.Username, &op.Kind, &result, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	op.Result = result
	return &op, nil
}
