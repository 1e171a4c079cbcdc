// Package repository provides the PostgreSQL persistence of the altar server.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInsufficientOrbs = errors.New("insufficient vaal orbs")
)

// UserRepository handles user data persistence.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, vaal_orbs, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.VaalOrbs,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user holding the given number of vaal orbs.
func (r *UserRepository) Create(ctx context.Context, username string, vaalOrbs int64) (*model.User, error) {
	const query = `
		INSERT INTO users (username, vaal_orbs, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, username, vaalOrbs))
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetForUpdate retrieves a user and locks the row until the surrounding
// transaction ends.
func (r *UserRepository) GetForUpdate(ctx context.Context, username string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1 FOR UPDATE`

	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating it with initialOrbs if it doesn't
// exist. The bool result reports whether the user was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, username string, initialOrbs int64) (*model.User, bool, error) {
	user, err := r.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, username, initialOrbs)
	if err != nil {
		if !errors.Is(err, ErrUserExists) {
			return nil, false, err
		}
		// created concurrently
		user, err = r.GetByUsername(ctx, username)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	return user, true, nil
}

// AddOrbs changes the user's vaal orb balance by delta.
// Returns ErrInsufficientOrbs if the balance would go negative.
func (r *UserRepository) AddOrbs(ctx context.Context, username string, delta int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET vaal_orbs = vaal_orbs + $2, updated_at = NOW()
		WHERE username = $1 AND vaal_orbs + $2 >= 0
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, username, delta))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update vaal orbs: %w", err)
	}

	exists, err := r.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return nil, ErrInsufficientOrbs
}

// SetOrbs overwrites the user's vaal orb balance.
func (r *UserRepository) SetOrbs(ctx context.Context, username string, vaalOrbs int64) (*model.User, error) {
	if vaalOrbs < 0 {
		return nil, ErrInsufficientOrbs
	}

	const query = `
		UPDATE users
		SET vaal_orbs = $2, updated_at = NOW()
		WHERE username = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, username, vaalOrbs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to set vaal orbs: %w", err)
	}
	return user, nil
}

// Exists checks if a user exists.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
