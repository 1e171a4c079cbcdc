package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// can run standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups the repositories bound to one DBTX.
type Repositories struct {
	Users       *UserRepository
	Cards       *CardRepository
	Collections *CollectionRepository
	Buffs       *BuffRepository
	Activity    *ActivityRepository
	Operations  *OperationRepository
}

// New binds every repository to db.
func New(db DBTX) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Cards:       NewCardRepository(db),
		Collections: NewCollectionRepository(db),
		Buffs:       NewBuffRepository(db),
		Activity:    NewActivityRepository(db),
		Operations:  NewOperationRepository(db),
	}
}

// Store owns the pool and hands out pool-bound or transaction-bound
// repositories.
type Store struct {
	*Repositories
	pool *pgxpool.Pool
}

// NewStore creates a Store on top of pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Repositories: New(pool), pool: pool}
}

// InTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(r *Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// Migrate applies the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool)
}

const (
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
