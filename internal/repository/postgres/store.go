package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ecommerce-accounts/internal/repository"
	"github.com/utafrali/ecommerce-accounts/pkg/database"
)

// Store implements repository.Store over a pool or, inside WithinTx, over
// the open transaction.
type Store struct {
	db    database.DBTX
	users *UserRepository
	carts *CartRepository
}

// NewStore creates a store whose repositories all run on db.
func NewStore(db database.DBTX) *Store {
	return &Store{
		db:    db,
		users: NewUserRepository(db),
		carts: NewCartRepository(db),
	}
}

// Users returns the user repository.
func (s *Store) Users() repository.UserRepository { return s.users }

// Carts returns the cart repository.
func (s *Store) Carts() repository.CartRepository { return s.carts }

// WithinTx runs fn against a store bound to a new transaction. Called on a
// store that is already transactional, it opens a savepoint.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewStore(tx))
	})
}
