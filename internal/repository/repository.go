package repository

import (
	"context"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
)

// Columns accepted by UserQuery.OrderBy.
const (
	OrderByCreatedAt = "created_at"
	OrderByFirstName = "first_name"
	OrderByLastName  = "last_name"
	OrderByEmail     = "email"
)

// UserQuery filters, orders and windows a user lookup. Zero values mean "no
// constraint": an empty Email matches every email, a nil IsActive matches
// both states and a zero Limit returns every row.
type UserQuery struct {
	Email    string
	IsActive *bool
	// Search matches first or last name, case-insensitively.
	Search string

	OrderBy    string
	Descending bool

	Limit  int
	Offset int

	// IncludeCart eager-loads each user's cart.
	IncludeCart bool
}

// IsOrderable reports whether column may be used in UserQuery.OrderBy.
func IsOrderable(column string) bool {
	switch column {
	case OrderByCreatedAt, OrderByFirstName, OrderByLastName, OrderByEmail:
		return true
	default:
		return false
	}
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email returns an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByIDForUpdate retrieves a user and locks the row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfile writes the user's names, email and phone. A taken email
	// returns an AlreadyExists error.
	UpdateProfile(ctx context.Context, user *domain.User) error

	// SetActive writes the user's active flag.
	SetActive(ctx context.Context, user *domain.User) error

	// Find returns the users matching q, in q's order and window.
	Find(ctx context.Context, q UserQuery) ([]*domain.User, error)

	// Count returns how many users match q's filters. Order and window are ignored.
	Count(ctx context.Context, q UserQuery) (int, error)
}

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Create provisions the user's cart. It is a no-op when one exists.
	Create(ctx context.Context, userID string) error

	// Destroy removes the user's cart. It is a no-op when none exists.
	Destroy(ctx context.Context, userID string) error

	// GetByUserID retrieves the user's cart.
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)
}

// Store hands out repositories bound to one connection, and runs units of
// work against repositories bound to a single transaction.
type Store interface {
	Users() UserRepository
	Carts() CartRepository

	// WithinTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
