package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/pkg/database"
	apperrors "github.com/utafrali/ecommerce-accounts/pkg/errors"
)

const (
	insertCartSQL = `
		INSERT INTO carts (id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`

	selectCartByUserSQL = `
		SELECT id, user_id, created_at
		FROM carts
		WHERE user_id = $1`
)

// CartRepository implements repository.CartRepository using PostgreSQL.
// Inside Store.WithinTx it runs on the caller's transaction.
type CartRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewCartRepository creates a cart repository over a pool or a transaction.
func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db, now: time.Now}
}

// Create provisions a cart for userID; an existing cart is left as is.
func (r *CartRepository) Create(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "carts.create", insertCartSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, insertCartSQL, uuid.NewString(), userID, r.now().UTC()); err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

// Destroy removes the cart of userID. Zero affected rows is not an error.
func (r *CartRepository) Destroy(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "carts.destroy", deleteCartSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, deleteCartSQL, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// GetByUserID retrieves the cart owned by userID.
func (r *CartRepository) GetByUserID(ctx context.Context, userID string) (c *domain.Cart, err error) {
	ctx, end := database.TraceQuery(ctx, "carts.get_by_user_id", selectCartByUserSQL)
	defer func() { end(err) }()

	var cart domain.Cart
	err = r.db.QueryRow(ctx, selectCartByUserSQL, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan cart: %w", err)
	}
	return &cart, nil
}
