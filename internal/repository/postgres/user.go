package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/internal/repository"
	"github.com/utafrali/ecommerce-accounts/pkg/database"
	apperrors "github.com/utafrali/ecommerce-accounts/pkg/errors"
)

const userColumns = `u.id, u.first_name, u.last_name, u.email, u.password_hash, u.phone, u.is_active, u.created_at, u.updated_at`

const (
	insertUserSQL = `
		INSERT INTO users (id, first_name, last_name, email, password_hash, phone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectUserByIDSQL = `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.id = $1`

	selectUserByIDForUpdateSQL = selectUserByIDSQL + `
		FOR UPDATE`

	selectUserByEmailSQL = `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.email = $1`

	updateUserProfileSQL = `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, phone = $4, updated_at = $5
		WHERE id = $6`

	updateUserActiveSQL = `
		UPDATE users
		SET is_active = $1, updated_at = $2
		WHERE id = $3`
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewUserRepository creates a user repository over a pool or a transaction.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "users.create", insertUserSQL)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertUserSQL,
		u.ID,
		u.FirstName,
		u.LastName,
		u.Email,
		u.PasswordHash,
		u.Phone,
		u.IsActive,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "users.get_by_id", selectUserByIDSQL)
	defer func() { end(err) }()

	return scanOne(r.db.QueryRow(ctx, selectUserByIDSQL, id))
}

// GetByIDForUpdate retrieves a user by ID with a row lock. It must run
// inside a transaction for the lock to outlive the statement.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "users.get_by_id_for_update", selectUserByIDForUpdateSQL)
	defer func() { end(err) }()

	return scanOne(r.db.QueryRow(ctx, selectUserByIDForUpdateSQL, id))
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "users.get_by_email", selectUserByEmailSQL)
	defer func() { end(err) }()

	return scanOne(r.db.QueryRow(ctx, selectUserByEmailSQL, email))
}

// UpdateProfile writes the profile columns (names, email and phone) and
// refreshes UpdatedAt. The active flag and the password hash are untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "users.update_profile", updateUserProfileSQL)
	defer func() { end(err) }()

	u.UpdatedAt = r.now().UTC()

	ct, err := r.db.Exec(ctx, updateUserProfileSQL,
		u.FirstName,
		u.LastName,
		u.Email,
		u.Phone,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SetActive writes u.IsActive and refreshes UpdatedAt.
func (r *UserRepository) SetActive(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "users.set_active", updateUserActiveSQL)
	defer func() { end(err) }()

	u.UpdatedAt = r.now().UTC()

	ct, err := r.db.Exec(ctx, updateUserActiveSQL, u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Find returns the users matching q.
func (r *UserRepository) Find(ctx context.Context, q repository.UserQuery) (users []*domain.User, err error) {
	query, args, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}

	ctx, end := database.TraceQuery(ctx, "users.find", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users = make([]*domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows, q.IncludeCart)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// Count returns the number of users matching q's filters.
func (r *UserRepository) Count(ctx context.Context, q repository.UserQuery) (n int, err error) {
	where, args := buildFilter(q)
	query := `SELECT COUNT(*) FROM users u` + where

	ctx, end := database.TraceQuery(ctx, "users.count", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// buildFilter renders q's filters as a WHERE clause with positional args.
func buildFilter(q repository.UserQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if q.Email != "" {
		args = append(args, q.Email)
		conds = append(conds, fmt.Sprintf("u.email = $%d", len(args)))
	}
	if q.IsActive != nil {
		args = append(args, *q.IsActive)
		conds = append(conds, fmt.Sprintf("u.is_active = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(u.first_name ILIKE $%d OR u.last_name ILIKE $%d)", n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildFindQuery(q repository.UserQuery) (string, []any, error) {
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = repository.OrderByCreatedAt
	}
	if !repository.IsOrderable(orderBy) {
		return "", nil, apperrors.BadRequest(fmt.Sprintf("users cannot be ordered by %q", q.OrderBy))
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(userColumns)
	if q.IncludeCart {
		sb.WriteString(", c.id, c.created_at FROM users u LEFT JOIN carts c ON c.user_id = u.id")
	} else {
		sb.WriteString(" FROM users u")
	}

	where, args := buildFilter(q)
	sb.WriteString(where)
	fmt.Fprintf(&sb, " ORDER BY u.%s %s, u.id ASC", orderBy, direction)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return sb.String(), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanOne(row pgx.Row) (*domain.User, error) {
	u, err := scanUser(row, false)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// scanUser reads one user row, followed by the cart columns when withCart is set.
func scanUser(row pgx.Row, withCart bool) (*domain.User, error) {
	var u domain.User
	dest := []any{
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	}

	var (
		cartID        *string
		cartCreatedAt *time.Time
	)
	if withCart {
		dest = append(dest, &cartID, &cartCreatedAt)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if cartID != nil {
		u.Cart = &domain.Cart{ID: *cartID, UserID: u.ID}
		if cartCreatedAt != nil {
			u.Cart.CreatedAt = *cartCreatedAt
		}
	}
	return &u, nil
}
