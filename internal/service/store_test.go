package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/ecommerce-accounts/internal/auth"
	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/internal/repository/postgres"
	"github.com/utafrali/ecommerce-accounts/pkg/logger"
)

// These tests run the service against the PostgreSQL store over pgxmock, so
// that a failed statement inside a unit of work is seen to roll back.

var userColumnNames = []string{
	"id", "first_name", "last_name", "email", "password_hash",
	"phone", "is_active", "created_at", "updated_at",
}

func newPostgresService(t *testing.T) (*UserService, pgxmock.PgxPoolIface, *recordingNotifier, *mockEventPublisher) {
	t.Helper()

	db, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens := auth.NewJWTManager("test-secret-key-for-testing-only-32b", time.Hour)
	creds := auth.NewCredentials(auth.NewPasswordHasher(bcrypt.MinCost), tokens)
	notifier := &recordingNotifier{}
	events := &mockEventPublisher{}

	svc := NewUserService(postgres.NewStore(db), creds, notifier, events, logger.Discard())
	return svc, db, notifier, events
}

func TestPostgres_DeleteUser_CartFailureRollsBack(t *testing.T) {
	svc, db, _, events := newPostgresService(t)
	now := time.Now().UTC()

	db.ExpectBegin()
	db.ExpectQuery("FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow("user-1", "Jane", "Doe", "jane@example.com", "hash", "", true, now, now))
	db.ExpectExec("DELETE FROM carts").
		WithArgs("user-1").
		WillReturnError(errors.New("deadlock detected"))
	db.ExpectRollback()

	_, err := svc.DeleteUser(context.Background(), "user-1")

	assertAppError(t, err, http.StatusInternalServerError, msgToggleFailed)
	assert.NoError(t, db.ExpectationsWereMet())
	events.AssertNotCalled(t, "PublishUserStatusChanged", mock.Anything, mock.Anything)
}

func TestPostgres_DeleteUser_CommitsBothWrites(t *testing.T) {
	svc, db, _, events := newPostgresService(t)
	now := time.Now().UTC()

	db.ExpectBegin()
	db.ExpectQuery("FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow("user-1", "Jane", "Doe", "jane@example.com", "hash", "", false, now, now))
	db.ExpectExec("INSERT INTO carts").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectExec(`UPDATE users\s+SET is_active = \$1`).
		WithArgs(true, pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectCommit()
	events.On("PublishUserStatusChanged", context.Background(), mock.Anything).Return(nil)

	result, err := svc.DeleteUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgres_Create_DuplicateEmailRollsBack(t *testing.T) {
	svc, db, notifier, _ := newPostgresService(t)

	db.ExpectBegin()
	db.ExpectExec("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), "Jane", "Doe", "jane@example.com", pgxmock.AnyArg(),
			"", true, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	db.ExpectRollback()

	_, err := svc.Create(context.Background(), validCreateInput())

	assertAppError(t, err, http.StatusConflict, msgEmailTaken)
	assert.NoError(t, db.ExpectationsWereMet())
	assert.Empty(t, notifier.sent)
}

func TestPostgres_Update_LocksRowAndWritesProfileOnly(t *testing.T) {
	svc, db, _, events := newPostgresService(t)
	now := time.Now().UTC()

	db.ExpectBegin()
	db.ExpectQuery("FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow("user-1", "Jane", "Doe", "jane@example.com", "hash", "", true, now, now))
	db.ExpectExec(`UPDATE users\s+SET first_name = \$1, last_name = \$2, email = \$3, phone = \$4, updated_at = \$5\s+WHERE id = \$6`).
		WithArgs("Jane", "Doe", "new@example.com", "", pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	db.ExpectCommit()
	events.On("PublishUserUpdated", context.Background(), mock.Anything).Return(nil)

	email := "new@example.com"
	result, err := svc.Update(context.Background(), "user-1", domain.UserPatch{Email: &email})

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
	assert.NoError(t, db.ExpectationsWereMet())
}

func TestPostgres_Update_EmailTakenRollsBack(t *testing.T) {
	svc, db, _, events := newPostgresService(t)
	now := time.Now().UTC()

	db.ExpectBegin()
	db.ExpectQuery("FOR UPDATE").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(userColumnNames).
			AddRow("user-1", "Jane", "Doe", "jane@example.com", "hash", "", true, now, now))
	db.ExpectExec("UPDATE users").
		WithArgs("Jane", "Doe", "taken@example.com", "", pgxmock.AnyArg(), "user-1").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	db.ExpectRollback()

	email := "taken@example.com"
	_, err := svc.Update(context.Background(), "user-1", domain.UserPatch{Email: &email})

	assertAppError(t, err, http.StatusConflict, msgEmailTaken)
	assert.NoError(t, db.ExpectationsWereMet())
	events.AssertNotCalled(t, "PublishUserUpdated", mock.Anything, mock.Anything)
}
