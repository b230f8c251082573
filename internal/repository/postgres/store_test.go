package postgres

import (
	"context"
	"fmt"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ecommerce-accounts/internal/repository"
)

func TestStore_WithinTx_Commits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(userValues(u)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO carts").
		WithArgs(pgxmock.AnyArg(), u.ID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	store := NewStore(mock)
	err = store.WithinTx(context.Background(), func(tx repository.Store) error {
		if err := tx.Users().Create(context.Background(), u); err != nil {
			return err
		}
		return tx.Carts().Create(context.Background(), u.ID)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollsBackOnCartFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	u := sampleUser()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(userValues(u)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO carts").
		WithArgs(pgxmock.AnyArg(), u.ID, pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	store := NewStore(mock)
	err = store.WithinTx(context.Background(), func(tx repository.Store) error {
		if err := tx.Users().Create(context.Background(), u); err != nil {
			return err
		}
		return tx.Carts().Create(context.Background(), u.ID)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RepositoriesShareConnection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewStore(mock)
	assert.NotNil(t, store.Users())
	assert.NotNil(t, store.Carts())
	assert.Same(t, store.users, store.Users())
}
