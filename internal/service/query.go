package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/internal/repository"
	apperrors "github.com/utafrali/ecommerce-accounts/pkg/errors"
	"github.com/utafrali/ecommerce-accounts/pkg/pagination"
)

const entityUser = "user"

// Query operation names, used in error messages.
const (
	opFindOne         = "find-one"
	opFindAll         = "find-all"
	opFindByID        = "find-by-id"
	opFindAndCountAll = "find-and-count-all"
)

const msgNoMatch = "no user matched the query"

// FindOneUser returns the first user matching q.
func (s *UserService) FindOneUser(ctx context.Context, q repository.UserQuery) (*domain.User, error) {
	return runQuery(opFindOne, func() (*domain.User, error) {
		q.Limit = 1
		users, err := s.store.Users().Find(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, apperrors.BadRequest(msgNoMatch)
		}
		return users[0], nil
	})
}

// FindAllUsers returns every user matching q. An empty result is a BadRequest.
func (s *UserService) FindAllUsers(ctx context.Context, q repository.UserQuery) ([]*domain.User, error) {
	return runQuery(opFindAll, func() ([]*domain.User, error) {
		users, err := s.store.Users().Find(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(users) == 0 {
			return nil, apperrors.BadRequest(msgNoMatch)
		}
		return users, nil
	})
}

// FindUserByID looks a user up by primary key. Of q only the eager-load
// options apply.
func (s *UserService) FindUserByID(ctx context.Context, id string, q repository.UserQuery) (*domain.User, error) {
	return runQuery(opFindByID, func() (*domain.User, error) {
		user, err := s.store.Users().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.BadRequest(msgUnknownID)
			}
			return nil, err
		}

		if q.IncludeCart {
			cart, err := s.store.Carts().GetByUserID(ctx, user.ID)
			switch {
			case err == nil:
				user.Cart = cart
			case errors.Is(err, apperrors.ErrNotFound):
				// Inactive users have no cart.
			default:
				return nil, err
			}
		}
		return user, nil
	})
}

// FindAndCountAllUsers returns one page of the users matching q together
// with the total match count. Without a limit the whole match set is one page.
func (s *UserService) FindAndCountAllUsers(ctx context.Context, q repository.UserQuery, page int) (*domain.CountedUsers, error) {
	return runQuery(opFindAndCountAll, func() (*domain.CountedUsers, error) {
		count, err := s.store.Users().Count(ctx, q)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperrors.BadRequest(msgNoMatch)
		}

		totalPages := 1
		if q.Limit > 0 {
			totalPages = pagination.TotalPages(count, q.Limit)
		}
		if !pagination.ValidPage(page, totalPages) {
			return nil, apperrors.BadRequest(msgPageNotFound)
		}
		if q.Limit > 0 {
			q.Offset = pagination.Params{Page: page, Limit: q.Limit}.Offset()
		}

		users, err := s.store.Users().Find(ctx, q)
		if err != nil {
			return nil, err
		}

		return &domain.CountedUsers{
			Data:       users,
			Page:       page,
			TotalPages: totalPages,
			TotalUsers: count,
		}, nil
	})
}

// runQuery calls fn and routes its error through translateQueryError.
func runQuery[T any](operation string, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err != nil {
		var zero T
		return zero, translateQueryError(err, operation)
	}
	return result, nil
}

// translateQueryError passes client errors through unchanged and turns
// everything else into an Internal error naming the entity and operation.
func translateQueryError(err error, operation string) error {
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsClientError() {
		return err
	}
	return apperrors.InternalWithMessage(
		fmt.Sprintf("an error occurred working the %s entity while querying %s", entityUser, operation),
		err,
	)
}
