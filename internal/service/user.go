package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/utafrali/ecommerce-accounts/internal/auth"
	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/internal/notification"
	"github.com/utafrali/ecommerce-accounts/internal/repository"
	apperrors "github.com/utafrali/ecommerce-accounts/pkg/errors"
	"github.com/utafrali/ecommerce-accounts/pkg/pagination"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Caller-facing messages.
const (
	msgCreateFailed   = "internal server error, try again later"
	msgInvalidLogin   = "invalid email or password"
	msgDeactivated    = "account is deactivated"
	msgUnknownEmail   = "the email entered does not belong to any registered user"
	msgEmailTaken     = "the email entered is already registered"
	msgLookupFailed   = "could not look up the user, try again later"
	msgUnknownID      = "the id sent does not belong to any user"
	msgUpdated        = "user updated successfully"
	msgUpdateFailed   = "could not update the user, try again later"
	msgPageNotFound   = "this page does not exist"
	msgSearchFailed   = "could not search users"
	msgToggleFailed   = "could not change the user's status, try again later"
	msgDeactivatedFmt = "the account of user %s was deactivated"
	msgRestoredFmt    = "the account of user %s was restored"
)

// Credentials hashes passwords and issues session tokens.
type Credentials interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) error
	IssueToken(userID, email string) (string, error)
}

// Notifier hands mail to a background dispatcher. It must not block.
type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// EventPublisher publishes user domain events.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishUserUpdated(ctx context.Context, user *domain.User) error
	PublishUserStatusChanged(ctx context.Context, user *domain.User) error
}

// UserService implements the user lifecycle.
type UserService struct {
	store       repository.Store
	credentials Credentials
	notifier    Notifier
	events      EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(
	store repository.Store,
	credentials Credentials,
	notifier Notifier,
	events EventPublisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:       store,
		credentials: credentials,
		notifier:    notifier,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateUserInput holds the parameters for creating an account.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// SignInInput holds the parameters for signing in.
type SignInInput struct {
	Email    string
	Password string
}

// Create registers a new active account and provisions its cart in the same
// transaction. The welcome mail and the registration event follow the commit.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.AuthResult, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	hash, err := s.credentials.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.InternalWithMessage(msgCreateFailed, err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		Phone:        input.Phone,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := tx.Carts().Create(ctx, user.ID); err != nil {
			return fmt.Errorf("create cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict(msgEmailTaken)
		}
		s.logger.ErrorContext(ctx, "failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InternalWithMessage(msgCreateFailed, err)
	}

	token, err := s.credentials.IssueToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.InternalWithMessage(msgCreateFailed, fmt.Errorf("issue token: %w", err))
	}

	s.notifier.Notify(ctx, notification.Message{
		ID:        notification.MessageID(notification.CaseCreateAccount, user.ID),
		Addressee: user.Email,
		Subject:   notification.CaseCreateAccount,
		Context: map[string]string{
			"firstname": user.FirstName,
			"lastname":  user.LastName,
		},
	})

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &domain.AuthResult{StatusCode: http.StatusCreated, Token: token}, nil
}

// SignIn authenticates by email and password. An unknown email and a wrong
// password fail identically.
func (s *UserService) SignIn(ctx context.Context, input SignInInput) (*domain.AuthResult, error) {
	if input.Email == "" || input.Password == "" {
		return nil, apperrors.Unauthorized(msgInvalidLogin)
	}

	user, err := s.FindOneByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, apperrors.Unauthorized(msgInvalidLogin)
		}
		return nil, err
	}

	if err := s.credentials.VerifyPassword(input.Password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized(msgInvalidLogin)
		}
		s.logger.ErrorContext(ctx, "stored password hash is unusable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Internal(err)
	}

	if !user.IsActive {
		return nil, apperrors.Unauthorized(msgDeactivated)
	}

	token, err := s.credentials.IssueToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("issue token: %w", err))
	}

	s.logger.InfoContext(ctx, "user signed in",
		slog.String("user_id", user.ID),
	)

	return &domain.AuthResult{StatusCode: http.StatusOK, Token: token}, nil
}

// FindOneByEmail looks a user up by email, active or not.
func (s *UserService) FindOneByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgUnknownEmail)
		}
		return nil, apperrors.InternalWithMessage(msgLookupFailed, err)
	}
	return user, nil
}

// VerifyEmail returns true when no user owns email, and a Conflict when one
// does. Create does not depend on it; the unique constraint is authoritative.
func (s *UserService) VerifyEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.store.Users().GetByEmail(ctx, email)
	switch {
	case err == nil:
		return false, apperrors.Conflict(msgEmailTaken)
	case errors.Is(err, apperrors.ErrNotFound):
		return true, nil
	default:
		return false, apperrors.InternalWithMessage(msgLookupFailed, err)
	}
}

// Update applies a partial patch to the user. Absent fields are untouched and
// an empty patch writes nothing. The row is locked for the duration, so a
// concurrent status toggle is neither lost nor undone.
func (s *UserService) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.MessageResult, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var user *domain.User

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if patch.IsEmpty() {
			return nil
		}

		patch.Apply(u)
		if err := tx.Users().UpdateProfile(ctx, u); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}

		user = u
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyExists):
			return nil, apperrors.Conflict(msgEmailTaken)
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, apperrors.BadRequest(msgUnknownID)
		default:
			s.logger.ErrorContext(ctx, "failed to update user",
				slog.String("user_id", id),
				slog.String("error", err.Error()),
			)
			return nil, apperrors.InternalWithMessage(msgUpdateFailed, err)
		}
	}

	result := &domain.MessageResult{StatusCode: http.StatusNoContent, Message: msgUpdated}
	if user == nil {
		return result, nil
	}

	if err := s.events.PublishUserUpdated(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.updated event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user updated",
		slog.String("user_id", user.ID),
	)

	return result, nil
}

// GetAll returns one page of users, counted and windowed in the database.
// Valid pages are 1..max(totalPages, 1).
func (s *UserService) GetAll(ctx context.Context, page, limit int) (*domain.UserPage, error) {
	if limit < 1 {
		return nil, apperrors.BadRequest("limit must be at least 1")
	}

	count, err := s.store.Users().Count(ctx, repository.UserQuery{})
	if err != nil {
		return nil, apperrors.InternalWithMessage(msgSearchFailed, err)
	}

	totalPages := pagination.TotalPages(count, limit)
	if !pagination.ValidPage(page, totalPages) {
		return nil, apperrors.BadRequest(msgPageNotFound)
	}

	params := pagination.Params{Page: page, Limit: limit}
	users, err := s.store.Users().Find(ctx, repository.UserQuery{
		Limit:  params.Limit,
		Offset: params.Offset(),
	})
	if err != nil {
		return nil, apperrors.InternalWithMessage(msgSearchFailed, err)
	}

	prev, next := pagination.Neighbors(page, totalPages)
	return &domain.UserPage{
		PrevPage: prev,
		Page:     page,
		NextPage: next,
		Users:    users,
	}, nil
}

// DeleteUser toggles the user's active flag. Deactivation destroys the cart
// and reactivation provisions one; the cart write and the user write commit
// together or not at all.
func (s *UserService) DeleteUser(ctx context.Context, id string) (*domain.MessageResult, error) {
	var user *domain.User

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		u.IsActive = !u.IsActive
		if u.IsActive {
			if err := tx.Carts().Create(ctx, u.ID); err != nil {
				return fmt.Errorf("create cart: %w", err)
			}
		} else {
			if err := tx.Carts().Destroy(ctx, u.ID); err != nil {
				return fmt.Errorf("destroy cart: %w", err)
			}
		}

		if err := tx.Users().SetActive(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}

		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.BadRequest(msgUnknownID)
		}
		s.logger.ErrorContext(ctx, "failed to toggle user status",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InternalWithMessage(msgToggleFailed, err)
	}

	if err := s.events.PublishUserStatusChanged(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.status_changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user status changed",
		slog.String("user_id", user.ID),
		slog.Bool("is_active", user.IsActive),
	)

	if user.IsActive {
		return &domain.MessageResult{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf(msgRestoredFmt, user.FullName()),
		}, nil
	}
	return &domain.MessageResult{
		StatusCode: http.StatusNoContent,
		Message:    fmt.Sprintf(msgDeactivatedFmt, user.FullName()),
	}, nil
}

func validateCreate(input CreateUserInput) error {
	if strings.TrimSpace(input.FirstName) == "" {
		return apperrors.BadRequest("first name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		return apperrors.BadRequest("last name is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return apperrors.BadRequest("email is required")
	}
	return validatePassword(input.Password)
}

func validatePatch(patch domain.UserPatch) error {
	if patch.FirstName != nil && strings.TrimSpace(*patch.FirstName) == "" {
		return apperrors.BadRequest("first name must not be empty")
	}
	if patch.LastName != nil && strings.TrimSpace(*patch.LastName) == "" {
		return apperrors.BadRequest("last name must not be empty")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return apperrors.BadRequest("email must not be empty")
	}
	return nil
}

// validatePassword checks password strength requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.BadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.BadRequest("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
