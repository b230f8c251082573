package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ecommerce-accounts/internal/domain"
	"github.com/utafrali/ecommerce-accounts/internal/repository"
	"github.com/utafrali/ecommerce-accounts/internal/service"
	apperrors "github.com/utafrali/ecommerce-accounts/pkg/errors"
	"github.com/utafrali/ecommerce-accounts/pkg/httputil"
	"github.com/utafrali/ecommerce-accounts/pkg/middleware"
	"github.com/utafrali/ecommerce-accounts/pkg/pagination"
	"github.com/utafrali/ecommerce-accounts/pkg/validator"
)

// UserService is the part of service.UserService the handlers call.
type UserService interface {
	Create(ctx context.Context, input service.CreateUserInput) (*domain.AuthResult, error)
	SignIn(ctx context.Context, input service.SignInInput) (*domain.AuthResult, error)
	VerifyEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.MessageResult, error)
	GetAll(ctx context.Context, page, limit int) (*domain.UserPage, error)
	DeleteUser(ctx context.Context, id string) (*domain.MessageResult, error)
	FindUserByID(ctx context.Context, id string, q repository.UserQuery) (*domain.User, error)
	FindAndCountAllUsers(ctx context.Context, q repository.UserQuery, page int) (*domain.CountedUsers, error)
}

// UserHandler handles HTTP requests for the account endpoints.
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(svc UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// CreateUserRequest is the JSON request body for account creation.
type CreateUserRequest struct {
	FirstName string `json:"first_name" validate:"required,notblank,max=100"`
	LastName  string `json:"last_name" validate:"required,notblank,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
}

// SignInRequest is the JSON request body for signing in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is the JSON request body for a partial update. Omitted
// fields are left untouched.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,notblank,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
}

// --- Response types ---

// TokenResponse carries a session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// MessageResponse carries an outcome message together with the status the
// operation reported.
type MessageResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// EmailAvailability reports whether an email is free to register.
type EmailAvailability struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

// --- Handlers ---

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Create(r.Context(), service.CreateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, result.StatusCode, TokenResponse{Token: result.Token})
}

// SignIn handles POST /api/v1/users/sign-in
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.SignIn(r.Context(), service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, result.StatusCode, TokenResponse{Token: result.Token})
}

// VerifyEmail handles GET /api/v1/users/verify-email?email=
func (h *UserHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if err := validator.Var(email, "required,email"); err != nil {
		httputil.WriteValidationError(w, errors.New("query parameter 'email' must be a valid email address"))
		return
	}

	available, err := h.service.VerifyEmail(r.Context(), email)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, EmailAvailability{Email: email, Available: available})
}

// List handles GET /api/v1/users?page=&limit=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	page, err := h.service.GetAll(r.Context(), params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, page)
}

// Search handles GET /api/v1/users/search with the filters email, active,
// q, order_by, desc, page and limit. Without a limit every match is returned
// as one page.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseUserQuery(r)
	if err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.FindAndCountAllUsers(r.Context(), q, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	user, err := h.service.FindUserByID(r.Context(), id.String(), repository.UserQuery{IncludeCart: true})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

// Update handles PATCH /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.requireOwner(w, r, id.String()) {
		return
	}

	var req UpdateUserRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Update(r.Context(), id.String(), domain.UserPatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeMessage(w, result)
}

// Delete handles DELETE /api/v1/users/{id}. It toggles the account between
// active and deactivated.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if !h.requireOwner(w, r, id.String()) {
		return
	}

	result, err := h.service.DeleteUser(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	writeMessage(w, result)
}

// requireOwner writes a 403 unless the caller's token belongs to id.
func (h *UserHandler) requireOwner(w http.ResponseWriter, r *http.Request, id string) bool {
	if middleware.UserIDFromContext(r.Context()) == id {
		return true
	}
	httputil.WriteError(w, r, apperrors.Forbidden("you can only modify your own account"), h.logger)
	return false
}

// writeMessage answers a reported 204 as 200 with the body, keeping the
// reported status in the payload.
func writeMessage(w http.ResponseWriter, result *domain.MessageResult) {
	status := result.StatusCode
	if status == http.StatusNoContent {
		status = http.StatusOK
	}
	httputil.WriteData(w, status, MessageResponse{StatusCode: result.StatusCode, Message: result.Message})
}

// parseUserQuery reads the search filters from the query string.
func parseUserQuery(r *http.Request) (repository.UserQuery, int, error) {
	values := r.URL.Query()
	q := repository.UserQuery{
		Email:   values.Get("email"),
		Search:  values.Get("q"),
		OrderBy: values.Get("order_by"),
	}

	if raw := values.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return q, 0, errors.New("active must be a boolean")
		}
		q.IsActive = &active
	}

	if raw := values.Get("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return q, 0, errors.New("desc must be a boolean")
		}
		q.Descending = desc
	}

	page := pagination.DefaultPage
	if raw := values.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, 0, errors.New("page must be an integer")
		}
		page = v
	}

	if raw := values.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return q, 0, errors.New("limit must be a positive integer")
		}
		q.Limit = v
	}

	if q.OrderBy != "" && !repository.IsOrderable(q.OrderBy) {
		return q, 0, errors.New("order_by must be one of: created_at first_name last_name email")
	}

	return q, page, nil
}
