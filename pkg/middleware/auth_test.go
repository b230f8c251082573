package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ecommerce-accounts/pkg/logger"
)

func staticValidator(token string) (*Claims, error) {
	if token != "good-token" {
		return nil, errors.New("bad signature")
	}
	return &Claims{UserID: "u-1", Email: "ada@example.com"}, nil
}

func TestAuth_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer   "},
		{"invalid token", "Bearer bad-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := Auth(staticValidator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body map[string]map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "UNAUTHORIZED", body["error"]["code"])
		})
	}
}

func TestAuth_AcceptsAndStoresClaims(t *testing.T) {
	var buf bytes.Buffer
	var claims *Claims
	var userID string

	h := RequestLogger(logger.NewWithWriter("accounts", "info", &buf))(Auth(staticValidator)(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			claims, _ = ClaimsFromContext(r.Context())
			userID = UserIDFromContext(r.Context())
			logger.FromContext(r.Context()).Info("authorized")
		})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "bearer good-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, claims)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "u-1", userID)
	assert.Contains(t, buf.String(), `"user_id":"u-1"`)
}

func TestUserIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, UserIDFromContext(req.Context()))
}
