package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serveReady(t *testing.T, h *Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", down)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		critical   Checker
		optional   Checker
		wantCode   int
		wantStatus Status
	}{
		{"all up", up, up, http.StatusOK, StatusUp},
		{"optional down degrades", up, down, http.StatusOK, StatusDegraded},
		{"critical down", down, up, http.StatusServiceUnavailable, StatusDown},
		{"both down", down, down, http.StatusServiceUnavailable, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterCritical("postgres", tt.critical)
			h.Register("kafka", tt.optional)

			rec, resp := serveReady(t, h)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.True(t, resp.Checks["postgres"].Critical)
			assert.False(t, resp.Checks["kafka"].Critical)
		})
	}
}

func TestReadiness_ReportsErrorText(t *testing.T) {
	h := NewHandler()
	h.Register("redis", down)

	_, resp := serveReady(t, h)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
}

func TestReadiness_NoChecks(t *testing.T) {
	rec, resp := serveReady(t, NewHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestCheck_TimesOutSlowChecker(t *testing.T) {
	h := NewHandler()
	h.timeout = 20 * time.Millisecond
	h.RegisterCritical("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())
	assert.Equal(t, StatusDown, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline exceeded")
}
