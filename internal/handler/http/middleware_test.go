package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
		wantCalled  bool
	}{
		{"post without content type", http.MethodPost, "", http.StatusOK, true},
		{"patch without content type", http.MethodPatch, "", http.StatusOK, true},
		{"post with json", http.MethodPost, "application/json", http.StatusOK, true},
		{"post with json charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK, true},
		{"post with form", http.MethodPost, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType, false},
		{"patch with text", http.MethodPatch, "text/plain", http.StatusUnsupportedMediaType, false},
		{"post with malformed type", http.MethodPost, ";;", http.StatusUnsupportedMediaType, false},
		{"get without content type", http.MethodGet, "", http.StatusOK, true},
		{"delete without content type", http.MethodDelete, "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/test", strings.NewReader(`{"key":"value"}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			if tt.wantStatus == http.StatusUnsupportedMediaType {
				assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
				assert.Contains(t, rr.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
			}
		})
	}
}

func TestContentTypeJSON_CapsBody(t *testing.T) {
	var readErr error
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	body := strings.Repeat("a", maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(body))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Error(t, readErr)
}
