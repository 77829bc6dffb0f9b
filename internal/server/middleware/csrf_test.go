package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSRF(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		authHeader     string
		csrfHeader     string
		expectedStatus int
	}{
		{
			name:           "mutating request with matching token",
			method:         http.MethodPost,
			authHeader:     "Bearer good-token",
			csrfHeader:     "csrf-1",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "mutating request without token",
			method:         http.MethodPost,
			authHeader:     "Bearer good-token",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "mutating request with wrong token",
			method:         http.MethodDelete,
			authHeader:     "Bearer good-token",
			csrfHeader:     "csrf-2",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "safe method is not checked",
			method:         http.MethodGet,
			authHeader:     "Bearer good-token",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "no session is not checked",
			method:         http.MethodPost,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := setupTestLogger()
			handler := OptionalSession(logger, newMockAuthenticator())(CSRF(logger)(sessionEcho(t)))

			req := httptest.NewRequest(tt.method, "/logout", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.csrfHeader != "" {
				req.Header.Set("X-CSRF-Token", tt.csrfHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusForbidden {
				assert.Contains(t, w.Body.String(), "invalid CSRF token")
			}
		})
	}
}

func TestIsMutating(t *testing.T) {
	for method, want := range map[string]bool{
		http.MethodGet:     false,
		http.MethodHead:    false,
		http.MethodOptions: false,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
	} {
		assert.Equal(t, want, isMutating(method), method)
	}
}
