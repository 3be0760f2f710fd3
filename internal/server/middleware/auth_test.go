package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/nodekeeper/internal/server/handlers"
	"github.com/iudanet/nodekeeper/internal/server/jwt"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testHandler checks that account_id reached the context
func testHandler(t *testing.T, expectedAccountID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := handlers.GetAccountID(r.Context())
		require.True(t, ok, "account_id should be in context")
		assert.Equal(t, expectedAccountID, accountID)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	tokens := jwt.NewService("test-secret-key", time.Hour)
	token, _, err := tokens.Issue("acc-123")
	require.NoError(t, err)

	wrappedHandler := AuthMiddleware(setupTestLogger(), tokens)(testHandler(t, "acc-123"))

	for _, scheme := range []string{"Bearer ", "bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/node/info", nil)
		req.Header.Set("Authorization", scheme+token)

		w := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tokens := jwt.NewService("test-secret-key", time.Hour)
	otherTokens := jwt.NewService("another-secret", time.Hour)
	foreign, _, err := otherTokens.Issue("acc-123")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	})
	wrappedHandler := AuthMiddleware(setupTestLogger(), tokens)(handler)

	tests := []struct {
		name   string
		header string
		errMsg string
	}{
		{name: "no header", header: "", errMsg: "missing token"},
		{name: "no Bearer prefix", header: "token123", errMsg: "invalid token format"},
		{name: "wrong prefix", header: "Basic token123", errMsg: "invalid token format"},
		{name: "only Bearer", header: "Bearer", errMsg: "invalid token format"},
		{name: "Bearer with blank token", header: "Bearer   ", errMsg: "invalid token format"},
		{name: "garbage token", header: "Bearer not.a.jwt", errMsg: "invalid or expired token"},
		{name: "token signed with other secret", header: "Bearer " + foreign, errMsg: "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/node/info", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			wrappedHandler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.errMsg)
		})
	}
}

func newBufLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
