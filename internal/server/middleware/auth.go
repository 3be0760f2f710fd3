package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/nodekeeper/internal/server/handlers"
)

// AuthMiddleware создает middleware для проверки токена сессии.
// account_id из токена кладется в контекст запроса.
func AuthMiddleware(logger *slog.Logger, tokens handlers.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "missing Authorization header", slog.String("path", r.URL.Path))
				writeError(w, "missing token", http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, found := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.WarnContext(r.Context(), "invalid Authorization header format")
				writeError(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			accountID, err := tokens.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid session token", slog.Any("error", err))
				writeError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			logger.DebugContext(r.Context(), "account authenticated", slog.String("account_id", accountID))

			next.ServeHTTP(w, r.WithContext(handlers.WithAccountID(r.Context(), accountID)))
		})
	}
}
