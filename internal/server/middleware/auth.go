package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/auth"
	"github.com/iudanet/luxta/internal/server/handlers"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/pkg/api"
)

// Authorizer проверяет access token и возвращает текущего пользователя
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*models.User, error)
}

// AuthMiddleware создает middleware для проверки JWT токена.
// Пользователь кладется в контекст, замороженный аккаунт получает 403
func AuthMiddleware(logger *slog.Logger, authorizer Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(ctx, "Missing Authorization header")
				handlers.SendError(w, logger, "missing token", http.StatusUnauthorized, "")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "Invalid Authorization header format")
				handlers.SendError(w, logger, "invalid token format", http.StatusUnauthorized, "")
				return
			}

			user, err := authorizer.Authorize(ctx, strings.TrimSpace(token))
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrAccountFrozen):
					logger.WarnContext(ctx, "Frozen account rejected", slog.Any("error", err))
					handlers.SendError(w, logger, "account frozen", http.StatusForbidden, api.CodeAccountFrozen)
				case errors.Is(err, storage.ErrUnavailable):
					logger.ErrorContext(ctx, "Authorization failed", slog.Any("error", err))
					handlers.SendError(w, logger, "storage temporarily unavailable", http.StatusServiceUnavailable, api.CodeStoreUnavailable)
				default:
					logger.WarnContext(ctx, "Invalid access token", slog.Any("error", err))
					handlers.SendError(w, logger, "invalid token", http.StatusUnauthorized, "")
				}
				return
			}

			logger.DebugContext(ctx, "User authenticated", slog.String("user_id", user.ID))

			next.ServeHTTP(w, r.WithContext(handlers.WithUser(ctx, user)))
		})
	}
}
