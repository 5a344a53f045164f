package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/auth"
	"github.com/iudanet/luxta/internal/server/identity"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/tokens"
	"github.com/iudanet/luxta/internal/validation"
	"github.com/iudanet/luxta/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

// UserKey ключ для хранения текущего пользователя в контексте
const UserKey contextKey = "user"

// WithUser кладет пользователя в контекст запроса (вызывается AuthMiddleware)
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser извлекает пользователя из контекста запроса
func GetUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

// sendJSON отправляет JSON ответ
func sendJSON(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int, code string) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	}
	sendJSON(w, logger, resp, statusCode)
}

// SendError пишет ответ с ошибкой для middleware
func SendError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int, code string) {
	sendError(w, logger, message, statusCode, code)
}

// errorStatus сопоставляет доменную ошибку HTTP статусу и коду
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest, api.CodeValidation
	case errors.Is(err, tokens.ErrInvalidToken):
		return http.StatusNotFound, api.CodeInvalidToken
	case errors.Is(err, tokens.ErrExpired):
		return http.StatusGone, api.CodeExpired
	case errors.Is(err, tokens.ErrAlreadyUsed):
		return http.StatusConflict, api.CodeAlreadyUsed
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired, api.CodeInsufficientFunds
	case errors.Is(err, tokens.ErrFraudDetected):
		return http.StatusForbidden, api.CodeFraudDetected
	case errors.Is(err, auth.ErrAccountFrozen):
		return http.StatusForbidden, api.CodeAccountFrozen
	case errors.Is(err, tokens.ErrRulesNotAccepted):
		return http.StatusForbidden, api.CodeRulesNotAccepted
	case errors.Is(err, identity.ErrEmailTaken):
		return http.StatusConflict, ""
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, ""
	case errors.Is(err, ledger.ErrUserNotFound), errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, storage.ErrConflict):
		return http.StatusServiceUnavailable, api.CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, ""
	}
}

// sendDomainError логирует и отправляет доменную ошибку.
// Сообщение внутренней ошибки наружу не отдается
func sendDomainError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, code := errorStatus(err)

	message := err.Error()
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
		message = "internal server error"
		if status == http.StatusServiceUnavailable {
			message = "storage temporarily unavailable"
		}
	default:
		logger.WarnContext(ctx, op+" rejected", slog.Any("error", err))
	}

	sendError(w, logger, message, status, code)
}

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 16

// decodeJSON разбирает тело запроса. Неизвестные поля отклоняются
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &validation.Error{Field: "body", Message: "invalid request body"}
	}
	return nil
}
