package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/auth"
	"github.com/iudanet/luxta/pkg/api"
)

// Registrar создает учетные записи
type Registrar interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
}

// SessionService управляет сессиями и профилем
type SessionService interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Logout(ctx context.Context, userID string) error
	AcceptRules(ctx context.Context, userID string) (*models.User, error)
}

// AuthHandler обрабатывает запросы авторизации и профиля
type AuthHandler struct {
	logger    *slog.Logger
	registrar Registrar
	sessions  SessionService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, registrar Registrar, sessions SessionService) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		registrar: registrar,
		sessions:  sessions,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request")
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest, api.CodeValidation)
		return
	}

	user, err := h.registrar.Register(ctx, req.Email, req.Password)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "register", err)
		return
	}

	resp := api.RegisterResponse{
		UserID:  user.ID,
		Message: "User registered successfully",
	}

	sendJSON(w, h.logger, resp, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация пользователя, замороженный аккаунт получает 403
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request")
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest, api.CodeValidation)
		return
	}

	sess, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "login", err)
		return
	}

	resp := api.TokenResponse{
		AccessToken: sess.AccessToken,
		UserID:      sess.User.ID,
		ExpiresIn:   sess.ExpiresIn,
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Завершает текущую сессию
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	if err := h.sessions.Logout(ctx, user.ID); err != nil {
		sendDomainError(ctx, w, h.logger, "logout", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUser(r.Context())
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	sendJSON(w, h.logger, newProfile(user), http.StatusOK)
}

// AcceptRules обрабатывает POST /api/v1/me/rules
func (h *AuthHandler) AcceptRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	updated, err := h.sessions.AcceptRules(ctx, user.ID)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "accept rules", err)
		return
	}

	sendJSON(w, h.logger, newProfile(updated), http.StatusOK)
}

func newProfile(u *models.User) api.ProfileResponse {
	return api.ProfileResponse{
		UserID:        u.ID,
		Email:         u.Email,
		Coins:         u.Coins,
		XP:            u.XP,
		Level:         u.Level,
		RulesAccepted: u.RulesAccepted,
		Frozen:        u.Frozen(),
		CreatedAt:     u.CreatedAt,
	}
}
