package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/tokens"
	"github.com/iudanet/luxta/pkg/api"
)

// TokenService выдает и гасит токены награды
type TokenService interface {
	Issue(ctx context.Context, userID, linkID string) (*tokens.IssueResult, error)
	Redeem(ctx context.Context, tokenID, userID string) (*tokens.Redemption, error)
	Get(ctx context.Context, tokenID, userID string) (*models.Token, error)
}

// TokenHandler обрабатывает запросы токенов
type TokenHandler struct {
	logger  *slog.Logger
	service TokenService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(logger *slog.Logger, service TokenService) *TokenHandler {
	return &TokenHandler{
		logger:  logger,
		service: service,
	}
}

// Issue обрабатывает POST /api/v1/tokens
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	var req api.IssueTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest, api.CodeValidation)
		return
	}

	res, err := h.service.Issue(ctx, user.ID, req.LinkID)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "issue token", err)
		return
	}
	if res.QuotaExceeded {
		sendError(w, h.logger, "daily token quota exceeded for this link", http.StatusTooManyRequests, api.CodeQuotaExceeded)
		return
	}

	resp := api.IssueTokenResponse{
		Token:      res.Token,
		CountToday: res.CountToday,
		ExpiresAt:  res.ExpiresAt,
	}

	sendJSON(w, h.logger, resp, http.StatusCreated)
}

// Redeem обрабатывает POST /api/v1/tokens/{token}/redeem
func (h *TokenHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	red, err := h.service.Redeem(ctx, r.PathValue("token"), user.ID)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "redeem token", err)
		return
	}

	resp := api.RedeemResponse{
		CoinsAdded: red.CoinsAdded,
		XPAdded:    red.XPAdded,
		Coins:      red.Balance.Coins,
		XP:         red.Balance.XP,
		Level:      red.Balance.Level,
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

// Status обрабатывает GET /api/v1/tokens/{token}
func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	t, err := h.service.Get(ctx, r.PathValue("token"), user.ID)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "get token", err)
		return
	}

	resp := api.TokenStatusResponse{
		Token:     t.ID,
		LinkID:    t.LinkID,
		State:     string(t.State()),
		Used:      t.Used,
		StartAt:   t.StartAt,
		ExpiresAt: t.ExpiresAt,
		UsedAt:    t.UsedAt,
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}
