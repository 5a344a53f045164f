package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/leaderboard"
	"github.com/iudanet/luxta/internal/validation"
	"github.com/iudanet/luxta/pkg/api"
)

// Board таблица рекордов игр
type Board interface {
	Join(ctx context.Context, userID, game string) (*leaderboard.JoinResult, error)
	SubmitScore(ctx context.Context, userID, game string, score int64) (*leaderboard.ScoreResult, error)
	Top(ctx context.Context, game string, limit int) ([]*models.LeaderboardEntry, error)
}

// GameHandler обрабатывает запросы игр и таблицы рекордов
type GameHandler struct {
	logger *slog.Logger
	board  Board
}

// NewGameHandler creates a new game handler
func NewGameHandler(logger *slog.Logger, board Board) *GameHandler {
	return &GameHandler{
		logger: logger,
		board:  board,
	}
}

// Join обрабатывает POST /api/v1/games/{game}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	res, err := h.board.Join(ctx, user.ID, r.PathValue("game"))
	if err != nil {
		sendDomainError(ctx, w, h.logger, "join game", err)
		return
	}

	status := http.StatusOK
	if res.Charged {
		status = http.StatusCreated
	}

	sendJSON(w, h.logger, api.JoinGameResponse{
		Game:      res.Entry.Game,
		BestScore: res.Entry.BestScore,
		Charged:   res.Charged,
	}, status)
}

// SubmitScore обрабатывает POST /api/v1/games/{game}/scores
func (h *GameHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := GetUser(ctx)
	if !ok {
		sendError(w, h.logger, "unauthorized", http.StatusUnauthorized, "")
		return
	}

	var req api.SubmitScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, h.logger, "invalid request body", http.StatusBadRequest, api.CodeValidation)
		return
	}
	if err := validation.ValidateScore(req.Score); err != nil {
		sendDomainError(ctx, w, h.logger, "submit score", err)
		return
	}

	res, err := h.board.SubmitScore(ctx, user.ID, r.PathValue("game"), *req.Score)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "submit score", err)
		return
	}

	sendJSON(w, h.logger, api.SubmitScoreResponse{
		Accepted:  res.Accepted,
		NewRecord: res.NewRecord,
	}, http.StatusOK)
}

// Leaderboard обрабатывает GET /api/v1/games/{game}/leaderboard?limit=N
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game := r.PathValue("game")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(w, h.logger, "limit must be a non-negative integer", http.StatusBadRequest, api.CodeValidation)
			return
		}
		limit = n
	}

	entries, err := h.board.Top(ctx, game, limit)
	if err != nil {
		sendDomainError(ctx, w, h.logger, "leaderboard", err)
		return
	}

	resp := api.LeaderboardResponse{
		Game:    game,
		Entries: make([]api.LeaderboardEntry, 0, len(entries)),
	}
	for i, e := range entries {
		resp.Entries = append(resp.Entries, api.LeaderboardEntry{
			Rank:      i + 1,
			UserID:    e.UserID,
			BestScore: e.BestScore,
			UpdatedAt: e.UpdatedAt,
		})
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}
