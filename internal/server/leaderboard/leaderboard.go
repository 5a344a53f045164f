package leaderboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/validation"
)

const (
	// DefaultLimit размер таблицы, если limit не указан
	DefaultLimit = 10
	// MaxLimit ограничивает размер ответа Top
	MaxLimit = 100
)

// Прерывают Update без записи
var (
	errAlreadyJoined = errors.New("already joined")
	errNotJoined     = errors.New("not joined")
	errNotRecord     = errors.New("not a record")
)

// ScoreResult результат отправки счета
type ScoreResult struct {
	Accepted  bool
	NewRecord bool
}

// JoinResult результат входа в игру
type JoinResult struct {
	Entry *models.LeaderboardEntry
	// Charged false при повторном входе
	Charged bool
}

// Board хранит лучшие результаты пользователей по играм.
// Отправка счета требует записи участия, созданной через Join
type Board struct {
	logger    *slog.Logger
	store     storage.Store
	ledger    *ledger.Ledger
	clock     clock.Clock
	entryCost int64
}

// New creates a new leaderboard
func New(logger *slog.Logger, store storage.Store, l *ledger.Ledger, clk clock.Clock, entryCost int64) *Board {
	return &Board{
		logger:    logger,
		store:     store,
		ledger:    l,
		clock:     clk,
		entryCost: entryCost,
	}
}

// Join создает запись участия с нулевым счетом и списывает стоимость входа.
// Повторный вход бесплатный и возвращает существующую запись
func (b *Board) Join(ctx context.Context, userID, game string) (*JoinResult, error) {
	if err := validation.ValidateGame(game); err != nil {
		return nil, err
	}

	key := storage.LeaderboardKey(game, userID)
	now := b.clock.Now()

	var existing *models.LeaderboardEntry
	entry, err := storage.UpdateJSON(ctx, b.store, key, func(e *models.LeaderboardEntry) (*models.LeaderboardEntry, error) {
		if e != nil {
			existing = e
			return nil, errAlreadyJoined
		}
		return &models.LeaderboardEntry{
			Game:      game,
			UserID:    userID,
			JoinedAt:  now,
			UpdatedAt: now,
		}, nil
	})
	if errors.Is(err, errAlreadyJoined) {
		return &JoinResult{Entry: existing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create leaderboard entry: %w", err)
	}

	// Запись создана этим вызовом, поэтому списание выполняется ровно один раз
	if _, err := b.ledger.SpendCoins(ctx, userID, b.entryCost); err != nil {
		if rerr := b.store.Remove(ctx, key); rerr != nil {
			b.logger.ErrorContext(ctx, "failed to roll back leaderboard entry",
				slog.String("user_id", userID),
				slog.String("game", game),
				slog.Any("error", rerr))
		}
		return nil, err
	}

	b.logger.InfoContext(ctx, "user joined game",
		slog.String("user_id", userID),
		slog.String("game", game),
		slog.Int64("cost", b.entryCost))

	return &JoinResult{Entry: entry, Charged: true}, nil
}

// SubmitScore обновляет лучший счет, если score строго больше текущего.
// Без записи участия счет не принимается (Accepted=false)
func (b *Board) SubmitScore(ctx context.Context, userID, game string, score int64) (*ScoreResult, error) {
	if err := validation.ValidateGame(game); err != nil {
		return nil, err
	}
	if err := validation.ValidateScore(&score); err != nil {
		return nil, err
	}

	now := b.clock.Now()
	result := &ScoreResult{}

	_, err := storage.UpdateJSON(ctx, b.store, storage.LeaderboardKey(game, userID), func(e *models.LeaderboardEntry) (*models.LeaderboardEntry, error) {
		*result = ScoreResult{}
		if e == nil {
			return nil, errNotJoined
		}
		result.Accepted = true
		if score <= e.BestScore {
			return nil, errNotRecord
		}
		result.NewRecord = true
		e.BestScore = score
		e.UpdatedAt = now
		return e, nil
	})
	switch {
	case errors.Is(err, errNotJoined):
		b.logger.InfoContext(ctx, "score rejected without participation",
			slog.String("user_id", userID),
			slog.String("game", game))
		return result, nil
	case errors.Is(err, errNotRecord):
		return result, nil
	case err != nil:
		return nil, fmt.Errorf("failed to submit score: %w", err)
	}

	return result, nil
}

// Top возвращает лучшие записи игры: по убыванию счета, при равенстве
// раньше достигнутый результат выше
func (b *Board) Top(ctx context.Context, game string, limit int) ([]*models.LeaderboardEntry, error) {
	if err := validation.ValidateGame(game); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	var entries []*models.LeaderboardEntry
	err := storage.ScanJSON(ctx, b.store, storage.LeaderboardPrefix(game), func(_ string, e *models.LeaderboardEntry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard: %w", err)
	}

	slices.SortFunc(entries, func(x, y *models.LeaderboardEntry) int {
		if c := cmp.Compare(y.BestScore, x.BestScore); c != 0 {
			return c
		}
		if c := x.UpdatedAt.Compare(y.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.UserID, y.UserID)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
