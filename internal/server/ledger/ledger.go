package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/progression"
	"github.com/iudanet/luxta/internal/server/storage"
)

var (
	// ErrUserNotFound indicates that user record doesn't exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientFunds indicates that balance is lower than the cost
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates negative cost or reward amount
	ErrInvalidAmount = errors.New("invalid amount")
)

// RewardPolicy фиксированная награда за погашенный токен
type RewardPolicy struct {
	Coins int64
	XP    int64
}

// Balance снимок баланса и прогресса пользователя
type Balance struct {
	Coins int64
	XP    int64
	Level int
}

// Ledger применяет изменения монет и опыта к записи пользователя.
// Каждое изменение выполняется одним атомарным Update ключа пользователя
type Ledger struct {
	logger *slog.Logger
	store  storage.Store
}

// New creates a new ledger
func New(logger *slog.Logger, store storage.Store) *Ledger {
	return &Ledger{
		logger: logger,
		store:  store,
	}
}

// AddCoins атомарно прибавляет delta к балансу и возвращает новый баланс
func (l *Ledger) AddCoins(ctx context.Context, userID string, delta int64) (int64, error) {
	user, err := l.update(ctx, userID, func(u *models.User) error {
		u.Coins += delta
		return nil
	})
	if err != nil {
		return 0, err
	}

	return user.Coins, nil
}

// SpendCoins списывает cost монет. Проверка баланса выполняется внутри
// той же транзакции, что и списание, поэтому баланс не уходит в минус
// при конкурентных списаниях
func (l *Ledger) SpendCoins(ctx context.Context, userID string, cost int64) (int64, error) {
	if cost < 0 {
		return 0, ErrInvalidAmount
	}

	user, err := l.update(ctx, userID, func(u *models.User) error {
		if u.Coins < cost {
			return ErrInsufficientFunds
		}
		u.Coins -= cost
		return nil
	})
	if err != nil {
		return 0, err
	}

	return user.Coins, nil
}

// Reward начисляет монеты и опыт по политике одним обновлением записи
func (l *Ledger) Reward(ctx context.Context, userID string, policy RewardPolicy) (*Balance, error) {
	if policy.Coins < 0 || policy.XP < 0 {
		return nil, ErrInvalidAmount
	}

	user, err := l.update(ctx, userID, func(u *models.User) error {
		u.Coins += policy.Coins
		u.Level, u.XP = progression.ApplyXP(u.Level, u.XP, policy.XP)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return balanceOf(user), nil
}

// Freeze безусловно перезаписывает баланс значением заморозки,
// перекрывая любые конкурентные начисления
func (l *Ledger) Freeze(ctx context.Context, userID string) error {
	_, err := l.update(ctx, userID, func(u *models.User) error {
		u.Coins = models.FrozenCoins
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.WarnContext(ctx, "account frozen", slog.String("user_id", userID))
	return nil
}

// Balance возвращает текущий баланс пользователя
func (l *Ledger) Balance(ctx context.Context, userID string) (*Balance, error) {
	user, err := storage.GetJSON[models.User](ctx, l.store, storage.UserKey(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return balanceOf(user), nil
}

func (l *Ledger) update(ctx context.Context, userID string, mutate func(u *models.User) error) (*models.User, error) {
	user, err := storage.UpdateJSON(ctx, l.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		if err := mutate(u); err != nil {
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func balanceOf(u *models.User) *Balance {
	return &Balance{
		Coins: u.Coins,
		XP:    u.XP,
		Level: u.Level,
	}
}
