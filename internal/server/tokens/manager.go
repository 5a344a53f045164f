package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/crypto"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/telemetry"
	"github.com/iudanet/luxta/internal/validation"
)

// maxIDAttempts попыток сгенерировать незанятый идентификатор
const maxIDAttempts = 3

// Config политика выдачи и погашения токенов
type Config struct {
	Location   *time.Location      // зона календарного дня для счетчиков
	Reward     ledger.RewardPolicy // награда за погашение
	Validity   time.Duration       // expiresAt = startAt + Validity
	Retention  time.Duration       // deleteAt = startAt + Retention
	MinDwell   time.Duration       // минимальное время между выдачей и погашением
	DailyQuota int                 // токенов на пару (user, link) в день
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		DailyQuota: 20,
		Validity:   time.Hour,
		Retention:  24 * time.Hour,
		MinDwell:   15 * time.Second,
		Location:   time.UTC,
		Reward:     ledger.RewardPolicy{Coins: 30, XP: 5},
	}
}

// IssueResult результат выдачи токена.
// QuotaExceeded это нормальный отрицательный ответ, а не ошибка
type IssueResult struct {
	ExpiresAt     time.Time
	Token         string
	CountToday    int
	QuotaExceeded bool
}

// Redemption результат успешного погашения
type Redemption struct {
	Balance    *ledger.Balance
	CoinsAdded int64
	XPAdded    int64
}

// Manager выдает, проверяет и гасит одноразовые токены награды
type Manager struct {
	logger *slog.Logger
	store  storage.Store
	ledger *ledger.Ledger
	clock  clock.Clock
	tracer trace.Tracer
	newID  func() (string, error)
	cfg    Config
}

// NewManager creates a new token manager
func NewManager(logger *slog.Logger, store storage.Store, l *ledger.Ledger, clk clock.Clock, cfg Config) *Manager {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{
		logger: logger,
		store:  store,
		ledger: l,
		clock:  clk,
		tracer: telemetry.Tracer(),
		newID:  crypto.NewID,
		cfg:    cfg,
	}
}

// Issue выдает новый токен для пары (userID, linkID).
// Счетчик ссылки резервируется атомарно до создания токена, поэтому
// конкурентные выдачи не превышают квоту
func (m *Manager) Issue(ctx context.Context, userID, linkID string) (_ *IssueResult, err error) {
	ctx, span := m.tracer.Start(ctx, "tokens.Issue", trace.WithAttributes(
		attribute.String("link_id", linkID),
	))
	defer func() { telemetry.End(span, err) }()

	if err := validation.ValidateLinkID(linkID); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	day := clock.Day(now, m.cfg.Location)

	count, err := m.reserve(ctx, userID, linkID, day)
	if err != nil {
		if errors.Is(err, errQuotaExceeded) {
			m.logger.InfoContext(ctx, "daily quota exceeded",
				slog.String("user_id", userID),
				slog.String("link_id", linkID))
			return &IssueResult{CountToday: count, QuotaExceeded: true}, nil
		}
		return nil, err
	}

	expiresAt := now.Add(m.cfg.Validity)
	token := &models.Token{
		UserID:    userID,
		LinkID:    linkID,
		StartAt:   now,
		ExpiresAt: &expiresAt,
		DeleteAt:  now.Add(m.cfg.Retention),
	}

	if err := m.create(ctx, token); err != nil {
		// Возвращаем зарезервированный слот, токен не создан
		if rerr := m.release(ctx, userID, linkID, day); rerr != nil {
			m.logger.ErrorContext(ctx, "failed to release link counter",
				slog.String("user_id", userID),
				slog.String("link_id", linkID),
				slog.Any("error", rerr))
		}
		return nil, err
	}

	m.logger.InfoContext(ctx, "token issued",
		slog.String("user_id", userID),
		slog.String("link_id", linkID),
		slog.Int("count_today", count))

	return &IssueResult{
		Token:      token.ID,
		CountToday: count,
		ExpiresAt:  expiresAt,
	}, nil
}

// Redeem гасит токен и начисляет награду.
//
// Токен сначала захватывается атомарным CAS (issued -> claimed), в том же
// замыкании проверяются владелец, повторное использование, срок и время
// задержки. Награду начисляет только захвативший вызов, последней записью
// токен помечается used. Падение между захватом и пометкой теряет награду,
// но не допускает повторной выплаты.
func (m *Manager) Redeem(ctx context.Context, tokenID, userID string) (_ *Redemption, err error) {
	ctx, span := m.tracer.Start(ctx, "tokens.Redeem")
	defer func() { telemetry.End(span, err) }()

	if validation.ValidateTokenID(tokenID) != nil {
		return nil, ErrInvalidToken
	}

	now := m.clock.Now()

	var fraud bool
	claimed, err := storage.UpdateJSON(ctx, m.store, storage.TokenKey(tokenID), func(t *models.Token) (*models.Token, error) {
		fraud = false
		if t == nil || t.UserID != userID {
			return nil, ErrInvalidToken
		}
		if t.State() != models.TokenIssued {
			return nil, ErrAlreadyUsed
		}
		if t.Expired(now) {
			return nil, ErrExpired
		}

		t.ClaimedAt = &now
		if now.Sub(t.StartAt) < m.cfg.MinDwell {
			// Погашение быстрее человека: токен сгорает сразу
			fraud = true
			t.Used = true
			t.UsedAt = &now
		}
		return t, nil
	})
	if err != nil {
		if isRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim token: %w", err)
	}

	if fraud {
		m.logger.WarnContext(ctx, "redemption faster than dwell time, freezing account",
			slog.String("user_id", userID),
			slog.String("link_id", claimed.LinkID),
			slog.Duration("dwell", now.Sub(claimed.StartAt)))

		if err := m.ledger.Freeze(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to freeze account: %w", err)
		}
		return nil, ErrFraudDetected
	}

	balance, err := m.ledger.Reward(ctx, userID, m.cfg.Reward)
	if err != nil {
		m.logger.ErrorContext(ctx, "reward failed after token claim",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to apply reward: %w", err)
	}

	day := clock.Day(now, m.cfg.Location)
	if err := m.touchCounter(ctx, userID, claimed.LinkID, day); err != nil {
		return nil, err
	}

	// Пометка used всегда последняя запись
	_, err = storage.UpdateJSON(ctx, m.store, storage.TokenKey(tokenID), func(t *models.Token) (*models.Token, error) {
		if t == nil {
			// Sweeper удалил запись раньше пометки
			return nil, ErrInvalidToken
		}
		t.Used = true
		t.UsedAt = &now
		return t, nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark token used: %w", err)
	}

	m.logger.InfoContext(ctx, "token redeemed",
		slog.String("user_id", userID),
		slog.String("link_id", claimed.LinkID),
		slog.Int64("coins", balance.Coins),
		slog.Int("level", balance.Level))

	return &Redemption{
		CoinsAdded: m.cfg.Reward.Coins,
		XPAdded:    m.cfg.Reward.XP,
		Balance:    balance,
	}, nil
}

// Get возвращает токен пользователя
func (m *Manager) Get(ctx context.Context, tokenID, userID string) (*models.Token, error) {
	if validation.ValidateTokenID(tokenID) != nil {
		return nil, ErrInvalidToken
	}

	t, err := storage.GetJSON[models.Token](ctx, m.store, storage.TokenKey(tokenID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if t.UserID != userID {
		return nil, ErrInvalidToken
	}

	return t, nil
}

// reserve атомарно проверяет квоту и увеличивает счетчик ссылки
func (m *Manager) reserve(ctx context.Context, userID, linkID, day string) (int, error) {
	var count int

	_, err := storage.UpdateJSON(ctx, m.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		if !u.RulesAccepted {
			return nil, ErrRulesNotAccepted
		}
		if u.Links == nil {
			u.Links = make(map[string]*models.LinkUsage)
		}

		usage := u.Links[linkID]
		count = usage.CountOn(day)
		if count >= m.cfg.DailyQuota {
			return nil, errQuotaExceeded
		}

		if usage == nil {
			usage = &models.LinkUsage{}
			u.Links[linkID] = usage
		}
		count = usage.Increment(day)
		return u, nil
	})
	if err != nil {
		if errors.Is(err, errQuotaExceeded) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRulesNotAccepted) {
			return count, err
		}
		return 0, fmt.Errorf("failed to reserve link counter: %w", err)
	}

	return count, nil
}

// release откатывает резерв, сделанный reserve в тот же день
func (m *Manager) release(ctx context.Context, userID, linkID, day string) error {
	_, err := storage.UpdateJSON(ctx, m.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		if usage := u.Links[linkID]; usage != nil && usage.Date == day && usage.Count > 0 {
			usage.Count--
		}
		return u, nil
	})
	return err
}

// touchCounter обновляет счетчик ссылки после погашения.
// Счетчик не превышает дневную квоту
func (m *Manager) touchCounter(ctx context.Context, userID, linkID, day string) error {
	_, err := storage.UpdateJSON(ctx, m.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		if u.Links == nil {
			u.Links = make(map[string]*models.LinkUsage)
		}

		usage := u.Links[linkID]
		if usage == nil {
			usage = &models.LinkUsage{}
			u.Links[linkID] = usage
		}
		if usage.CountOn(day) < m.cfg.DailyQuota {
			usage.Increment(day)
		}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to update link counter: %w", err)
	}
	return nil
}

// create сохраняет токен под новым случайным идентификатором
func (m *Manager) create(ctx context.Context, token *models.Token) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := m.newID()
		if err != nil {
			return fmt.Errorf("failed to generate token id: %w", err)
		}
		token.ID = id

		_, err = storage.UpdateJSON(ctx, m.store, storage.TokenKey(id), func(existing *models.Token) (*models.Token, error) {
			if existing != nil {
				return nil, errIDCollision
			}
			return token, nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, errIDCollision) {
			return fmt.Errorf("failed to save token: %w", err)
		}
	}

	return fmt.Errorf("failed to save token: %w", errIDCollision)
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrExpired)
}
