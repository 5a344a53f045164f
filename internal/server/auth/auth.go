package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/crypto"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/identity"
	"github.com/iudanet/luxta/internal/server/jwt"
	"github.com/iudanet/luxta/internal/server/storage"
)

var (
	// ErrAccountFrozen indicates that account was frozen for fraud
	ErrAccountFrozen = errors.New("account frozen")

	// ErrSessionRevoked indicates that access token belongs to an older session
	ErrSessionRevoked = errors.New("session revoked")

	// ErrUserNotFound indicates that user record doesn't exist
	ErrUserNotFound = errors.New("user not found")
)

// Session результат успешного входа
type Session struct {
	User        *models.User
	AccessToken string
	ExpiresIn   int64
}

// Service управляет login-сессиями.
// У пользователя одна активная сессия, новый вход отзывает предыдущую
type Service struct {
	logger   *slog.Logger
	store    storage.Store
	provider identity.Provider
	tokens   *jwt.Service
	clock    clock.Clock
}

// NewService creates a new auth service
func NewService(logger *slog.Logger, store storage.Store, provider identity.Provider, tokens *jwt.Service, clk clock.Clock) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		provider: provider,
		tokens:   tokens,
		clock:    clk,
	}
}

// Login проверяет учетные данные, создает новую сессию и выдает access token.
// Замороженный аккаунт войти не может
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	userID, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	sessionID, err := crypto.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := s.clock.Now()
	user, err := storage.UpdateJSON(ctx, s.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			// Identity есть, а профиля нет: создаем пустой
			u = &models.User{ID: userID, CreatedAt: now}
		}
		if u.Frozen() {
			return nil, ErrAccountFrozen
		}
		u.Session = &models.Session{ID: sessionID, CreatedAt: now}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountFrozen) {
			s.logger.WarnContext(ctx, "login rejected: account frozen", slog.String("user_id", userID))
			return nil, err
		}
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	accessToken, expiresIn, err := s.tokens.Generate(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))

	return &Session{
		User:        user,
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}, nil
}

// Authorize проверяет access token и возвращает текущего пользователя.
// Токен старой сессии и замороженный аккаунт отклоняются
func (s *Service) Authorize(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Validate(accessToken)
	if err != nil {
		return nil, err
	}

	user, err := storage.GetJSON[models.User](ctx, s.store, storage.UserKey(claims.UserID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Session == nil || user.Session.ID != claims.SessionID {
		return nil, ErrSessionRevoked
	}
	if user.Frozen() {
		return nil, ErrAccountFrozen
	}

	return user, nil
}

// Logout завершает текущую сессию пользователя
func (s *Service) Logout(ctx context.Context, userID string) error {
	_, err := storage.UpdateJSON(ctx, s.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		u.Session = nil
		return u, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to end session: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// AcceptRules отмечает, что пользователь принял правила. Повторный вызов ничего не меняет
func (s *Service) AcceptRules(ctx context.Context, userID string) (*models.User, error) {
	user, err := storage.UpdateJSON(ctx, s.store, storage.UserKey(userID), func(u *models.User) (*models.User, error) {
		if u == nil {
			return nil, ErrUserNotFound
		}
		u.RulesAccepted = true
		return u, nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to accept rules: %w", err)
	}

	return user, nil
}
