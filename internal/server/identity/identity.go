// Package identity проверяет учетные данные и выдает стабильный user id.
// Ядро наград потребляет только этот id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/crypto"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/validation"
)

var (
	// ErrEmailTaken indicates that identity with this email already exists
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials indicates unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Provider по email и паролю возвращает user id
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// Local хранит email/пароль в том же Store, что и остальные записи
type Local struct {
	logger *slog.Logger
	store  storage.Store
	clock  clock.Clock
}

var _ Provider = (*Local)(nil)

// NewLocal creates a new local identity provider
func NewLocal(logger *slog.Logger, store storage.Store, clk clock.Clock) *Local {
	return &Local{
		logger: logger,
		store:  store,
		clock:  clk,
	}
}

// Register создает identity и пустой профиль пользователя
func (l *Local) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, salt, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := l.clock.Now()
	ident := &models.Identity{
		Email:        email,
		UserID:       uuid.New().String(),
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    now,
	}

	key := storage.IdentityKey(email)
	_, err = storage.UpdateJSON(ctx, l.store, key, func(existing *models.Identity) (*models.Identity, error) {
		if existing != nil {
			return nil, ErrEmailTaken
		}
		return ident, nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	user := &models.User{
		ID:        ident.UserID,
		Email:     email,
		CreatedAt: now,
	}
	if err := storage.SetJSON(ctx, l.store, storage.UserKey(user.ID), user); err != nil {
		if rerr := l.store.Remove(ctx, key); rerr != nil {
			l.logger.ErrorContext(ctx, "failed to roll back identity", slog.Any("error", rerr))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	l.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))

	return user, nil
}

// Authenticate проверяет пароль и возвращает user id
func (l *Local) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	ident, err := storage.GetJSON[models.Identity](ctx, l.store, storage.IdentityKey(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to get identity: %w", err)
	}

	ok, err := crypto.VerifyPassword(password, ident.PasswordHash, ident.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return ident.UserID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
