package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/identity"
	"github.com/iudanet/luxta/internal/server/jwt"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/memory"
)

// mockProvider для тестирования
type mockProvider struct {
	users map[string]string // email -> uid
	err   error
}

func (m *mockProvider) Authenticate(_ context.Context, email, password string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	uid, ok := m.users[email]
	if !ok || password != "secret-pass" {
		return "", identity.ErrInvalidCredentials
	}
	return uid, nil
}

func setupService(t *testing.T) (*Service, storage.Store, *clock.Manual) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	provider := &mockProvider{users: map[string]string{"a@example.com": "u1", "new@example.com": "u2"}}
	tokens := jwt.NewService("test-secret", time.Hour, clk)
	return NewService(logger, store, provider, tokens, clk), store, clk
}

func putUser(t *testing.T, store storage.Store, u *models.User) {
	t.Helper()
	require.NoError(t, storage.SetJSON(context.Background(), store, storage.UserKey(u.ID), u))
}

func TestService_LoginAuthorize(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupService(t)
	putUser(t, store, &models.User{ID: "u1", Coins: 40})

	sess, err := svc.Login(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, int64(3600), sess.ExpiresIn)
	require.NotNil(t, sess.User.Session)
	assert.Len(t, sess.User.Session.ID, 32)

	user, err := svc.Authorize(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, int64(40), user.Coins)
}

func TestService_Login_CreatesMissingProfile(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupService(t)

	sess, err := svc.Login(ctx, "new@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u2", sess.User.ID)

	u, err := storage.GetJSON[models.User](ctx, store, storage.UserKey("u2"))
	require.NoError(t, err)
	assert.NotNil(t, u.Session)
}

func TestService_Login_Errors(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupService(t)
	putUser(t, store, &models.User{ID: "u1", Coins: models.FrozenCoins})

	_, err := svc.Login(ctx, "a@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrAccountFrozen)

	_, err = svc.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	svc.provider = &mockProvider{err: errors.New("provider down")}
	_, err = svc.Login(ctx, "a@example.com", "secret-pass")
	assert.Error(t, err)
}

func TestService_Authorize_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, store, clk := setupService(t)
	putUser(t, store, &models.User{ID: "u1"})

	first, err := svc.Login(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	_, err = svc.Authorize(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked, "new login revokes older session")

	_, err = svc.Authorize(ctx, "garbage")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	// Заморозка после входа
	_, err = storage.UpdateJSON(ctx, store, storage.UserKey("u1"), func(u *models.User) (*models.User, error) {
		u.Coins = models.FrozenCoins
		return u, nil
	})
	require.NoError(t, err)
	_, err = svc.Authorize(ctx, second.AccessToken)
	assert.ErrorIs(t, err, ErrAccountFrozen)

	clk.Advance(2 * time.Hour)
	_, err = svc.Authorize(ctx, second.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupService(t)
	putUser(t, store, &models.User{ID: "u1"})

	sess, err := svc.Login(ctx, "a@example.com", "secret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "u1"))

	_, err = svc.Authorize(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.ErrorIs(t, svc.Logout(ctx, "ghost"), ErrUserNotFound)
}

func TestService_AcceptRules(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setupService(t)
	putUser(t, store, &models.User{ID: "u1"})

	u, err := svc.AcceptRules(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.RulesAccepted)

	u, err = svc.AcceptRules(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.RulesAccepted)

	_, err = svc.AcceptRules(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
