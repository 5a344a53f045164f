package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/memory"
	"github.com/iudanet/luxta/internal/server/storage/storagetest"
	"github.com/iudanet/luxta/internal/validation"
)

func setupLocal(store storage.Store) *Local {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLocal(logger, store, clock.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLocal_RegisterAuthenticate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	local := setupLocal(store)

	user, err := local.Register(ctx, " Player@Example.com ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "player@example.com", user.Email)
	_, err = uuid.Parse(user.ID)
	assert.NoError(t, err)

	stored, err := storage.GetJSON[models.User](ctx, store, storage.UserKey(user.ID))
	require.NoError(t, err)
	assert.Zero(t, stored.Coins)
	assert.False(t, stored.RulesAccepted)

	uid, err := local.Authenticate(ctx, "player@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)

	uid, err = local.Authenticate(ctx, "PLAYER@example.com", "correct-horse")
	require.NoError(t, err, "email is case-insensitive")
	assert.Equal(t, user.ID, uid)
}

func TestLocal_Register_Errors(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(memory.New())

	_, err := local.Register(ctx, "a@example.com", "password1")
	require.NoError(t, err)

	_, err = local.Register(ctx, "A@example.com", "password2")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = local.Register(ctx, "not-an-email", "password1")
	assert.ErrorIs(t, err, validation.ErrInvalid)

	_, err = local.Register(ctx, "b@example.com", "short")
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestLocal_Authenticate_Errors(t *testing.T) {
	ctx := context.Background()
	local := setupLocal(memory.New())

	_, err := local.Register(ctx, "a@example.com", "password1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "a@example.com", password: "password2"},
		{name: "unknown email", email: "b@example.com", password: "password1"},
		{name: "empty password", email: "a@example.com", password: ""},
		{name: "empty email", email: "", password: "password1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := local.Authenticate(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLocal_Register_StoreFailure(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	failing := &storagetest.Failing{Store: inner, FailSet: true}
	local := setupLocal(failing)

	_, err := local.Register(ctx, "a@example.com", "password1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	// Identity откатывается, email снова свободен
	_, err = inner.Get(ctx, storage.IdentityKey("a@example.com"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
