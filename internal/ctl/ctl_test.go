package ctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/config"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/memory"
)

type fakeIO struct {
	out      bytes.Buffer
	password string
}

func (f *fakeIO) Printf(format string, a ...any) {
	fmt.Fprintf(&f.out, format, a...)
}

func (f *fakeIO) ReadPassword(string) (string, error) {
	return f.password, nil
}

// nopClose оставляет общее хранилище открытым между запусками
type nopClose struct {
	storage.Store
}

func (nopClose) Close() error { return nil }

type testEnv struct {
	store *memory.Storage
	clock *clock.Manual
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		store: memory.New(),
		clock: clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func (e *testEnv) run(t *testing.T, password string, args ...string) (string, error) {
	t.Helper()
	stdio := &fakeIO{password: password}
	open := func(context.Context, *config.Config) (storage.Store, error) {
		return nopClose{e.store}, nil
	}
	app := New(stdio, open, e.clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := app.Execute(context.Background(), append([]string{"--store", "memory"}, args...), io.Discard)
	return stdio.out.String(), err
}

func (e *testEnv) createUser(t *testing.T, email string) string {
	t.Helper()
	out, err := e.run(t, "correct-horse-battery", "user", "create", email)
	require.NoError(t, err)
	id, ok := strings.CutPrefix(strings.TrimSpace(out), "created user ")
	require.True(t, ok, out)
	return id
}

func TestUserCreateAndShow(t *testing.T) {
	env := setupEnv(t)
	id := env.createUser(t, "Player@Example.com")

	out, err := env.run(t, "", "user", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "email:  player@example.com")
	assert.Contains(t, out, "coins:  0")
	assert.Contains(t, out, "frozen: false")
}

func TestUserCreate_Errors(t *testing.T) {
	env := setupEnv(t)
	env.createUser(t, "dup@example.com")

	_, err := env.run(t, "correct-horse-battery", "user", "create", "dup@example.com")
	assert.Error(t, err)

	_, err = env.run(t, "short", "user", "create", "new@example.com")
	assert.Error(t, err)
}

func TestUserShow_NotFound(t *testing.T) {
	env := setupEnv(t)

	_, err := env.run(t, "", "user", "show", "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestUserGrant(t *testing.T) {
	env := setupEnv(t)
	id := env.createUser(t, "grant@example.com")

	out, err := env.run(t, "", "user", "grant", id)
	require.NoError(t, err)
	assert.Equal(t, "balance: 30\n", out)

	out, err = env.run(t, "", "user", "grant", id, "45")
	require.NoError(t, err)
	assert.Equal(t, "balance: 75\n", out)

	for _, bad := range []string{"0", "-5", "many"} {
		_, err = env.run(t, "", "user", "grant", id, bad)
		assert.Error(t, err, bad)
	}

	_, err = env.run(t, "", "user", "grant", "missing")
	assert.Error(t, err)
}

func TestUserFreeze(t *testing.T) {
	env := setupEnv(t)
	id := env.createUser(t, "cheat@example.com")

	_, err := env.run(t, "", "user", "freeze", id)
	require.NoError(t, err)

	out, err := env.run(t, "", "user", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "frozen: true")
}

func TestSweep(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	now := env.clock.Now()

	expired := &models.Token{ID: "old", UserID: "u1", LinkID: "l1", StartAt: now.Add(-25 * time.Hour), DeleteAt: now.Add(-time.Hour)}
	live := &models.Token{ID: "new", UserID: "u1", LinkID: "l1", StartAt: now, DeleteAt: now.Add(24 * time.Hour)}
	require.NoError(t, storage.SetJSON(ctx, env.store, storage.TokenKey(expired.ID), expired))
	require.NoError(t, storage.SetJSON(ctx, env.store, storage.TokenKey(live.ID), live))

	out, err := env.run(t, "", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "tokens removed: 1")

	_, err = env.store.Get(ctx, storage.TokenKey(expired.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = env.store.Get(ctx, storage.TokenKey(live.ID))
	assert.NoError(t, err)
}

func TestLeaderboardTop(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	now := env.clock.Now()

	for i, score := range []int64{50, 200, 120} {
		e := &models.LeaderboardEntry{
			Game:      "snake",
			UserID:    fmt.Sprintf("user-%d", i),
			BestScore: score,
			JoinedAt:  now,
			UpdatedAt: now,
		}
		require.NoError(t, storage.SetJSON(ctx, env.store, storage.LeaderboardKey("snake", e.UserID), e))
	}

	out, err := env.run(t, "", "leaderboard", "top", "snake", "--limit", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "user-1")
	assert.Contains(t, lines[1], "user-2")

	out, err = env.run(t, "", "leaderboard", "top", "tetris")
	require.NoError(t, err)
	assert.Contains(t, out, "no scores for tetris")
}

func TestUnknownStore(t *testing.T) {
	app := New(&fakeIO{}, nil, clock.System{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := app.Execute(context.Background(), []string{"--store", "etcd", "sweep"}, io.Discard)
	assert.Error(t, err)
}
