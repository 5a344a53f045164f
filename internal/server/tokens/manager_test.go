package tokens

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/clock"
	"github.com/iudanet/luxta/internal/models"
	"github.com/iudanet/luxta/internal/server/ledger"
	"github.com/iudanet/luxta/internal/server/storage"
	"github.com/iudanet/luxta/internal/server/storage/memory"
	"github.com/iudanet/luxta/internal/server/storage/storagetest"
)

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	manager *Manager
	store   storage.Store
	clock   *clock.Manual
}

func setupManager(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(testStart)
	cfg := DefaultConfig()
	cfg.DailyQuota = 3

	return &testEnv{
		manager: NewManager(logger, store, ledger.New(logger, store), clk, cfg),
		store:   store,
		clock:   clk,
	}
}

func createTestUser(t *testing.T, store storage.Store, userID string, coins int64) {
	t.Helper()
	err := storage.SetJSON(context.Background(), store, storage.UserKey(userID), &models.User{
		ID:            userID,
		Coins:         coins,
		RulesAccepted: true,
	})
	require.NoError(t, err)
}

func getUser(t *testing.T, store storage.Store, userID string) *models.User {
	t.Helper()
	u, err := storage.GetJSON[models.User](context.Background(), store, storage.UserKey(userID))
	require.NoError(t, err)
	return u
}

func countTokens(t *testing.T, store storage.Store) int {
	t.Helper()
	n := 0
	err := store.Scan(context.Background(), storage.PrefixTokens, func(string, []byte) error {
		n++
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestManager_Issue(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	res, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	assert.False(t, res.QuotaExceeded)
	assert.Len(t, res.Token, 32)
	assert.Equal(t, 1, res.CountToday)
	assert.Equal(t, testStart.Add(time.Hour), res.ExpiresAt)

	tok, err := env.manager.Get(ctx, res.Token, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", tok.UserID)
	assert.Equal(t, "promo", tok.LinkID)
	assert.Equal(t, testStart, tok.StartAt)
	assert.Equal(t, testStart.Add(24*time.Hour), tok.DeleteAt)
	assert.Equal(t, models.TokenIssued, tok.State())

	u := getUser(t, env.store, "u1")
	assert.Equal(t, &models.LinkUsage{Date: "2026-03-01", Count: 1}, u.Links["promo"])
}

func TestManager_Issue_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	// Квота 3: три выдачи проходят
	for i := 1; i <= 3; i++ {
		res, err := env.manager.Issue(ctx, "u1", "promo")
		require.NoError(t, err)
		assert.False(t, res.QuotaExceeded)
		assert.Equal(t, i, res.CountToday)
	}
	require.Equal(t, 3, countTokens(t, env.store))

	res, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err, "quota is a normal negative result")
	assert.True(t, res.QuotaExceeded)
	assert.Empty(t, res.Token)
	assert.Equal(t, 3, res.CountToday)
	assert.Equal(t, 3, countTokens(t, env.store), "no token may be created over quota")

	// Другая ссылка считается отдельно
	other, err := env.manager.Issue(ctx, "u1", "other")
	require.NoError(t, err)
	assert.False(t, other.QuotaExceeded)
	assert.Equal(t, 1, other.CountToday)
}

func TestManager_Issue_NewDayResetsCounter(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	for i := 0; i < 3; i++ {
		_, err := env.manager.Issue(ctx, "u1", "promo")
		require.NoError(t, err)
	}

	env.clock.Advance(24 * time.Hour)

	res, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	assert.False(t, res.QuotaExceeded)
	assert.Equal(t, 1, res.CountToday)
	assert.Equal(t, "2026-03-02", getUser(t, env.store, "u1").Links["promo"].Date)
}

func TestManager_Issue_Rejections(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)

	err := storage.SetJSON(ctx, env.store, storage.UserKey("newbie"), &models.User{ID: "newbie"})
	require.NoError(t, err)

	_, err = env.manager.Issue(ctx, "newbie", "promo")
	assert.ErrorIs(t, err, ErrRulesNotAccepted)

	_, err = env.manager.Issue(ctx, "ghost", "promo")
	assert.ErrorIs(t, err, ErrUserNotFound)

	createTestUser(t, env.store, "u1", 0)
	_, err = env.manager.Issue(ctx, "u1", "bad/link")
	assert.Error(t, err)

	assert.Zero(t, countTokens(t, env.store))
}

func TestManager_Issue_ConcurrentRespectsQuota(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	goroutines := 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			res, err := env.manager.Issue(ctx, "u1", "promo")
			if !assert.NoError(t, err) {
				return
			}
			if !res.QuotaExceeded {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	assert.Equal(t, 3, countTokens(t, env.store))
	assert.Equal(t, 3, getUser(t, env.store, "u1").Links["promo"].Count)
}

// tokenWriteFailing ломает запись токенов, оставляя записи пользователей рабочими
type tokenWriteFailing struct {
	storage.Store
}

func (f *tokenWriteFailing) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	if strings.HasPrefix(key, storage.PrefixTokens) {
		return nil, storage.ErrUnavailable
	}
	return f.Store.Update(ctx, key, fn)
}

func TestManager_Issue_StoreFailureReleasesCounter(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	createTestUser(t, inner, "u1", 0)
	env := setupManager(t, &tokenWriteFailing{Store: inner})

	_, err := env.manager.Issue(ctx, "u1", "promo")
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	assert.Equal(t, 0, getUser(t, inner, "u1").Links["promo"].Count)
}

func TestManager_Issue_IDCollisionRetries(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	taken := strings.Repeat("a", 32)
	fresh := strings.Repeat("b", 32)
	require.NoError(t, env.store.Set(ctx, storage.TokenKey(taken), []byte(`{"id":"taken"}`)))

	ids := []string{taken, fresh}
	env.manager.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}

	res, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	assert.Equal(t, fresh, res.Token)
}

func TestManager_Redeem(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 100)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)

	env.clock.Advance(20 * time.Second)

	red, err := env.manager.Redeem(ctx, issued.Token, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), red.CoinsAdded)
	assert.Equal(t, int64(5), red.XPAdded)
	assert.Equal(t, int64(130), red.Balance.Coins)
	assert.Equal(t, int64(5), red.Balance.XP)

	tok, err := env.manager.Get(ctx, issued.Token, "u1")
	require.NoError(t, err)
	assert.True(t, tok.Used)
	require.NotNil(t, tok.UsedAt)
	assert.Equal(t, env.clock.Now(), *tok.UsedAt)

	u := getUser(t, env.store, "u1")
	assert.Equal(t, int64(130), u.Coins)
	assert.Equal(t, 2, u.Links["promo"].Count, "redemption bumps link counter")
}

func TestManager_Redeem_Twice(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	require.NoError(t, err)

	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.ErrorIs(t, err, ErrAlreadyUsed)

	assert.Equal(t, int64(30), getUser(t, env.store, "u1").Coins)
}

func TestManager_Redeem_ConcurrentExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	goroutines := 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := env.manager.Redeem(ctx, issued.Token, "u1")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyUsed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(30), getUser(t, env.store, "u1").Coins)
}

func TestManager_Redeem_FraudFreezesAccount(t *testing.T) {
	tests := []struct {
		name    string
		initial int64
		dwell   time.Duration
	}{
		{name: "instant redemption", initial: 0, dwell: 0},
		{name: "just under dwell time", initial: 500, dwell: 15*time.Second - time.Millisecond},
		{name: "rich account is frozen too", initial: 1_000_000_000, dwell: 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := setupManager(t, nil)
			createTestUser(t, env.store, "u1", tt.initial)

			issued, err := env.manager.Issue(ctx, "u1", "promo")
			require.NoError(t, err)
			env.clock.Advance(tt.dwell)

			_, err = env.manager.Redeem(ctx, issued.Token, "u1")
			assert.ErrorIs(t, err, ErrFraudDetected)

			u := getUser(t, env.store, "u1")
			assert.Equal(t, models.FrozenCoins, u.Coins)
			assert.Zero(t, u.XP, "no reward on fraud")

			// Токен сгорает и не может быть погашен позже
			env.clock.Advance(time.Minute)
			_, err = env.manager.Redeem(ctx, issued.Token, "u1")
			assert.ErrorIs(t, err, ErrAlreadyUsed)
			assert.Equal(t, models.FrozenCoins, getUser(t, env.store, "u1").Coins)
		})
	}
}

func TestManager_Redeem_ExactDwellIsAllowed(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(15 * time.Second)

	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.NoError(t, err)
}

func TestManager_Redeem_Expired(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Hour + time.Millisecond)

	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.ErrorIs(t, err, ErrExpired)
	assert.Zero(t, getUser(t, env.store, "u1").Coins)
}

func TestManager_Redeem_InvalidToken(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)
	createTestUser(t, env.store, "u2", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	tests := []struct {
		name   string
		token  string
		userID string
	}{
		{name: "another user", token: issued.Token, userID: "u2"},
		{name: "absent token", token: strings.Repeat("0", 32), userID: "u1"},
		{name: "malformed token", token: "../users/u1", userID: "u1"},
		{name: "empty token", token: "", userID: "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.Redeem(ctx, tt.token, tt.userID)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	// Чужая попытка не портит токен владельца
	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.NoError(t, err)
}

// sweepBeforeMark удаляет токен перед финальной пометкой used,
// имитируя гонку с sweeper
type sweepBeforeMark struct {
	storage.Store
	updates int
}

func (s *sweepBeforeMark) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	if strings.HasPrefix(key, storage.PrefixTokens) {
		s.updates++
		// Первое обновление создает токен, второе захватывает, третье помечает
		if s.updates == 3 {
			_ = s.Store.Remove(ctx, key)
		}
	}
	return s.Store.Update(ctx, key, fn)
}

func TestManager_Redeem_SweptDuringRedemption(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	createTestUser(t, inner, "u1", 0)
	env := setupManager(t, &sweepBeforeMark{Store: inner})

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = inner.Get(ctx, storage.TokenKey(issued.Token))
	assert.ErrorIs(t, err, storage.ErrNotFound, "swept token must not be recreated")
}

func TestManager_Redeem_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	createTestUser(t, inner, "u1", 0)
	failing := &storagetest.Failing{Store: inner}
	env := setupManager(t, failing)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	failing.FailUpdate = true
	_, err = env.manager.Redeem(ctx, issued.Token, "u1")
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestManager_Get(t *testing.T) {
	ctx := context.Background()
	env := setupManager(t, nil)
	createTestUser(t, env.store, "u1", 0)

	issued, err := env.manager.Issue(ctx, "u1", "promo")
	require.NoError(t, err)

	_, err = env.manager.Get(ctx, issued.Token, "u2")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.manager.Get(ctx, strings.Repeat("f", 32), "u1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
