// Package storagetest contains behavioural tests shared by all Store backends.
package storagetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/luxta/internal/server/storage"
)

// Factory returns a fresh empty store. The store is closed by the suite
type Factory func(t *testing.T) storage.Store

// Run executes the conformance suite against stores produced by newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetGet", testSetGet},
		{"Remove", testRemove},
		{"UpdateCreates", testUpdateCreates},
		{"UpdateAbort", testUpdateAbort},
		{"ConcurrentUpdate", testConcurrentUpdate},
		{"ScanPrefix", testScanPrefix},
		{"ScanAllowsWrites", testScanAllowsWrites},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			defer func() {
				_ = s.Close()
			}()
			tc.fn(t, s)
		})
	}
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), "users/nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSetGet(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", []byte(`{"coins":1}`)))
	got, err := s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, `{"coins":1}`, string(got))

	// Перезапись
	require.NoError(t, s.Set(ctx, "users/u1", []byte(`{"coins":2}`)))
	got, err = s.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, `{"coins":2}`, string(got))
}

func testRemove(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tokens/a", []byte("1")))
	require.NoError(t, s.Remove(ctx, "tokens/a"))

	_, err := s.Get(ctx, "tokens/a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Удаление отсутствующего ключа не ошибка
	assert.NoError(t, s.Remove(ctx, "tokens/a"))
}

func testUpdateCreates(t *testing.T, s storage.Store) {
	ctx := context.Background()

	written, err := s.Update(ctx, "counter", func(current []byte, exists bool) ([]byte, error) {
		assert.False(t, exists)
		assert.Nil(t, current)
		return []byte("1"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1", string(written))

	written, err = s.Update(ctx, "counter", func(current []byte, exists bool) ([]byte, error) {
		assert.True(t, exists)
		assert.Equal(t, "1", string(current))
		return []byte("2"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "2", string(written))
}

func testUpdateAbort(t *testing.T, s storage.Store) {
	ctx := context.Background()
	errStop := errors.New("stop")

	require.NoError(t, s.Set(ctx, "k", []byte("original")))

	_, err := s.Update(ctx, "k", func(current []byte, exists bool) ([]byte, error) {
		return nil, errStop
	})
	assert.ErrorIs(t, err, errStop)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got), "aborted update must not write")

	_, err = s.Update(ctx, "absent", func(current []byte, exists bool) ([]byte, error) {
		return nil, errStop
	})
	assert.ErrorIs(t, err, errStop)
	_, err = s.Get(ctx, "absent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testConcurrentUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	goroutines := 8
	iterations := 25

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				_, err := s.Update(ctx, "counter", func(current []byte, exists bool) ([]byte, error) {
					n := 0
					if exists {
						var err error
						n, err = strconv.Atoi(string(current))
						if err != nil {
							return nil, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(goroutines*iterations), string(got), "no update may be lost")
}

func testScanPrefix(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, k := range []string{"tokens/b", "tokens/a", "users/x", "tokensX", "tokens/c"} {
		require.NoError(t, s.Set(ctx, k, []byte(k)))
	}

	var keys []string
	err := s.Scan(ctx, "tokens/", func(key string, value []byte) error {
		assert.Equal(t, key, string(value))
		keys = append(keys, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens/a", "tokens/b", "tokens/c"}, keys)

	// Ошибка из fn прекращает итерацию
	errStop := errors.New("stop")
	calls := 0
	err = s.Scan(ctx, "tokens/", func(key string, value []byte) error {
		calls++
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func testScanAllowsWrites(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for _, k := range []string{"tokens/1", "tokens/2", "tokens/3"} {
		require.NoError(t, s.Set(ctx, k, []byte("x")))
	}

	err := s.Scan(ctx, "tokens/", func(key string, value []byte) error {
		return s.Remove(ctx, key)
	})
	require.NoError(t, err)

	count := 0
	require.NoError(t, s.Scan(ctx, "tokens/", func(key string, value []byte) error {
		count++
		return nil
	}))
	assert.Zero(t, count)
}
