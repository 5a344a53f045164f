package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/luxta/internal/server/storage"
)

const (
	// maxUpdateAttempts ограничивает число повторов оптимистичной транзакции
	maxUpdateAttempts = 50
	// scanBatchSize количество ключей за один SCAN
	scanBatchSize = 500
)

// Options конфигурация подключения к Redis
type Options struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string // namespace для всех ключей, например "luxta:"
}

// Storage represents Redis storage implementation
type Storage struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and checks the connection with PING
func New(ctx context.Context, opts Options) (*Storage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Storage{rdb: rdb, prefix: opts.KeyPrefix}, nil
}

// Close closes the client
func (s *Storage) Close() error {
	return s.rdb.Close()
}

// Get returns value by key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return value, nil
}

// Set writes value unconditionally
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Remove deletes key
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// Update performs optimistic WATCH/MULTI/EXEC transaction.
// Если ключ изменился между чтением и EXEC, транзакция повторяется
func (s *Storage) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	fullKey := s.prefix + key

	var (
		written []byte
		fnErr   error
	)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		exists := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			exists = false
			current = nil
		}

		next, err := fn(current, exists)
		if err != nil {
			fnErr = err
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, 0)
			return nil
		})
		if err != nil {
			return err
		}

		written = next
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		fnErr = nil
		err := s.rdb.Watch(ctx, txf, fullKey)
		if fnErr != nil {
			return nil, fnErr
		}
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, unavailable("update", err)
	}

	return nil, fmt.Errorf("%w: redis update %s: %d attempts", storage.ErrConflict, key, maxUpdateAttempts)
}

// Scan iterates over keys with the given prefix using SCAN MATCH.
// Ключи сортируются, чтобы порядок совпадал с остальными backend'ами
func (s *Storage) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	match := escapeGlob(s.prefix+prefix) + "*"

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, scanBatchSize).Result()
		if err != nil {
			return unavailable("scan", err)
		}
		keys = append(keys, batch...)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	// SCAN может вернуть один ключ несколько раз
	sort.Strings(keys)
	keys = dedup(keys)

	for _, fullKey := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := s.rdb.Get(ctx, fullKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// ключ удален после SCAN
				continue
			}
			return unavailable("get", err)
		}

		if err := fn(fullKey[len(s.prefix):], value); err != nil {
			return err
		}
	}

	return nil
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, k := range sorted {
		if i > 0 && sorted[i-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}

// escapeGlob экранирует спецсимволы glob-паттерна Redis
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\', '^':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", storage.ErrUnavailable, op, err)
}
