package boltdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/luxta/internal/server/storage"
)

// BoltDB bucket names
var bucketKV = []byte("kv")

// Storage represents BoltDB storage implementation
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB, не ждем бесконечно если файл заблокирован другим процессом
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return fmt.Errorf("failed to create kv bucket: %w", err)
		}
		return nil
	})
}

// Get returns value by key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKV).Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}
		// Данные валидны только внутри транзакции
		value = bytes.Clone(data)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable("get", err)
	}

	return value, nil
}

// Set writes value unconditionally
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	})
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Remove deletes key
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return unavailable("remove", err)
	}
	return nil
}

// Update performs read-modify-write inside a single bbolt write transaction.
// bbolt допускает только одну пишущую транзакцию, поэтому обновление атомарно
func (s *Storage) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		written []byte
		fnErr   error
	)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketKV)

		current := bucket.Get([]byte(key))
		next, err := fn(bytes.Clone(current), current != nil)
		if err != nil {
			fnErr = err
			return err
		}

		written = next
		return bucket.Put([]byte(key), next)
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, unavailable("update", err)
	}

	return written, nil
}

// Scan iterates over a snapshot of keys with the given prefix.
// Значения копируются до вызова fn: пишущая транзакция внутри
// читающей в той же горутине может заблокироваться
func (s *Storage) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	type entry struct {
		key   string
		value []byte
	}
	var entries []entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			entries = append(entries, entry{key: string(k), value: bytes.Clone(v)})
		}
		return nil
	})
	if err != nil {
		return unavailable("scan", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) ready(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrUnavailable
	}
	return ctx.Err()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: boltdb %s: %w", storage.ErrUnavailable, op, err)
}
