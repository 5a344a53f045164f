package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/iudanet/luxta/internal/server/storage"
)

// Storage represents in-memory storage implementation.
// Used as a test fake and for ephemeral deployments
type Storage struct {
	data   map[string][]byte
	mu     sync.Mutex
	closed bool
}

// New creates an empty in-memory storage
func New() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

// Get returns value by key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v), nil
}

// Set writes value unconditionally
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	s.data[key] = clone(value)
	return nil
}

// Remove deletes key
func (s *Storage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return err
	}

	delete(s.data, key)
	return nil
}

// Update performs atomic read-modify-write under the storage lock
func (s *Storage) Update(ctx context.Context, key string, fn storage.UpdateFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return nil, err
	}

	current, exists := s.data[key]
	next, err := fn(clone(current), exists)
	if err != nil {
		return nil, err
	}

	s.data[key] = clone(next)
	return next, nil
}

// Scan iterates over a snapshot of keys with the given prefix.
// Lock is released before fn is called, so fn may write
func (s *Storage) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	s.mu.Lock()
	if err := s.check(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	keys := make([]string, 0)
	snapshot := make(map[string][]byte)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
			snapshot[k] = clone(v)
		}
	}
	s.mu.Unlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, snapshot[k]); err != nil {
			return err
		}
	}
	return nil
}

// Close marks storage as closed. Subsequent calls fail with ErrUnavailable
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *Storage) check(ctx context.Context) error {
	if s.closed {
		return storage.ErrUnavailable
	}
	return ctx.Err()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
