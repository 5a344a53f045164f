package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON reads key and decodes JSON value into T
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return &v, nil
}

// SetJSON encodes v as JSON and writes it unconditionally
func SetJSON[T any](ctx context.Context, s Store, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// UpdateJSON performs atomic update of a JSON-encoded value.
// fn receives nil when key is absent and returns the new value.
// fn may be invoked several times if backend retries on conflict,
// so it must not have side effects outside of its return value.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(current *T) (*T, error)) (*T, error) {
	var result *T

	_, err := s.Update(ctx, key, func(current []byte, exists bool) ([]byte, error) {
		var cur *T
		if exists {
			cur = new(T)
			if err := json.Unmarshal(current, cur); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}
		}

		next, err := fn(cur)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		result = next
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ScanJSON decodes every value under prefix into T and passes it to fn
func ScanJSON[T any](ctx context.Context, s Store, prefix string, fn func(key string, v *T) error) error {
	return s.Scan(ctx, prefix, func(key string, value []byte) error {
		var v T
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		return fn(key, &v)
	})
}
