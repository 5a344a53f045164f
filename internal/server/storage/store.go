package storage

import (
	"context"
	"strings"
)

// UpdateFunc преобразует текущее значение ключа в новое.
// exists=false означает, что ключа нет (current == nil).
// Если функция возвращает ошибку, ничего не записывается и ошибка
// возвращается из Update без изменений.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store defines key-value persistence used by every component.
// Implementations must make Update atomic per key with respect to
// concurrent writers.
type Store interface {
	// Get returns value by key
	// Returns ErrNotFound if key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value unconditionally
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing absent key is not an error
	Remove(ctx context.Context, key string) error

	// Update performs atomic read-modify-write of a single key
	// Returns the value that was written
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)

	// Scan iterates over a snapshot of keys with the given prefix in key order.
	// fn may write to the store. Returning error from fn stops the iteration
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error

	// Close releases underlying resources
	Close() error
}

// Key prefixes
const (
	PrefixUsers       = "users/"
	PrefixTokens      = "tokens/"
	PrefixLeaderboard = "leaderboard/"
	PrefixIdentities  = "identities/"
)

// UserKey returns key of user record
func UserKey(userID string) string {
	return PrefixUsers + userID
}

// TokenKey returns key of reward token record
func TokenKey(tokenID string) string {
	return PrefixTokens + tokenID
}

// LeaderboardPrefix returns prefix of all entries of one game
func LeaderboardPrefix(game string) string {
	return PrefixLeaderboard + game + "/"
}

// LeaderboardKey returns key of (game, user) entry
func LeaderboardKey(game, userID string) string {
	return LeaderboardPrefix(game) + userID
}

// IdentityKey returns key of identity record. Email is case-insensitive
func IdentityKey(email string) string {
	return PrefixIdentities + strings.ToLower(email)
}

// PrefixEnd returns the smallest key greater than every key with prefix.
// Used by backends that scan ranges.
func PrefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
