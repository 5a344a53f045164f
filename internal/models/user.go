package models

import "time"

// FrozenCoins значение баланса, которым помечается аккаунт, пойманный на накрутке.
// Любой отрицательный баланс считается заморозкой.
const FrozenCoins int64 = -1_000_000

// User представляет игровой профиль пользователя
type User struct {
	CreatedAt     time.Time             `json:"created_at"`     // время создания
	Session       *Session              `json:"session"`        // текущая login-сессия
	Links         map[string]*LinkUsage `json:"links"`          // link-id -> дневной счетчик
	ID            string                `json:"id"`             // UUID пользователя
	Email         string                `json:"email"`          // email из identity provider
	Coins         int64                 `json:"coins"`          // баланс, < 0 означает заморозку
	XP            int64                 `json:"xp"`             // опыт в пределах текущего уровня
	Level         int                   `json:"level"`          // 0..15
	RulesAccepted bool                  `json:"rules_accepted"` // пользователь принял правила
}

// Frozen сообщает, заморожен ли аккаунт
func (u *User) Frozen() bool {
	return u.Coins < 0
}

// Session представляет login-сессию пользователя
type Session struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"` // hex, 16 random bytes
}

// Identity связывает email с пользователем и хешем пароля
type Identity struct {
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `json:"email"`
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"password_hash"` // base64 argon2id
	Salt         string    `json:"salt"`          // base64
}

// LinkUsage дневной счетчик выданных токенов для пары (user, link)
type LinkUsage struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// CountOn возвращает значение счетчика на день day.
// Если счетчик записан за другой день, он считается нулевым.
func (l *LinkUsage) CountOn(day string) int {
	if l == nil || l.Date != day {
		return 0
	}
	return l.Count
}

// Increment увеличивает счетчик за день day, сбрасывая устаревшее значение
func (l *LinkUsage) Increment(day string) int {
	if l.Date != day {
		l.Date = day
		l.Count = 0
	}
	l.Count++
	return l.Count
}

// Stale сообщает, что счетчик записан не за день day
func (l *LinkUsage) Stale(day string) bool {
	return l.Date != day
}
