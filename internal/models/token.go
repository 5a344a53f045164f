package models

import "time"

// TokenState состояние токена в жизненном цикле
type TokenState string

const (
	// TokenIssued токен выдан и ждет погашения
	TokenIssued TokenState = "issued"
	// TokenClaimed токен захвачен погашением, награда в процессе начисления
	TokenClaimed TokenState = "claimed"
	// TokenRedeemed токен погашен
	TokenRedeemed TokenState = "redeemed"
)

// Token одноразовый токен награды за переход по ссылке
type Token struct {
	StartAt   time.Time  `json:"start_at"`             // время выдачи
	DeleteAt  time.Time  `json:"delete_at"`            // после этого момента запись удаляется
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // жесткий срок действия
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ID        string     `json:"id"`
	UserID    string     `json:"uid"`
	LinkID    string     `json:"link_id"`
	Used      bool       `json:"used"`
}

// State возвращает текущее состояние токена
func (t *Token) State() TokenState {
	switch {
	case t.Used:
		return TokenRedeemed
	case t.ClaimedAt != nil:
		return TokenClaimed
	default:
		return TokenIssued
	}
}

// Expired сообщает, истек ли срок действия токена к моменту now
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Purgeable сообщает, можно ли физически удалить запись к моменту now
func (t *Token) Purgeable(now time.Time) bool {
	return !t.DeleteAt.IsZero() && !now.Before(t.DeleteAt)
}
