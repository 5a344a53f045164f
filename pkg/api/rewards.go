package api

import "time"

// ProfileResponse профиль текущего пользователя
type ProfileResponse struct {
	CreatedAt     time.Time `json:"created_at"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Coins         int64     `json:"coins"`
	XP            int64     `json:"xp"`
	Level         int       `json:"level"`
	RulesAccepted bool      `json:"rules_accepted"`
	Frozen        bool      `json:"frozen"`
}

// IssueTokenRequest запрос на выдачу токена за ссылку
type IssueTokenRequest struct {
	LinkID string `json:"linkId"`
}

// IssueTokenResponse выданный токен
type IssueTokenResponse struct {
	ExpiresAt  time.Time `json:"expiresAt"`
	Token      string    `json:"token"`
	CountToday int       `json:"countToday"`
}

// TokenStatusResponse состояние токена
type TokenStatusResponse struct {
	StartAt   time.Time  `json:"startAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	Token     string     `json:"token"`
	LinkID    string     `json:"linkId"`
	State     string     `json:"state"`
	Used      bool       `json:"used"`
}

// RedeemResponse результат погашения токена
type RedeemResponse struct {
	CoinsAdded int64 `json:"coinsAdded"`
	XPAdded    int64 `json:"xpAdded"`
	Coins      int64 `json:"coins"`
	XP         int64 `json:"xp"`
	Level      int   `json:"level"`
}

// JoinGameResponse результат входа в игру
type JoinGameResponse struct {
	Game      string `json:"game"`
	BestScore int64  `json:"bestScore"`
	Charged   bool   `json:"charged"`
}

// SubmitScoreRequest отправка счета. Указатель отличает отсутствующее поле от нуля
type SubmitScoreRequest struct {
	Score *int64 `json:"score"`
}

// SubmitScoreResponse результат отправки счета
type SubmitScoreResponse struct {
	Accepted  bool `json:"accepted"`
	NewRecord bool `json:"newRecord"`
}

// LeaderboardEntry строка таблицы рекордов
type LeaderboardEntry struct {
	UpdatedAt time.Time `json:"updatedAt"`
	UserID    string    `json:"uid"`
	BestScore int64     `json:"bestScore"`
	Rank      int       `json:"rank"`
}

// LeaderboardResponse таблица рекордов игры
type LeaderboardResponse struct {
	Game    string             `json:"game"`
	Entries []LeaderboardEntry `json:"entries"`
}
