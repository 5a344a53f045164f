package models

import "time"

// LeaderboardEntry лучший результат пользователя в игре
type LeaderboardEntry struct {
	UpdatedAt time.Time `json:"updated_at"`
	JoinedAt  time.Time `json:"joined_at"`
	Game      string    `json:"game"`
	UserID    string    `json:"uid"`
	BestScore int64     `json:"best_score"`
}
