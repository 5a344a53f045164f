package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_Frozen(t *testing.T) {
	assert.False(t, (&User{Coins: 0}).Frozen())
	assert.False(t, (&User{Coins: 120}).Frozen())
	assert.True(t, (&User{Coins: -1}).Frozen())
	assert.True(t, (&User{Coins: FrozenCoins}).Frozen())
}

func TestLinkUsage_CountOn(t *testing.T) {
	tests := []struct {
		usage *LinkUsage
		name  string
		day   string
		want  int
	}{
		{name: "nil counter", usage: nil, day: "2026-03-01", want: 0},
		{name: "same day", usage: &LinkUsage{Date: "2026-03-01", Count: 7}, day: "2026-03-01", want: 7},
		{name: "stale day resets", usage: &LinkUsage{Date: "2026-02-28", Count: 7}, day: "2026-03-01", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.usage.CountOn(tt.day))
		})
	}
}

func TestLinkUsage_Increment(t *testing.T) {
	usage := &LinkUsage{}

	assert.Equal(t, 1, usage.Increment("2026-03-01"))
	assert.Equal(t, 2, usage.Increment("2026-03-01"))
	assert.False(t, usage.Stale("2026-03-01"))

	// Новый день начинает счет заново
	assert.True(t, usage.Stale("2026-03-02"))
	assert.Equal(t, 1, usage.Increment("2026-03-02"))
	assert.Equal(t, "2026-03-02", usage.Date)
}
