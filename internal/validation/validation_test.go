package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLinkID(t *testing.T) {
	tests := []struct {
		name    string
		linkID  string
		wantErr bool
	}{
		{name: "simple", linkID: "promo", wantErr: false},
		{name: "with dash and underscore", linkID: "ad_link-42", wantErr: false},
		{name: "max length", linkID: strings.Repeat("a", 64), wantErr: false},
		{name: "empty", linkID: "", wantErr: true},
		{name: "too long", linkID: strings.Repeat("a", 65), wantErr: true},
		{name: "slash is rejected", linkID: "a/b", wantErr: true},
		{name: "space is rejected", linkID: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLinkID(tt.linkID)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateGame(t *testing.T) {
	assert.NoError(t, ValidateGame("Tetris"))
	assert.NoError(t, ValidateGame("snake_2"))
	assert.ErrorIs(t, ValidateGame(""), ErrInvalid)
	assert.ErrorIs(t, ValidateGame("../etc"), ErrInvalid)
	assert.ErrorIs(t, ValidateGame(strings.Repeat("g", 33)), ErrInvalid)
}

func TestValidateTokenID(t *testing.T) {
	assert.NoError(t, ValidateTokenID("0123456789abcdef0123456789abcdef"))
	assert.ErrorIs(t, ValidateTokenID(""), ErrInvalid)
	assert.ErrorIs(t, ValidateTokenID("0123456789ABCDEF0123456789ABCDEF"), ErrInvalid)
	assert.ErrorIs(t, ValidateTokenID("0123456789abcdef"), ErrInvalid)
}

func TestValidateScore(t *testing.T) {
	zero := int64(0)
	positive := int64(500)
	negative := int64(-1)

	assert.NoError(t, ValidateScore(&zero))
	assert.NoError(t, ValidateScore(&positive))
	assert.ErrorIs(t, ValidateScore(&negative), ErrInvalid)
	assert.ErrorIs(t, ValidateScore(nil), ErrInvalid)
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid", email: "alice@example.com", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "no at sign", email: "alice.example.com", wantErr: true},
		{name: "display name is rejected", email: "Alice <alice@example.com>", wantErr: true},
		{name: "too long", email: strings.Repeat("a", 250) + "@x.io", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("12345678"))
	assert.ErrorIs(t, ValidatePassword(""), ErrInvalid)
	assert.ErrorIs(t, ValidatePassword("short"), ErrInvalid)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("p", 129)), ErrInvalid)
}

func TestError_Message(t *testing.T) {
	err := ValidateLinkID("")

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "linkId", verr.Field)
	assert.Equal(t, "linkId: cannot be empty", err.Error())
}
