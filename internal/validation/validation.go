package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// ErrInvalid matches every validation error via errors.Is
var ErrInvalid = errors.New("invalid input")

// Error ошибка валидации входных данных (ответ 4xx)
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInvalid)
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	// LinkIDPattern допустимый формат идентификатора ссылки
	LinkIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	// GamePattern допустимый формат имени игры
	GamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

	// TokenIDPattern формат идентификатора токена: 16 байт в hex
	TokenIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
)

const (
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordLen ограничивает стоимость хеширования
	MaxPasswordLen = 128
	// MaxEmailLen максимальная длина email
	MaxEmailLen = 254
)

// ValidateLinkID проверяет идентификатор ссылки
func ValidateLinkID(linkID string) error {
	if linkID == "" {
		return invalid("linkId", "cannot be empty")
	}
	if !LinkIDPattern.MatchString(linkID) {
		return invalid("linkId", "must be 1-64 characters of letters, numbers, '_' or '-'")
	}
	return nil
}

// ValidateGame проверяет имя игры
func ValidateGame(game string) error {
	if game == "" {
		return invalid("game", "cannot be empty")
	}
	if !GamePattern.MatchString(game) {
		return invalid("game", "must be 1-32 characters of letters, numbers, '_' or '-'")
	}
	return nil
}

// ValidateTokenID проверяет формат идентификатора токена
func ValidateTokenID(tokenID string) error {
	if !TokenIDPattern.MatchString(tokenID) {
		return invalid("token", "must be 32 lowercase hex characters")
	}
	return nil
}

// ValidateScore проверяет отправленный счет. nil означает отсутствующее поле
func ValidateScore(score *int64) error {
	if score == nil {
		return invalid("score", "is required")
	}
	if *score < 0 {
		return invalid("score", "must not be negative")
	}
	return nil
}

// ValidateEmail проверяет email адрес
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", "cannot be empty")
	}
	if len(email) > MaxEmailLen {
		return invalid("email", "must not exceed %d characters", MaxEmailLen)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password", "cannot be empty")
	}
	if len(password) < MinPasswordLen {
		return invalid("password", "must be at least %d characters long", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return invalid("password", "must not exceed %d characters", MaxPasswordLen)
	}
	return nil
}
