package tokens

import (
	"errors"

	"github.com/iudanet/luxta/internal/server/ledger"
)

// Ожидаемые отказы бизнес-правил. Никогда не повторяются автоматически
var (
	// ErrInvalidToken indicates absent token or token of another user
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpired indicates that token validity window has passed
	ErrExpired = errors.New("token expired")

	// ErrAlreadyUsed indicates that token was already redeemed or is being redeemed
	ErrAlreadyUsed = errors.New("token already used")

	// ErrFraudDetected indicates redemption faster than human dwell time.
	// The account is frozen as a side effect
	ErrFraudDetected = errors.New("fraud detected")

	// ErrRulesNotAccepted indicates that user must accept rules before earning
	ErrRulesNotAccepted = errors.New("rules not accepted")

	// ErrUserNotFound indicates that user record doesn't exist
	ErrUserNotFound = ledger.ErrUserNotFound
)

// errQuotaExceeded прерывает обновление счетчика, наружу не выходит
var errQuotaExceeded = errors.New("daily quota exceeded")

// errIDCollision сгенерированный идентификатор уже занят
var errIDCollision = errors.New("token id collision")
