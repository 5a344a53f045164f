package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	UserID      string `json:"user_id"`
	ExpiresIn   int64  `json:"expires_in"` // время жизни access token в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	Code    string `json:"code,omitempty"`    // машинный код бизнес-ошибки
}

// Коды бизнес-ошибок в ErrorResponse.Code
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeExpired           = "EXPIRED"
	CodeAlreadyUsed       = "ALREADY_USED"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeFraudDetected     = "FRAUD_DETECTED"
	CodeAccountFrozen     = "ACCOUNT_FROZEN"
	CodeRulesNotAccepted  = "RULES_NOT_ACCEPTED"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeRateLimited       = "RATE_LIMITED"
)
