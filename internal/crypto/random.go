package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDBytes количество случайных байт в идентификаторах токенов и сессий
const IDBytes = 16

// RandomHex возвращает n криптографически случайных байт в hex (2n символов)
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random length must be positive, got %d", n)
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(b), nil
}

// NewID генерирует идентификатор токена или сессии фиксированной длины
func NewID() (string, error) {
	return RandomHex(IDBytes)
}
