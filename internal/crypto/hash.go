package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrOTPMismatch означает, что код не совпадает с сохраненным хешем
var ErrOTPMismatch = errors.New("otp mismatch")

// HashOTP хеширует одноразовый код с использованием bcrypt.
// Сервер хранит только хеш: утечка хранилища не раскрывает ожидающие коды
func HashOTP(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("otp cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash otp: %w", err)
	}

	return string(hash), nil
}

// VerifyOTP проверяет, соответствует ли код сохраненному хешу
func VerifyOTP(code, hash string) error {
	if code == "" {
		return fmt.Errorf("otp cannot be empty")
	}
	if hash == "" {
		return fmt.Errorf("otp hash cannot be empty")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrOTPMismatch
		}
		return fmt.Errorf("failed to compare otp: %w", err)
	}

	return nil
}
