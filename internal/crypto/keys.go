package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const (
	// TokenSize - размер случайного токена в байтах (CSRF токены)
	TokenSize = 32
	// OTPDigits - количество цифр в одноразовом коде
	OTPDigits = 6
)

// otpMax - верхняя граница кода (10^OTPDigits)
var otpMax = big.NewInt(1_000_000)

// GenerateToken генерирует криптографически случайный токен в URL-safe Base64
func GenerateToken() (string, error) {
	buf := make([]byte, TokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOTP генерирует равномерно распределенный код из OTPDigits цифр.
// Ведущие нули сохраняются.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}
