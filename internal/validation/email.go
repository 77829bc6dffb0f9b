package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// EmailPattern определяет допустимый формат email.
// Намеренно простой: local@domain.tld без пробелов
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// OTPPattern определяет формат одноразового кода: ровно 6 цифр
var OTPPattern = regexp.MustCompile(`^[0-9]{6}$`)

const (
	// MaxEmailLen максимальная длина email (RFC 5321)
	MaxEmailLen = 254
	// OTPLength длина одноразового кода
	OTPLength = 6
)

// NormalizeEmail приводит email к каноническому виду: без пробелов по краям, в нижнем регистре
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет, что email соответствует требованиям
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}

	if !EmailPattern.MatchString(email) {
		return fmt.Errorf("email must look like name@example.com")
	}

	return nil
}

// ValidateOTP проверяет формат одноразового кода
func ValidateOTP(code string) error {
	if code == "" {
		return fmt.Errorf("OTP cannot be empty")
	}

	if !OTPPattern.MatchString(code) {
		return fmt.Errorf("OTP must be exactly %d digits", OTPLength)
	}

	return nil
}
