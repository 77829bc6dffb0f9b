package models

import "time"

// User представляет пользователя в системе
type User struct {
	CreatedAt  time.Time `json:"created_at"`  // время создания
	UpdatedAt  time.Time `json:"updated_at"`  // время последнего обновления
	ID         string    `json:"id"`          // UUID пользователя
	Email      string    `json:"email"`       // уникальный email в нижнем регистре
	IsVerified bool      `json:"is_verified"` // email подтвержден хотя бы одним OTP
}

// OTP представляет ожидающий подтверждения одноразовый код.
// На один email хранится не больше одного кода: новый login заменяет старый.
type OTP struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время выдачи
	Email     string    `json:"email"`      // email, которому выдан код
	CodeHash  string    `json:"code_hash"`  // bcrypt хеш кода
	CSRFToken string    `json:"csrf_token"` // pre-session CSRF токен, выданный вместе с кодом
}

// Expired reports whether the code is no longer usable at now
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Session представляет серверную сессию, созданную после проверки OTP
type Session struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	ID        string    `json:"id"`         // UUID сессии (sid в session token)
	UserID    string    `json:"user_id"`    // ID пользователя
	Email     string    `json:"email"`      // email пользователя
	CSRFToken string    `json:"csrf_token"` // CSRF токен, привязанный к сессии
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
