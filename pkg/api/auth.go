package api

// Endpoint paths, relative to the configured base URL.
const (
	PathRegister  = "/register"
	PathLogin     = "/login"
	PathVerifyOTP = "/verify-otp"
	PathLogout    = "/logout"
	PathMe        = "/me"
	PathHealth    = "/health"
)

// Header names shared by client and server.
const (
	HeaderCSRFToken     = "X-CSRF-Token"
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`              // email пользователя
	Password string `json:"password,omitempty"` // не хранится сервером
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// VerifyOTPRequest представляет запрос на подтверждение одноразового кода
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// LogoutRequest представляет запрос на выход
type LogoutRequest struct {
	SessionToken string `json:"session_token,omitempty"`
	Email        string `json:"email,omitempty"`
}

// User представляет профиль пользователя в ответах сервера
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"` // RFC3339
	UpdatedAt string `json:"updated_at,omitempty"` // RFC3339
}

// AuthResponse is the payload returned by every auth endpoint.
// Any subset of the fields may be present:
//   - session_token + csrf_token + expires_at: a full session was issued
//   - csrf_token + expires_at: a pre-session CSRF token was issued
type AuthResponse struct {
	User         *User  `json:"user,omitempty"`
	CSRFToken    string `json:"csrf_token,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"` // RFC3339
	Message      string `json:"message,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	RequiresOTP  bool   `json:"requires_otp,omitempty"`
}

// HasSession reports whether the response carries a complete session triple.
func (r *AuthResponse) HasSession() bool {
	return r != nil && r.SessionToken != "" && r.CSRFToken != "" && r.ExpiresAt != ""
}

// HasCSRF reports whether the response carries a CSRF token with its expiry.
func (r *AuthResponse) HasCSRF() bool {
	return r != nil && r.CSRFToken != "" && r.ExpiresAt != ""
}

// MeResponse представляет ответ GET /me
type MeResponse struct {
	User      User   `json:"user"`
	ExpiresAt string `json:"expires_at"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
