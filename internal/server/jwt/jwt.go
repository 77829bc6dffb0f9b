// Package jwt mints and validates session tokens.
// A session token is an HS256 JWT whose sid claim names the server-side session.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Issuer is written to the iss claim and required on parse
const Issuer = "authflow"

// ErrInvalidToken is returned for any token that fails parsing or validation
var ErrInvalidToken = errors.New("invalid session token")

// Claims represents session token claims
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	gojwt.RegisteredClaims
}

// Service provides session token generation and validation
type Service struct {
	now    func() time.Time
	secret []byte
}

// NewService creates a new JWT service
// secret should be a cryptographically secure random string
func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue creates a signed session token that expires at expiresAt
func (s *Service) Issue(sessionID, userID, email string, expiresAt time.Time) (string, error) {
	now := s.now()

	claims := Claims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate проверяет подпись и срок действия токена
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return s.parse(tokenString,
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuer(Issuer),
		gojwt.WithTimeFunc(s.now))
}

// ValidateSignature проверяет только подпись, игнорируя срок действия.
// Используется при logout: истекший токен все еще указывает на сессию для удаления
func (s *Service) ValidateSignature(tokenString string) (*Claims, error) {
	return s.parse(tokenString, gojwt.WithoutClaimsValidation())
}

func (s *Service) parse(tokenString string, opts ...gojwt.ParserOption) (*Claims, error) {
	opts = append(opts, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(tokenString, claims, func(*gojwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing sid claim", ErrInvalidToken)
	}

	return claims, nil
}
