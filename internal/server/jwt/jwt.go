// Package jwt выпускает и проверяет stateless токены сессии (HS256).
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL - время жизни токена сессии
const DefaultTTL = 24 * time.Hour

const issuer = "nodekeeper"

// ErrInvalidToken возвращается для любого непригодного токена:
// неверная подпись, истекший срок, чужой алгоритм, пустой subject
var ErrInvalidToken = errors.New("invalid token")

// Service provides session token issuance and verification
type Service struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

// NewService creates a new JWT service
// secret should be a cryptographically secure random string
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL возвращает время жизни выпускаемых токенов
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue создает токен для аккаунта.
// Возвращает токен и срок жизни в секундах.
func (s *Service) Issue(accountID string) (string, int64, error) {
	if accountID == "" {
		return "", 0, fmt.Errorf("account id cannot be empty")
	}

	now := s.now()
	claims := gojwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		Issuer:    issuer,
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, int64(s.ttl.Seconds()), nil
}

// Verify проверяет подпись и срок действия, возвращает ID аккаунта
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &gojwt.RegisteredClaims{}
	token, err := gojwt.ParseWithClaims(tokenString, claims, func(token *gojwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
