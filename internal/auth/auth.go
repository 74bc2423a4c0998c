// Package auth выпускает и проверяет JWT сессии и переносит
// идентификатор пользователя через context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ButyrinIA/bookblog/internal/clock"
	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptyToken возвращается Parse для пустого заголовка
var ErrEmptyToken = errors.New("пустой токен")

// Claims - полезная нагрузка JWT
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer выпускает и проверяет токены HS256
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewIssuer создает Issuer; срок жизни токена отсчитывается по часам c
func NewIssuer(secret string, ttl time.Duration, c clock.Clock) *Issuer {
	if c == nil {
		c = clock.Real{}
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: c}
}

// Issue выпускает токен для пользователя
func (i *Issuer) Issue(userID, username string) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse принимает токен как есть или заголовок вида "Bearer <token>".
func (i *Issuer) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return nil, ErrEmptyToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID кладет id пользователя в контекст
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext возвращает пустую строку для анонимного запроса.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
