package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linemk/parfume-shop/internal/domain/models"
)

// TokenTypeAccess единственный тип токена, который принимает API
const TokenTypeAccess = "access"

var ErrInvalidToken = errors.New("invalid token")

// NewToken генерирует access-токен для пользователя с заданным временем жизни.
func NewToken(user *models.User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"type": TokenTypeAccess,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken проверяет подпись, срок и тип токена и возвращает id пользователя из "sub".
func ParseToken(tokenStr, secret string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	if typ, _ := claims["type"].(string); typ != TokenTypeAccess {
		return 0, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, fmt.Errorf("%w: sub not found", ErrInvalidToken)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid user id", ErrInvalidToken)
	}
	return userID, nil
}
