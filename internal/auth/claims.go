package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Claims полезная нагрузка токена бэкенда
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims читает полезную нагрузку токена без проверки подписи.
// Подпись проверяет бэкенд; клиенту нагрузка нужна только чтобы заранее
// знать роль и срок действия сохраненного токена.
func ParseClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("ошибка при разборе токена: %w", err)
	}
	return claims, nil
}
