package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/renthive/renthive-backend/internal/models"
)

const tokenTTL = time.Hour * 24 * 7

// Claims is what the API needs from a validated token.
type Claims struct {
	UserID   uint
	Email    string
	UserType models.UserType
}

func GenerateToken(user *models.User, secret string) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID,
		"email":    user.Email,
		"userType": user.UserType,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return nil, errors.New("token is missing the user id")
	}
	userType, _ := claims["userType"].(string)
	email, _ := claims["email"].(string)

	return &Claims{
		UserID:   uint(id),
		Email:    email,
		UserType: models.UserType(userType),
	}, nil
}
