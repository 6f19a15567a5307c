package security

import (
	"context"
	"errors"
	"time"

	"leetclash/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken signs a token carrying the player's identity. The username
// travels in the token so handlers can label players without a lookup.
func GenerateToken(userID, username, role string) (string, error) {
	claims := map[string]interface{}{
		"user_id":  userID,
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(config.AppConfig.JWTExp).Unix(),
		"iat":      time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims map[string]interface{}) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims map[string]interface{}) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

func GetUsernameFromClaims(claims map[string]interface{}) string {
	name, _ := claims["username"].(string)
	return name
}

// ParseToken verifies a raw token string, used where no Authorization header
// can be set (WebSocket upgrades pass the token as a query parameter).
func ParseToken(raw string) (jwt.MapClaims, error) {
	token, err := jwtauth.VerifyToken(TokenAuth, raw)
	if err != nil {
		return nil, err
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return nil, err
	}
	return jwt.MapClaims(claims), nil
}
