package security

import (
	"errors"
	"time"

	"sheet_judge/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// NewTokenAuth returns the HS256 signer/verifier shared by the router and problemctl.
func NewTokenAuth(key []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", key, nil)
}

func GenerateToken(tokenAuth *jwtauth.JWTAuth, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	_, tokenString, err := tokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

// GetUserRoleFromClaims defaults to model.RoleUser; tokens issued by the old frontend carry no role.
func GetUserRoleFromClaims(claims jwt.MapClaims) string {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return model.RoleUser
	}
	return role
}
