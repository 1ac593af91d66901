package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SchedulerClaims represents claims on HMAC-signed tokens issued to
// automation clients such as the external scheduler.
type SchedulerClaims struct {
	Component string `json:"component"`
	jwt.RegisteredClaims
}

// ValidateToken validates an HMAC-signed token
func ValidateToken(tokenString, secret string) (*SchedulerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SchedulerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SchedulerClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// GenerateToken creates a new HMAC-signed token (useful for testing)
func GenerateToken(component, secret string) (string, error) {
	claims := SchedulerClaims{
		Component: component,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "scribesync-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
