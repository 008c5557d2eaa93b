package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in a kiosk session token
type JWTClaims struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // always "kiosk"
	jwt.RegisteredClaims
}

// SessionTokenTTL bounds how long a kiosk stays connected on one token.
const SessionTokenTTL = 24 * time.Hour

var (
	jwtSecret []byte

	ErrNoSecret = errors.New("jwt secret not configured")
)

// Configure sets the signing secret. Must be called before issuing or
// validating tokens.
func Configure(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateSessionToken generates a JWT token for a kiosk session
func GenerateSessionToken(sessionID string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", ErrNoSecret
	}

	claims := &JWTClaims{
		SessionID: sessionID,
		Role:      "kiosk",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(SessionTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, ErrNoSecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
