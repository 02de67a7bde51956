package cloudbeds

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// The OAuth state parameter is a short-lived signed token rather than a bare
// random string, so the callback can verify the flow started here without
// keeping server-side state.

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func NewStateToken(secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := stateClaims{
		Nonce: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{"cloudbeds-oauth"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func VerifyStateToken(tokenString, secret string) error {
	tok, err := jwt.ParseWithClaims(tokenString, &stateClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	if !tok.Valid {
		return errors.New("invalid state token")
	}
	return nil
}
