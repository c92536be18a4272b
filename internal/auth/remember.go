package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RememberTokenTTL is the maximum age of a remember token.
const RememberTokenTTL = 30 * 24 * time.Hour

// ErrInvalidToken covers malformed, tampered, and expired remember tokens.
var ErrInvalidToken = errors.New("invalid remember token")

// TokenAuthority issues and verifies remember tokens. Tokens are HS256 JWTs
// signed with a server-held secret; a client cannot mint one for an arbitrary
// username.
type TokenAuthority struct {
	secret []byte
	now    func() time.Time
}

func NewTokenAuthority(secret []byte) *TokenAuthority {
	return &TokenAuthority{secret: secret, now: time.Now}
}

// CreateRememberToken returns a signed token binding the username with a
// 30-day expiry and a random nonce.
func (a *TokenAuthority) CreateRememberToken(username string) (string, error) {
	now := a.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(RememberTokenTTL)),
		ID:        uuid.NewString(),
	})
	return token.SignedString(a.secret)
}

// VerifyRememberToken returns the username bound to a valid token. The caller
// still has to confirm the account exists before establishing a session.
func (a *TokenAuthority) VerifyRememberToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
