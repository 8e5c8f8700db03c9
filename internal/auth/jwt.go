package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the bearer token claims issued by the external sign-in service. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`

	jwt.RegisteredClaims
}

// JWT verifies (and, for tooling and tests, signs) HS256 bearer tokens.
type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (j JWT) Sign(userID string) (string, time.Time, error) {
	now := time.Now().UTC()
	ttl := j.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	expiresAt := now.Add(ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

// Verify checks the signature and time claims and returns the subject.
func (j JWT) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	})
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	sub := strings.TrimSpace(c.Subject)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}
