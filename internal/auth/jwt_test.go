package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTSignVerifyRoundTrip(t *testing.T) {
	j := JWT{Secret: []byte("secret"), TokenTTL: time.Minute}

	token, expiresAt, err := j.Sign("user-1")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	sub, err := j.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected subject user-1, got %q", sub)
	}
}

func TestJWTVerifyRejects(t *testing.T) {
	j := JWT{Secret: []byte("secret")}

	other, _, _ := JWT{Secret: []byte("other")}.Sign("user-1")
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}).SignedString([]byte("secret"))
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "user-1",
	}}).SignedString([]byte("secret"))

	cases := map[string]string{
		"wrong secret": other,
		"expired":      expired,
		"no subject":   noSubject,
		"wrong alg":    wrongAlg,
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := j.Verify(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
