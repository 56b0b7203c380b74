package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestParseCredential(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice@lab.io",
		"exp": exp.Unix(),
	}).SignedString([]byte("someone-else's-key"))
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseCredential(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "alice@lab.io" || !claims.ExpiresAt.Equal(exp) || !claims.IssuedAt.IsZero() {
		t.Errorf("claims = %+v", claims)
	}

	for _, bad := range []string{"", "opaque-token", "a.b.c"} {
		if _, err := ParseCredential(bad); !errors.Is(err, ErrMalformedCredential) {
			t.Errorf("ParseCredential(%q) = %v", bad, err)
		}
	}

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if _, err := ParseCredential(noSub); !errors.Is(err, ErrMalformedCredential) {
		t.Errorf("credential without subject = %v", err)
	}
}
