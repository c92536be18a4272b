package auth

import (
	"strings"
	"testing"
	"time"
)

func TestRememberTokenRoundTrip(t *testing.T) {
	a := NewTokenAuthority([]byte("test-secret"))

	token, err := a.CreateRememberToken("alice")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	username, err := a.VerifyRememberToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want %q", username, "alice")
	}
}

func TestRememberTokenTampered(t *testing.T) {
	a := NewTokenAuthority([]byte("test-secret"))

	token, err := a.CreateRememberToken("alice")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 JWT segments, got %d", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := a.VerifyRememberToken(tampered); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRememberTokenWrongSecret(t *testing.T) {
	issuer := NewTokenAuthority([]byte("secret-one"))
	verifier := NewTokenAuthority([]byte("secret-two"))

	token, err := issuer.CreateRememberToken("alice")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if _, err := verifier.VerifyRememberToken(token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRememberTokenExpired(t *testing.T) {
	a := NewTokenAuthority([]byte("test-secret"))

	issued := time.Now().UTC()
	a.now = func() time.Time { return issued }
	token, err := a.CreateRememberToken("alice")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Just inside the window.
	a.now = func() time.Time { return issued.Add(RememberTokenTTL - time.Minute) }
	if _, err := a.VerifyRememberToken(token); err != nil {
		t.Errorf("expected token valid inside window, got %v", err)
	}

	// Past the 30-day window.
	a.now = func() time.Time { return issued.Add(RememberTokenTTL + time.Minute) }
	if _, err := a.VerifyRememberToken(token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRememberTokenGarbage(t *testing.T) {
	a := NewTokenAuthority([]byte("test-secret"))

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := a.VerifyRememberToken(token); err != ErrInvalidToken {
			t.Errorf("VerifyRememberToken(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}
