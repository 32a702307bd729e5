package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/congo-pay/swish/internal/identity"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewService("secret", "sandbox", time.Hour)
	token, exp, err := svc.Issue(identity.User{ID: "u1", PhoneNumber: "+46701234567"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %v", exp)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Phone != "+46701234567" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	svc := NewService("secret", "sandbox", time.Hour)
	token, _, err := NewService("other", "sandbox", time.Hour).Issue(identity.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for foreign secret, got %v", err)
	}

	expired := NewService("secret", "sandbox", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err = expired.Issue(identity.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}

	if _, err := svc.Parse("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to be rejected, got %v", err)
	}
}
