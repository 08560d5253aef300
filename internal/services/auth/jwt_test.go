package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	manager := NewJWTManager("secret", "fitmatch-id", time.Minute)
	manager.now = func() time.Time { return now }

	token, expiresAt, err := manager.GenerateAccessToken(42, "sid-1", "user")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if !expiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: got %v", expiresAt)
	}

	claims, err := manager.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != 42 || claims.SID != "sid-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	issuer := NewJWTManager("secret", "fitmatch-id", time.Minute)
	issuer.now = func() time.Time { return now }
	token, _, err := issuer.GenerateAccessToken(42, "", "")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	otherSecret := NewJWTManager("other", "fitmatch-id", time.Minute)
	otherSecret.now = issuer.now
	otherIssuer := NewJWTManager("secret", "someone-else", time.Minute)
	otherIssuer.now = issuer.now
	later := NewJWTManager("secret", "fitmatch-id", time.Minute)
	later.now = func() time.Time { return now.Add(2 * time.Minute) }

	tests := []struct {
		name    string
		manager *JWTManager
		raw     string
	}{
		{name: "empty", manager: issuer, raw: "  "},
		{name: "garbage", manager: issuer, raw: "not-a-token"},
		{name: "wrong secret", manager: otherSecret, raw: token},
		{name: "wrong issuer", manager: otherIssuer, raw: token},
		{name: "expired", manager: later, raw: token},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.manager.ParseAccessToken(tc.raw); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestGenerateValidation(t *testing.T) {
	if _, _, err := NewJWTManager("secret", "", 0).GenerateAccessToken(0, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := NewJWTManager("", "", 0).GenerateAccessToken(1, "", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatalf("expected no identity in empty context")
	}

	claims := AccessClaims{UserID: 7, Role: "user"}
	ctx := WithIdentity(context.Background(), claims.Identity())
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID != 7 || identity.Role != "user" {
		t.Fatalf("unexpected identity: %+v ok=%v", identity, ok)
	}
}
