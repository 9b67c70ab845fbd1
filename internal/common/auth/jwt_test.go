package auth

import (
	"testing"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "odotrack",
		Audience:  "odotrack",
	}
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	cfg := testAuthConfig()

	token, exp, err := GenerateAccessToken(cfg, "u-1", []string{"fleet"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if exp.Before(time.Now()) {
		t.Fatalf("expected exp in future")
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "u-1" {
		t.Fatalf("subject mismatch: %s", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "fleet" {
		t.Fatalf("roles mismatch: %#v", claims.Roles)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := testAuthConfig()
	token, _, err := GenerateAccessToken(cfg, "u-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	other := cfg
	other.JWTSecret = "other-secret"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected parse failure with wrong secret")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testAuthConfig()
	token, _, err := GenerateAccessToken(cfg, "u-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
}

func TestGenerateAccessTokenValidation(t *testing.T) {
	cfg := testAuthConfig()
	if _, _, err := GenerateAccessToken(cfg, "", nil, time.Hour); err == nil {
		t.Fatalf("expected empty subject to fail")
	}
	cfg.JWTSecret = ""
	if _, _, err := GenerateAccessToken(cfg, "u-1", nil, time.Hour); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}
