package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/OdoTrack/OdoTrack/internal/common/auth"
	"github.com/OdoTrack/OdoTrack/internal/common/config"
	"github.com/OdoTrack/OdoTrack/internal/common/logger"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		Enabled:     true,
		JWTSecret:   "test-secret",
		Issuer:      "odotrack",
		Audience:    "odotrack",
		PublicPaths: []string{"/healthz"},
		RBAC: map[string][]string{
			"/v1/vehicles": {"fleet"},
		},
	}
}

func authHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		ai, ok := AuthFromContext(r.Context())
		if !ok {
			t.Errorf("expected auth info in ctx for %s", r.URL.Path)
		}
		if ai.Subject == "" {
			t.Errorf("expected subject in auth info")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPAuthMiddleware(t *testing.T) {
	cfg := testAuthCfg()
	h := HTTPChain(authHandler(t), HTTPAuthMiddleware(cfg, logger.Nop()))

	// 公开路径无 token 放行
	if rec := doRequest(h, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("public path: expected 200, got %d", rec.Code)
	}

	// 无 token 拒绝
	if rec := doRequest(h, "/v1/vehicles", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", rec.Code)
	}

	// 伪造 token 拒绝
	if rec := doRequest(h, "/v1/vehicles", "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rec.Code)
	}

	// 角色不足：鉴权通过但 RBAC 拒绝
	noRole, _, err := auth.GenerateAccessToken(cfg, "u-1", []string{"viewer"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if rec := doRequest(h, "/v1/vehicles", noRole); rec.Code != http.StatusForbidden {
		t.Fatalf("missing role: expected 403, got %d", rec.Code)
	}

	// 角色命中放行
	ok, _, err := auth.GenerateAccessToken(cfg, "u-1", []string{"fleet"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if rec := doRequest(h, "/v1/vehicles/abc/drive", ok); rec.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestHTTPAuthMiddlewareDisabled(t *testing.T) {
	cfg := testAuthCfg()
	cfg.Enabled = false
	h := HTTPChain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		HTTPAuthMiddleware(cfg, logger.Nop()),
	)
	if rec := doRequest(h, "/v1/vehicles", ""); rec.Code != http.StatusOK {
		t.Fatalf("disabled auth must pass through, got %d", rec.Code)
	}
}

func TestRequiredRolesLongestPrefixWins(t *testing.T) {
	rbac := map[string][]string{
		"/v1":          {"any"},
		"/v1/vehicles": {"fleet"},
	}
	got := requiredRoles(rbac, "/v1/vehicles/x")
	if len(got) != 1 || got[0] != "fleet" {
		t.Fatalf("expected longest prefix roles, got %v", got)
	}
}
