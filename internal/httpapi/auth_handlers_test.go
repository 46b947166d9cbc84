package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"clinsalud.org/internal/audit"
	"clinsalud.org/internal/auth"
)

func decodeTokenClaims(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token is not three segments: %q", token)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	return claims
}

func TestLoginEndToEnd(t *testing.T) {
	h := newTestAPI(t)
	seeded := h.seedUser(t, "medico@clinsalud.org", "s3cret-pass", auth.RoleMedico)

	session := h.login(t, "medico@clinsalud.org", "s3cret-pass", "203.0.113.20")
	if session.Token == "" {
		t.Fatal("expected a token")
	}
	if session.User.ID != seeded.ID || session.User.Role != auth.RoleMedico {
		t.Fatalf("unexpected session user: %+v", session.User)
	}

	claims := decodeTokenClaims(t, session.Token)
	if claims["role"] != "Medico" {
		t.Fatalf("role claim=%v, want Medico", claims["role"])
	}
	exp, iat := claims["exp"].(float64), claims["iat"].(float64)
	if exp-iat != 86400 {
		t.Fatalf("session lifetime=%v seconds, want 86400", exp-iat)
	}

	// The token works on a protected route.
	rec := h.do(t, http.MethodGet, "/v1/auth/me", nil, session.Token, "203.0.113.20")
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status=%d", rec.Code)
	}
	var me auth.Identity
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Email != "medico@clinsalud.org" {
		t.Fatalf("unexpected identity: %+v", me)
	}
}

func TestLoginFailureIsOpaqueAndAudited(t *testing.T) {
	h := newTestAPI(t)
	h.seedUser(t, "medico@clinsalud.org", "s3cret-pass", auth.RoleMedico)

	wrongPassword := h.do(t, http.MethodPost, "/v1/auth/login",
		credentialsRequest{Email: "medico@clinsalud.org", Password: "bad-pass"}, "", "203.0.113.20")
	unknownEmail := h.do(t, http.MethodPost, "/v1/auth/login",
		credentialsRequest{Email: "ghost@clinsalud.org", Password: "bad-pass"}, "", "203.0.113.20")

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("statuses=%d,%d, want 401 for both", wrongPassword.Code, unknownEmail.Code)
	}
	// Identical envelope regardless of which check failed.
	var a, b map[string]any
	if err := json.Unmarshal(wrongPassword.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(unknownEmail.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a["success"] != false || a["message"] != b["message"] {
		t.Fatalf("failure responses differ: %v vs %v", a, b)
	}

	events, err := h.security.RecentEvents(10, audit.KindLoginFailure)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 login failure events, got %d", len(events))
	}
}

func TestRegisterAndDuplicate(t *testing.T) {
	h := newTestAPI(t)

	payload := registerRequest{
		Email:    "nueva@clinsalud.org",
		Password: "long-enough-pass",
		Name:     "Nueva Cuidadora",
		Role:     "Cuidador",
	}
	rec := h.do(t, http.MethodPost, "/v1/auth/register", payload, "", "203.0.113.20")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var session sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.User.Role != auth.RoleCuidador {
		t.Fatalf("role=%s, want Cuidador", session.User.Role)
	}

	rec = h.do(t, http.MethodPost, "/v1/auth/register", payload, "", "203.0.113.20")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status=%d, want 409", rec.Code)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	h := newTestAPI(t)
	rec := h.do(t, http.MethodPost, "/v1/auth/register", registerRequest{
		Email:    "x@clinsalud.org",
		Password: "long-enough-pass",
		Name:     "X",
		Role:     "SuperAdmin",
	}, "", "203.0.113.20")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
}

func TestRefreshIssuesFreshToken(t *testing.T) {
	h := newTestAPI(t)
	h.seedUser(t, "medico@clinsalud.org", "s3cret-pass", auth.RoleMedico)
	session := h.login(t, "medico@clinsalud.org", "s3cret-pass", "203.0.113.20")

	rec := h.do(t, http.MethodPost, "/v1/auth/refresh", nil, session.Token, "203.0.113.20")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var refreshed sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	oldClaims := decodeTokenClaims(t, session.Token)
	newClaims := decodeTokenClaims(t, refreshed.Token)
	if oldClaims["jti"] == newClaims["jti"] {
		t.Fatal("refreshed token must carry a fresh jti")
	}
	if refreshed.User.Email != "medico@clinsalud.org" {
		t.Fatalf("unexpected user: %+v", refreshed.User)
	}
}

func TestLogout(t *testing.T) {
	h := newTestAPI(t)
	h.seedUser(t, "medico@clinsalud.org", "s3cret-pass", auth.RoleMedico)
	session := h.login(t, "medico@clinsalud.org", "s3cret-pass", "203.0.113.20")

	rec := h.do(t, http.MethodPost, "/v1/auth/logout", nil, session.Token, "203.0.113.20")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status=%d", rec.Code)
	}
	events, err := h.security.RecentEvents(10, audit.KindLogout)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one logout event, got %d", len(events))
	}
}
