package httpapi

import (
	"net/http"
	"time"

	"clinsalud.org/internal/audit"
	"clinsalud.org/internal/auth"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"nombre"`
	Role     string `json:"rol"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if a.security != nil {
			a.security.Record(r.Context(), audit.KindLoginFailure, map[string]any{
				"ip":    clientIP(r),
				"email": req.Email,
			})
		}
		handleAuthError(w, r, err)
		return
	}

	if a.security != nil {
		a.security.Record(r.Context(), audit.KindLoginSuccess, map[string]any{
			"ip":      clientIP(r),
			"user_id": session.Identity.ID,
			"email":   session.Identity.Email,
		})
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.Identity,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.authSvc.Register(r.Context(), req.Email, req.Password, req.Name, auth.Role(req.Role))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if a.security != nil {
		a.security.Record(r.Context(), audit.KindRegister, map[string]any{
			"ip":      clientIP(r),
			"user_id": session.Identity.ID,
			"email":   session.Identity.Email,
			"role":    string(session.Identity.Role),
		})
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.Identity,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	session, err := a.authSvc.Refresh(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if a.security != nil {
		a.security.Record(r.Context(), audit.KindTokenRefreshed, map[string]any{
			"ip":      clientIP(r),
			"user_id": session.Identity.ID,
		})
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      session.Identity,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authSvc.Logout(r.Context(), token); err != nil {
		handleAuthError(w, r, err)
		return
	}

	if a.security != nil {
		fields := map[string]any{"ip": clientIP(r)}
		if identity, ok := auth.IdentityFromContext(r.Context()); ok {
			fields["user_id"] = identity.ID
		}
		a.security.Record(r.Context(), audit.KindLogout, fields)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
