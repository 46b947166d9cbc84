package httpapi

import (
	"net/http"

	"clinsalud.org/internal/audit"
	"clinsalud.org/internal/auth"
	"clinsalud.org/internal/obs"
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/register",
	"/",
}

// withAuth resolves the bearer identity for every non-public request. The
// resolved identity and the raw token travel on the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, _, err := a.resolver.Resolve(r.Context(), r.Header)
		if err != nil {
			obs.ObserveAuthDecision("deny_unauthenticated")
			if a.security != nil {
				a.security.Record(r.Context(), audit.KindAuthFailure, map[string]any{
					"ip":    clientIP(r),
					"path":  r.URL.Path,
					"error": err.Error(),
				})
			}
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		if token, tokenErr := auth.ExtractBearerToken(r.Header.Get("Authorization")); tokenErr == nil {
			ctx = auth.ContextWithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRouteAuthz runs the role-permission check for the route. Ownership
// checks on individual records happen later, inside the record services.
func (a *API) withRouteAuthz(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var identity *auth.Identity
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			identity = &id
		}

		d := a.engine.Authorize(identity, r.Method, r.URL.Path)
		if d.Allowed {
			if d.Rule == "unmapped" {
				obs.ObserveAuthDecision("allow_unmapped")
			} else {
				obs.ObserveAuthDecision("allow")
			}
			next.ServeHTTP(w, r)
			return
		}

		decision := "deny_permission"
		if d.Status == http.StatusUnauthorized {
			decision = "deny_unauthenticated"
		}
		obs.ObserveAuthDecision(decision)
		if a.security != nil {
			fields := map[string]any{
				"ip":     clientIP(r),
				"method": r.Method,
				"path":   r.URL.Path,
				"rule":   d.Rule,
			}
			if identity != nil {
				fields["user_id"] = identity.ID
				fields["role"] = string(identity.Role)
			}
			a.security.Record(r.Context(), audit.KindAccessDenied, fields)
		}
		writeError(w, r, d.Status, d.Reason)
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
