// Package httpapi is the HTTP surface of the service: routing, middleware
// and the JSON handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"clinsalud.org/internal/audit"
	"clinsalud.org/internal/auth"
	"clinsalud.org/internal/obs"
	"clinsalud.org/internal/ratelimit"
	"clinsalud.org/internal/records"
)

const maxBodyBytes = 1 << 20

// ReadyProbe checks the service's backing dependencies.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps carries the collaborators the HTTP layer wires together.
type Deps struct {
	Ready    ReadyProbe
	Version  string
	Auth     *auth.Service
	Resolver *auth.Resolver
	Engine   *auth.Engine
	Records  *records.Service
	Limiter  *ratelimit.Limiter
	Security *audit.Log
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	authSvc    *auth.Service
	resolver   *auth.Resolver
	engine     *auth.Engine
	records    *records.Service
	limiter    *ratelimit.Limiter
	security   *audit.Log
}

func New(d Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: d.Ready,
		version:    d.Version,
		authSvc:    d.Auth,
		resolver:   d.Resolver,
		engine:     d.Engine,
		records:    d.Records,
		limiter:    d.Limiter,
		security:   d.Security,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// account lifecycle
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	// clinical records under the ownership overlay
	a.mux.HandleFunc("/v1/recetas", a.handleRecetas)
	a.mux.HandleFunc("/v1/recetas/", a.handleRecetaByID)
	a.mux.HandleFunc("/v1/directivas", a.handleDirectivas)
	a.mux.HandleFunc("/v1/directivas/", a.handleDirectivaByID)

	// security log, admin only
	a.mux.HandleFunc("/v1/seguridad/eventos", a.handleSecurityEvents)
	a.mux.HandleFunc("/v1/seguridad/actividad", a.handleSuspiciousActivity)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. Ordering matters:
// the rate limiter sees every request, authentication runs before route
// authorization, and everything inside the request id scope logs with it.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withRouteAuthz(h)
	h = a.withAuth(h)
	h = a.withRateLimit(h)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "clinsalud-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "clinsalud-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
