package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// handleSecurityEvents serves the tail of the security log, most recent
// first. The route is mapped to seguridad.read, so only administrators
// reach it.
func (a *API) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.security == nil {
		writeError(w, r, http.StatusServiceUnavailable, "security log unavailable")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxEventLimit {
			n = maxEventLimit
		}
		limit = n
	}

	events, err := a.security.RecentEvents(limit, r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "security log read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleSuspiciousActivity runs the brute-force heuristic over the trailing
// window (default one hour).
func (a *API) handleSuspiciousActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.security == nil {
		writeError(w, r, http.StatusServiceUnavailable, "security log unavailable")
		return
	}

	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, r, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	report, err := a.security.SuspiciousActivity(window)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "security log read failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
