package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"clinsalud.org/internal/auth"
	"clinsalud.org/internal/records"
)

func identityPtr(r *http.Request) *auth.Identity {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

// pathID parses the trailing record id from /v1/<resource>/<id>.
func pathID(path, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryPacienteID(r *http.Request) int64 {
	raw := r.URL.Query().Get("id_paciente")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (a *API) handleRecetas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := a.records.ListRecetas(r.Context(), queryPacienteID(r))
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		if list == nil {
			list = []records.Receta{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"recetas": list})
	case http.MethodPost:
		var in records.RecetaInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		receta, err := a.records.CreateReceta(r.Context(), identityPtr(r), in)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, receta)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRecetaByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/v1/recetas/")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid record id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		receta, err := a.records.GetReceta(r.Context(), id)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receta)
	case http.MethodPut:
		var in records.RecetaInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		receta, err := a.records.UpdateReceta(r.Context(), identityPtr(r), id, in)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, receta)
	case http.MethodDelete:
		if err := a.records.DeleteReceta(r.Context(), identityPtr(r), id); err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleDirectivas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := a.records.ListDirectivas(r.Context(), queryPacienteID(r))
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		if list == nil {
			list = []records.Directiva{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"directivas": list})
	case http.MethodPost:
		var in records.DirectivaInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		directiva, err := a.records.CreateDirectiva(r.Context(), identityPtr(r), in)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, directiva)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleDirectivaByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/v1/directivas/")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid record id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		directiva, err := a.records.GetDirectiva(r.Context(), id)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, directiva)
	case http.MethodPut:
		var in records.DirectivaInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		directiva, err := a.records.UpdateDirectiva(r.Context(), identityPtr(r), id, in)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, directiva)
	case http.MethodDelete:
		if err := a.records.DeleteDirectiva(r.Context(), identityPtr(r), id); err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
