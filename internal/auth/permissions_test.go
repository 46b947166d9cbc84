package auth

import (
	"net/http"
	"testing"
)

func TestRoleGrants(t *testing.T) {
	catalog := DefaultCatalog()
	cases := []struct {
		role    Role
		pattern string
		want    bool
	}{
		{RoleAdministrador, "pacientes.delete", true},
		{RoleAdministrador, "seguridad.read", true},
		{RoleAdministrador, "usuarios.create", true},

		{RoleMedico, "recetas.create", true},
		{RoleMedico, "recetas.update", true},
		{RoleMedico, "recetas.delete", true},
		{RoleMedico, "historiales.update", true},
		{RoleMedico, "pacientes.read", true},
		{RoleMedico, "pacientes.delete", false},
		{RoleMedico, "usuarios.create", false},
		{RoleMedico, "seguridad.read", false},

		{RoleProfesional, "historiales.create", true},
		{RoleProfesional, "historiales.read", true},
		{RoleProfesional, "historiales.delete", false},
		{RoleProfesional, "recetas.read", false},
		{RoleProfesional, "pacientes.read", true},

		{RoleCuidador, "pacientes.read", true},
		{RoleCuidador, "pacientes.delete", false},
		{RoleCuidador, "recetas.read", true},
		{RoleCuidador, "recetas.create", false},
		{RoleCuidador, "directivas.read", true},
		{RoleCuidador, "directivas.update", false},
	}
	for _, tc := range cases {
		if got := catalog.RoleHasPermission(tc.role, tc.pattern); got != tc.want {
			t.Fatalf("RoleHasPermission(%s, %s)=%v, want %v", tc.role, tc.pattern, got, tc.want)
		}
	}
}

func TestRoleHasPermissionIsCaseSensitive(t *testing.T) {
	catalog := DefaultCatalog()
	if catalog.RoleHasPermission(RoleCuidador, "Pacientes.read") {
		t.Fatal("pattern matching must be case-sensitive")
	}
	if catalog.RoleHasPermission(RoleCuidador, "pacientes.READ") {
		t.Fatal("pattern matching must be case-sensitive")
	}
}

func TestUnknownRoleHasNoGrants(t *testing.T) {
	catalog := DefaultCatalog()
	if catalog.RoleHasPermission(Role("SuperUsuario"), "pacientes.read") {
		t.Fatal("unknown roles must not inherit grants")
	}
}

func TestWildcardGrammar(t *testing.T) {
	cases := []struct {
		grant   string
		pattern string
		want    bool
	}{
		{"recetas.*", "recetas.read", true},
		{"recetas.*", "recetas.delete", true},
		{"recetas.*", "recetas.", false},
		{"recetas.*", "recetasx.read", false},
		{"recetas.read", "recetas.read", true},
		{"recetas.read", "recetas.update", false},
	}
	for _, tc := range cases {
		if got := grantMatches(tc.grant, tc.pattern); got != tc.want {
			t.Fatalf("grantMatches(%q, %q)=%v, want %v", tc.grant, tc.pattern, got, tc.want)
		}
	}
}

func TestRequiredPermissionCollapsesIDSegments(t *testing.T) {
	catalog := DefaultCatalog()
	cases := []struct {
		method  string
		path    string
		pattern string
	}{
		{http.MethodGet, "/v1/recetas", "recetas.read"},
		{http.MethodGet, "/v1/recetas/123", "recetas.read"},
		{http.MethodGet, "/v1/recetas/123/", "recetas.read"},
		{http.MethodDelete, "/v1/recetas/5", "recetas.delete"},
		{http.MethodPut, "/v1/directivas/9", "directivas.update"},
		{http.MethodPost, "/v1/pacientes", "pacientes.create"},
		// Nested records collapse onto the resource family key.
		{http.MethodGet, "/v1/pacientes/7/historiales/3", "pacientes.read"},
		{http.MethodGet, "/v1/seguridad/eventos", "seguridad.read"},
	}
	for _, tc := range cases {
		pattern, ok := catalog.RequiredPermission(tc.method, tc.path)
		if !ok {
			t.Fatalf("%s %s: expected a mapped rule", tc.method, tc.path)
		}
		if pattern != tc.pattern {
			t.Fatalf("%s %s: got %q, want %q", tc.method, tc.path, pattern, tc.pattern)
		}
	}
}

// Unmapped routes intentionally resolve to "no rule", which the decision
// engine treats as permitted. This pins the backward-compatibility default
// so a route-table change cannot silently flip it.
func TestUnmappedRoutesHaveNoRule(t *testing.T) {
	catalog := DefaultCatalog()
	for _, path := range []string{"/v1/reportes", "/healthz", "/v1/auth/login"} {
		if pattern, ok := catalog.RequiredPermission(http.MethodGet, path); ok {
			t.Fatalf("expected %s to be unmapped, got rule %q", path, pattern)
		}
	}
}

func TestCatalogCopiesInputTables(t *testing.T) {
	grants := map[Role][]string{RoleCuidador: {"pacientes.read"}}
	rules := []RouteRule{{http.MethodGet, "/v1/pacientes", "pacientes.read"}}
	catalog := NewCatalog(grants, rules)

	grants[RoleCuidador][0] = "pacientes.*"
	if catalog.RoleHasPermission(RoleCuidador, "pacientes.delete") {
		t.Fatal("catalog must not share memory with caller tables")
	}
}
