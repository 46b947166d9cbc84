package auth

import (
	"net/http"
	"strings"
)

// Permission pattern grammar: "recurso.accion" exact, or "recurso.*" which
// matches any action on the resource. Matching is case-sensitive.

// RouteRule binds a method and path family to a required permission.
type RouteRule struct {
	Method     string
	Path       string
	Permission string
}

// Catalog is the static role→pattern and route→pattern table. It is built
// once at startup and never mutated afterwards; every accessor works on
// private copies.
type Catalog struct {
	grants map[Role][]string
	routes map[routeKey]string
}

type routeKey struct {
	method string
	path   string
}

// NewCatalog copies the supplied tables into an immutable catalog.
func NewCatalog(grants map[Role][]string, rules []RouteRule) *Catalog {
	c := &Catalog{
		grants: make(map[Role][]string, len(grants)),
		routes: make(map[routeKey]string, len(rules)),
	}
	for role, patterns := range grants {
		copied := make([]string, len(patterns))
		copy(copied, patterns)
		c.grants[role] = copied
	}
	for _, rule := range rules {
		c.routes[routeKey{method: rule.Method, path: rule.Path}] = rule.Permission
	}
	return c
}

// DefaultCatalog returns the production table for the four fixed roles.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultGrants(), defaultRoutes())
}

func defaultGrants() map[Role][]string {
	return map[Role][]string{
		RoleAdministrador: {
			"pacientes.*", "cuidadores.*", "medicos.*", "profesionales.*",
			"historiales.*", "recetas.*", "directivas.*", "usuarios.*",
			"seguridad.*",
		},
		RoleMedico: {
			"pacientes.read", "pacientes.update",
			"historiales.*", "recetas.*", "directivas.*",
			"cuidadores.read", "profesionales.read",
		},
		RoleProfesional: {
			"pacientes.read",
			"historiales.read", "historiales.create",
			"directivas.read", "cuidadores.read",
		},
		RoleCuidador: {
			"pacientes.read", "historiales.read",
			"recetas.read", "directivas.read",
		},
	}
}

func defaultRoutes() []RouteRule {
	var rules []RouteRule
	for _, family := range []string{
		"pacientes", "cuidadores", "medicos", "profesionales",
		"historiales", "recetas", "directivas", "usuarios",
	} {
		base := "/v1/" + family
		rules = append(rules,
			RouteRule{http.MethodGet, base, family + ".read"},
			RouteRule{http.MethodPost, base, family + ".create"},
			RouteRule{http.MethodPut, base, family + ".update"},
			RouteRule{http.MethodDelete, base, family + ".delete"},
		)
	}
	rules = append(rules,
		RouteRule{http.MethodGet, "/v1/seguridad/eventos", "seguridad.read"},
		RouteRule{http.MethodGet, "/v1/seguridad/actividad", "seguridad.read"},
	)
	return rules
}

// RequiredPermission resolves the pattern guarding (method, path). Trailing
// identifier segments are stripped until a route key matches, collapsing
// "/v1/recetas/42" onto the "/v1/recetas" family. A false return means the
// route is unmapped; callers treat that as permitted, a deliberate
// backward-compatibility default pinned by tests.
func (c *Catalog) RequiredPermission(method, path string) (string, bool) {
	p := strings.TrimRight(path, "/")
	if p == "" {
		p = "/"
	}
	for {
		if pattern, ok := c.routes[routeKey{method: method, path: p}]; ok {
			return pattern, true
		}
		i := strings.LastIndexByte(p, '/')
		if i <= 0 {
			return "", false
		}
		p = p[:i]
	}
}

// RoleHasPermission reports whether the role's grants cover the pattern.
func (c *Catalog) RoleHasPermission(role Role, pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, grant := range c.grants[role] {
		if grantMatches(grant, pattern) {
			return true
		}
	}
	return false
}

// grantMatches applies the wildcard grammar: "recurso.*" covers any
// non-empty action under recurso; everything else is an exact match.
func grantMatches(grant, pattern string) bool {
	if grant == pattern {
		return true
	}
	if !strings.HasSuffix(grant, ".*") {
		return false
	}
	prefix := grant[:len(grant)-1] // keep the dot
	return strings.HasPrefix(pattern, prefix) && len(pattern) > len(prefix)
}
