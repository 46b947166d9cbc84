package auth

import (
	"context"
	"fmt"
	"time"
)

// Role is one of the four fixed account roles. The set is closed: unknown
// values are rejected, never defaulted.
type Role string

const (
	RoleAdministrador Role = "Administrador"
	RoleMedico        Role = "Medico"
	RoleProfesional   Role = "Profesional"
	RoleCuidador      Role = "Cuidador"
)

// roleRank orders roles for minimum-role checks. Independent from the
// permission-pattern system.
var roleRank = map[Role]int{
	RoleCuidador:      1,
	RoleProfesional:   2,
	RoleMedico:        3,
	RoleAdministrador: 4,
}

// ParseRole validates a stored or claimed role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role ranks at or above min. Unknown roles
// never satisfy a minimum.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// Identity is the authenticated user for the lifetime of one request. It is
// rebuilt from the user store on every token verification, so a deleted or
// role-changed user cannot ride a stale token.
type Identity struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	DisplayName string `json:"name"`
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is the stored account row backing an Identity.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	DisplayName  string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the stored row into the request-scoped view.
func (u *User) Identity() Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName,
	}
}

// UserStore is the external user-store collaborator.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
