// Package records holds the mutable clinical records guarded by the
// ownership overlay: prescriptions (recetas) and advance directives
// (directivas).
package records

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidInput = errors.New("records: invalid input")
)

// Receta is a prescription. MedicoID is the authoring physician and is the
// owner for mutation checks.
type Receta struct {
	ID           int64     `json:"id"`
	PacienteID   int64     `json:"id_paciente"`
	MedicoID     int64     `json:"id_medico"`
	Medicamento  string    `json:"medicamento"`
	Dosis        string    `json:"dosis"`
	Indicaciones string    `json:"indicaciones,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Directiva is an advance care directive. CreatedBy is the authoring user
// and is the owner for mutation checks.
type Directiva struct {
	ID         int64     `json:"id"`
	PacienteID int64     `json:"id_paciente"`
	CreatedBy  int64     `json:"created_by"`
	Tipo       string    `json:"tipo"`
	Detalle    string    `json:"detalle"`
	Activa     bool      `json:"activa"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RecetaInput is the client payload for creating or updating a receta.
type RecetaInput struct {
	PacienteID   int64  `json:"id_paciente"`
	MedicoID     int64  `json:"id_medico"`
	Medicamento  string `json:"medicamento"`
	Dosis        string `json:"dosis"`
	Indicaciones string `json:"indicaciones"`
}

// DirectivaInput is the client payload for creating or updating a directiva.
// The authoring user is taken from the request identity, never the payload.
type DirectivaInput struct {
	PacienteID int64  `json:"id_paciente"`
	Tipo       string `json:"tipo"`
	Detalle    string `json:"detalle"`
	Activa     *bool  `json:"activa"`
}
