package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clinsalud.org/internal/auth"
)

// Service applies the ownership rules on top of the store. Route-level role
// checks have already run by the time a service method is called; this layer
// guards individual records.
type Service struct {
	store  Store
	engine *auth.Engine
}

func NewService(store Store, engine *auth.Engine) (*Service, error) {
	if store == nil {
		return nil, errors.New("records: store is required")
	}
	if engine == nil {
		return nil, errors.New("records: access engine is required")
	}
	return &Service{store: store, engine: engine}, nil
}

// decisionError translates a denial into the auth error taxonomy so HTTP
// handlers can map it to a status without inspecting decisions here and
// there.
func decisionError(d auth.Decision) error {
	switch d.Status {
	case http.StatusUnauthorized:
		return auth.ErrIdentityNotFound
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		if strings.HasSuffix(d.Rule, ".owner") || strings.HasSuffix(d.Rule, ".author") {
			return auth.ErrNotResourceOwner
		}
		return auth.ErrInsufficientPermission
	default:
		return fmt.Errorf("records: %s", d.Reason)
	}
}

func (in RecetaInput) validate() error {
	if in.PacienteID <= 0 {
		return fmt.Errorf("%w: id_paciente is required", ErrInvalidInput)
	}
	if in.MedicoID <= 0 {
		return fmt.Errorf("%w: id_medico is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Medicamento) == "" {
		return fmt.Errorf("%w: medicamento is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Dosis) == "" {
		return fmt.Errorf("%w: dosis is required", ErrInvalidInput)
	}
	return nil
}

// CreateReceta stores a new prescription. The payload's id_medico must match
// the acting user unless the actor is an administrator.
func (s *Service) CreateReceta(ctx context.Context, identity *auth.Identity, in RecetaInput) (*Receta, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if d := s.engine.AuthorizePrescriptionCreate(identity, in.MedicoID); !d.Allowed {
		return nil, decisionError(d)
	}
	r := &Receta{
		PacienteID:   in.PacienteID,
		MedicoID:     in.MedicoID,
		Medicamento:  strings.TrimSpace(in.Medicamento),
		Dosis:        strings.TrimSpace(in.Dosis),
		Indicaciones: strings.TrimSpace(in.Indicaciones),
	}
	if err := s.store.CreateReceta(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetReceta(ctx context.Context, id int64) (*Receta, error) {
	return s.store.FindReceta(ctx, id)
}

// ListRecetas returns prescriptions, optionally filtered by patient
// (pacienteID <= 0 means no filter).
func (s *Service) ListRecetas(ctx context.Context, pacienteID int64) ([]Receta, error) {
	return s.store.ListRecetas(ctx, pacienteID)
}

// UpdateReceta replaces the mutable fields of a prescription. Only the
// authoring medico or an administrator may update it.
func (s *Service) UpdateReceta(ctx context.Context, identity *auth.Identity, id int64, in RecetaInput) (*Receta, error) {
	if d := s.engine.AuthorizeRecordMutation(ctx, identity, auth.ResourceReceta, id); !d.Allowed {
		return nil, decisionError(d)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	r, err := s.store.FindReceta(ctx, id)
	if err != nil {
		return nil, err
	}
	r.PacienteID = in.PacienteID
	r.Medicamento = strings.TrimSpace(in.Medicamento)
	r.Dosis = strings.TrimSpace(in.Dosis)
	r.Indicaciones = strings.TrimSpace(in.Indicaciones)
	if err := s.store.UpdateReceta(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteReceta removes a prescription under the same ownership rule as
// UpdateReceta.
func (s *Service) DeleteReceta(ctx context.Context, identity *auth.Identity, id int64) error {
	if d := s.engine.AuthorizeRecordMutation(ctx, identity, auth.ResourceReceta, id); !d.Allowed {
		return decisionError(d)
	}
	return s.store.DeleteReceta(ctx, id)
}

func (in DirectivaInput) validate() error {
	if in.PacienteID <= 0 {
		return fmt.Errorf("%w: id_paciente is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Tipo) == "" {
		return fmt.Errorf("%w: tipo is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Detalle) == "" {
		return fmt.Errorf("%w: detalle is required", ErrInvalidInput)
	}
	return nil
}

// CreateDirectiva stores a new directive authored by the acting user.
func (s *Service) CreateDirectiva(ctx context.Context, identity *auth.Identity, in DirectivaInput) (*Directiva, error) {
	if identity == nil {
		return nil, auth.ErrIdentityNotFound
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	activa := true
	if in.Activa != nil {
		activa = *in.Activa
	}
	d := &Directiva{
		PacienteID: in.PacienteID,
		CreatedBy:  identity.ID,
		Tipo:       strings.TrimSpace(in.Tipo),
		Detalle:    strings.TrimSpace(in.Detalle),
		Activa:     activa,
	}
	if err := s.store.CreateDirectiva(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDirectiva(ctx context.Context, id int64) (*Directiva, error) {
	return s.store.FindDirectiva(ctx, id)
}

func (s *Service) ListDirectivas(ctx context.Context, pacienteID int64) ([]Directiva, error) {
	return s.store.ListDirectivas(ctx, pacienteID)
}

// UpdateDirectiva replaces the mutable fields of a directive. Only its
// author or an administrator may update it.
func (s *Service) UpdateDirectiva(ctx context.Context, identity *auth.Identity, id int64, in DirectivaInput) (*Directiva, error) {
	if dec := s.engine.AuthorizeRecordMutation(ctx, identity, auth.ResourceDirectiva, id); !dec.Allowed {
		return nil, decisionError(dec)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	d, err := s.store.FindDirectiva(ctx, id)
	if err != nil {
		return nil, err
	}
	d.PacienteID = in.PacienteID
	d.Tipo = strings.TrimSpace(in.Tipo)
	d.Detalle = strings.TrimSpace(in.Detalle)
	if in.Activa != nil {
		d.Activa = *in.Activa
	}
	if err := s.store.UpdateDirectiva(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDirectiva removes a directive under the same ownership rule as
// UpdateDirectiva.
func (s *Service) DeleteDirectiva(ctx context.Context, identity *auth.Identity, id int64) error {
	if dec := s.engine.AuthorizeRecordMutation(ctx, identity, auth.ResourceDirectiva, id); !dec.Allowed {
		return decisionError(dec)
	}
	return s.store.DeleteDirectiva(ctx, id)
}
