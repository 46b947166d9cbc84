package records

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"clinsalud.org/internal/auth"
)

type memStore struct {
	recetas    map[int64]*Receta
	directivas map[int64]*Directiva
	nextID     int64
	ownerErr   error
}

func newMemStore() *memStore {
	return &memStore{
		recetas:    map[int64]*Receta{},
		directivas: map[int64]*Directiva{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateReceta(_ context.Context, r *Receta) error {
	r.ID = m.id()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.recetas[r.ID] = &cp
	return nil
}

func (m *memStore) FindReceta(_ context.Context, id int64) (*Receta, error) {
	r, ok := m.recetas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRecetas(_ context.Context, pacienteID int64) ([]Receta, error) {
	var out []Receta
	for _, r := range m.recetas {
		if pacienteID > 0 && r.PacienteID != pacienteID {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) UpdateReceta(_ context.Context, r *Receta) error {
	if _, ok := m.recetas[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.recetas[r.ID] = &cp
	return nil
}

func (m *memStore) DeleteReceta(_ context.Context, id int64) error {
	if _, ok := m.recetas[id]; !ok {
		return ErrNotFound
	}
	delete(m.recetas, id)
	return nil
}

func (m *memStore) CreateDirectiva(_ context.Context, d *Directiva) error {
	d.ID = m.id()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.directivas[d.ID] = &cp
	return nil
}

func (m *memStore) FindDirectiva(_ context.Context, id int64) (*Directiva, error) {
	d, ok := m.directivas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) ListDirectivas(_ context.Context, pacienteID int64) ([]Directiva, error) {
	var out []Directiva
	for _, d := range m.directivas {
		if pacienteID > 0 && d.PacienteID != pacienteID {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memStore) UpdateDirectiva(_ context.Context, d *Directiva) error {
	if _, ok := m.directivas[d.ID]; !ok {
		return ErrNotFound
	}
	d.UpdatedAt = time.Now()
	cp := *d
	m.directivas[d.ID] = &cp
	return nil
}

func (m *memStore) DeleteDirectiva(_ context.Context, id int64) error {
	if _, ok := m.directivas[id]; !ok {
		return ErrNotFound
	}
	delete(m.directivas, id)
	return nil
}

func (m *memStore) FindRecordOwner(_ context.Context, resource string, id int64) (int64, bool, error) {
	if m.ownerErr != nil {
		return 0, false, m.ownerErr
	}
	switch resource {
	case auth.ResourceReceta:
		if r, ok := m.recetas[id]; ok {
			return r.MedicoID, true, nil
		}
	case auth.ResourceDirectiva:
		if d, ok := m.directivas[id]; ok {
			return d.CreatedBy, true, nil
		}
	}
	return 0, false, nil
}

func fixture(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	engine, err := auth.NewEngine(auth.DefaultCatalog(), store)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	svc, err := NewService(store, engine)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func medico(id int64) *auth.Identity {
	return &auth.Identity{ID: id, Email: fmt.Sprintf("m%d@clinsalud.org", id), Role: auth.RoleMedico}
}

func admin() *auth.Identity {
	return &auth.Identity{ID: 1, Email: "admin@clinsalud.org", Role: auth.RoleAdministrador}
}

func seedReceta(t *testing.T, svc *Service, author *auth.Identity) *Receta {
	t.Helper()
	r, err := svc.CreateReceta(context.Background(), author, RecetaInput{
		PacienteID:  30,
		MedicoID:    author.ID,
		Medicamento: "Enalapril",
		Dosis:       "10mg/12h",
	})
	if err != nil {
		t.Fatalf("CreateReceta: %v", err)
	}
	return r
}

func TestCreateRecetaAuthorMismatch(t *testing.T) {
	svc, _ := fixture(t)
	_, err := svc.CreateReceta(context.Background(), medico(7), RecetaInput{
		PacienteID:  30,
		MedicoID:    8,
		Medicamento: "Enalapril",
		Dosis:       "10mg/12h",
	})
	if !errors.Is(err, auth.ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner, got %v", err)
	}
}

func TestCreateRecetaAdminMayAuthorForOthers(t *testing.T) {
	svc, _ := fixture(t)
	r, err := svc.CreateReceta(context.Background(), admin(), RecetaInput{
		PacienteID:  30,
		MedicoID:    8,
		Medicamento: "Enalapril",
		Dosis:       "10mg/12h",
	})
	if err != nil {
		t.Fatalf("CreateReceta as admin: %v", err)
	}
	if r.MedicoID != 8 {
		t.Fatalf("id_medico=%d, want 8", r.MedicoID)
	}
}

func TestUpdateRecetaOwnership(t *testing.T) {
	svc, _ := fixture(t)
	owner := medico(7)
	r := seedReceta(t, svc, owner)

	in := RecetaInput{PacienteID: 30, MedicoID: owner.ID, Medicamento: "Enalapril", Dosis: "20mg/24h"}

	// Another medico with recetas.* may not touch a record they do not own.
	if _, err := svc.UpdateReceta(context.Background(), medico(8), r.ID, in); !errors.Is(err, auth.ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner for non-owner, got %v", err)
	}

	updated, err := svc.UpdateReceta(context.Background(), owner, r.ID, in)
	if err != nil {
		t.Fatalf("UpdateReceta as owner: %v", err)
	}
	if updated.Dosis != "20mg/24h" {
		t.Fatalf("dosis=%q, want updated value", updated.Dosis)
	}

	if _, err := svc.UpdateReceta(context.Background(), admin(), r.ID, in); err != nil {
		t.Fatalf("UpdateReceta as admin: %v", err)
	}
}

func TestDeleteRecetaMissingRecord(t *testing.T) {
	svc, _ := fixture(t)
	if err := svc.DeleteReceta(context.Background(), medico(7), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing record, got %v", err)
	}
}

func TestDeleteRecetaOwner(t *testing.T) {
	svc, store := fixture(t)
	owner := medico(7)
	r := seedReceta(t, svc, owner)

	if err := svc.DeleteReceta(context.Background(), medico(8), r.ID); !errors.Is(err, auth.ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner, got %v", err)
	}
	if err := svc.DeleteReceta(context.Background(), owner, r.ID); err != nil {
		t.Fatalf("DeleteReceta as owner: %v", err)
	}
	if _, ok := store.recetas[r.ID]; ok {
		t.Fatal("record should be gone")
	}
}

func TestOwnershipLookupFailure(t *testing.T) {
	svc, store := fixture(t)
	owner := medico(7)
	r := seedReceta(t, svc, owner)
	store.ownerErr = errors.New("pg down")

	err := svc.DeleteReceta(context.Background(), owner, r.ID)
	if err == nil {
		t.Fatal("expected an error when the ownership lookup fails")
	}
	if errors.Is(err, auth.ErrNotResourceOwner) || errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup failure must not masquerade as a denial, got %v", err)
	}
}

func TestCreateRecetaValidation(t *testing.T) {
	svc, _ := fixture(t)
	_, err := svc.CreateReceta(context.Background(), medico(7), RecetaInput{
		PacienteID: 30,
		MedicoID:   7,
		Dosis:      "10mg",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDirectivaAuthorFromIdentity(t *testing.T) {
	svc, _ := fixture(t)
	actor := medico(7)
	d, err := svc.CreateDirectiva(context.Background(), actor, DirectivaInput{
		PacienteID: 30,
		Tipo:       "no_rcp",
		Detalle:    "No reanimar",
	})
	if err != nil {
		t.Fatalf("CreateDirectiva: %v", err)
	}
	if d.CreatedBy != actor.ID {
		t.Fatalf("created_by=%d, want acting user %d", d.CreatedBy, actor.ID)
	}
	if !d.Activa {
		t.Fatal("directives default to active")
	}
}

func TestDirectivaMutationOwnership(t *testing.T) {
	svc, _ := fixture(t)
	actor := medico(7)
	d, err := svc.CreateDirectiva(context.Background(), actor, DirectivaInput{
		PacienteID: 30,
		Tipo:       "no_rcp",
		Detalle:    "No reanimar",
	})
	if err != nil {
		t.Fatalf("CreateDirectiva: %v", err)
	}

	in := DirectivaInput{PacienteID: 30, Tipo: "no_rcp", Detalle: "Actualizada"}
	if _, err := svc.UpdateDirectiva(context.Background(), medico(8), d.ID, in); !errors.Is(err, auth.ErrNotResourceOwner) {
		t.Fatalf("expected ErrNotResourceOwner, got %v", err)
	}
	if _, err := svc.UpdateDirectiva(context.Background(), actor, d.ID, in); err != nil {
		t.Fatalf("UpdateDirectiva as author: %v", err)
	}
	if err := svc.DeleteDirectiva(context.Background(), admin(), d.ID); err != nil {
		t.Fatalf("DeleteDirectiva as admin: %v", err)
	}
}
