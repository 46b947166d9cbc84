package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clinsalud.org/internal/auth"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateReceta(ctx context.Context, r *Receta) error {
	return s.db.QueryRowContext(ctx,
		`insert into recetas(id_paciente, id_medico, medicamento, dosis, indicaciones)
		 values($1,$2,$3,$4,$5)
		 returning id, created_at, updated_at`,
		r.PacienteID, r.MedicoID, r.Medicamento, r.Dosis, r.Indicaciones,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *PGStore) FindReceta(ctx context.Context, id int64) (*Receta, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, id_paciente, id_medico, medicamento, dosis, indicaciones, created_at, updated_at
		 from recetas where id=$1`, id)
	var r Receta
	if err := row.Scan(&r.ID, &r.PacienteID, &r.MedicoID, &r.Medicamento, &r.Dosis, &r.Indicaciones, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *PGStore) ListRecetas(ctx context.Context, pacienteID int64) ([]Receta, error) {
	query := `select id, id_paciente, id_medico, medicamento, dosis, indicaciones, created_at, updated_at
		 from recetas order by id`
	args := []any{}
	if pacienteID > 0 {
		query = `select id, id_paciente, id_medico, medicamento, dosis, indicaciones, created_at, updated_at
		 from recetas where id_paciente=$1 order by id`
		args = append(args, pacienteID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receta
	for rows.Next() {
		var r Receta
		if err := rows.Scan(&r.ID, &r.PacienteID, &r.MedicoID, &r.Medicamento, &r.Dosis, &r.Indicaciones, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateReceta(ctx context.Context, r *Receta) error {
	return s.db.QueryRowContext(ctx,
		`update recetas
		 set id_paciente=$2, medicamento=$3, dosis=$4, indicaciones=$5, updated_at=now()
		 where id=$1
		 returning updated_at`,
		r.ID, r.PacienteID, r.Medicamento, r.Dosis, r.Indicaciones,
	).Scan(&r.UpdatedAt)
}

func (s *PGStore) DeleteReceta(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from recetas where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CreateDirectiva(ctx context.Context, d *Directiva) error {
	return s.db.QueryRowContext(ctx,
		`insert into directivas(id_paciente, created_by, tipo, detalle, activa)
		 values($1,$2,$3,$4,$5)
		 returning id, created_at, updated_at`,
		d.PacienteID, d.CreatedBy, d.Tipo, d.Detalle, d.Activa,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (s *PGStore) FindDirectiva(ctx context.Context, id int64) (*Directiva, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, id_paciente, created_by, tipo, detalle, activa, created_at, updated_at
		 from directivas where id=$1`, id)
	var d Directiva
	if err := row.Scan(&d.ID, &d.PacienteID, &d.CreatedBy, &d.Tipo, &d.Detalle, &d.Activa, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PGStore) ListDirectivas(ctx context.Context, pacienteID int64) ([]Directiva, error) {
	query := `select id, id_paciente, created_by, tipo, detalle, activa, created_at, updated_at
		 from directivas order by id`
	args := []any{}
	if pacienteID > 0 {
		query = `select id, id_paciente, created_by, tipo, detalle, activa, created_at, updated_at
		 from directivas where id_paciente=$1 order by id`
		args = append(args, pacienteID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Directiva
	for rows.Next() {
		var d Directiva
		if err := rows.Scan(&d.ID, &d.PacienteID, &d.CreatedBy, &d.Tipo, &d.Detalle, &d.Activa, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateDirectiva(ctx context.Context, d *Directiva) error {
	return s.db.QueryRowContext(ctx,
		`update directivas
		 set id_paciente=$2, tipo=$3, detalle=$4, activa=$5, updated_at=now()
		 where id=$1
		 returning updated_at`,
		d.ID, d.PacienteID, d.Tipo, d.Detalle, d.Activa,
	).Scan(&d.UpdatedAt)
}

func (s *PGStore) DeleteDirectiva(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from directivas where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FindRecordOwner(ctx context.Context, resource string, id int64) (int64, bool, error) {
	var query string
	switch resource {
	case auth.ResourceReceta:
		query = `select id_medico from recetas where id=$1`
	case auth.ResourceDirectiva:
		query = `select created_by from directivas where id=$1`
	default:
		return 0, false, fmt.Errorf("records: unknown resource %q", resource)
	}
	var ownerID int64
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ownerID, true, nil
}
