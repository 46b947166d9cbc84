package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore on PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	err := s.db.QueryRowContext(ctx,
		`insert into usuarios(email, password_hash, rol, nombre, status)
		 values($1,$2,$3,$4,$5)
		 returning id, created_at, updated_at`,
		u.Email, u.PasswordHash, string(u.Role), u.DisplayName, u.Status,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGUserStore) Find(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, rol, nombre, status, created_at, updated_at
		 from usuarios where id=$1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, password_hash, rol, nombre, status, created_at, updated_at
		 from usuarios where email=$1`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u   User
		rol string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &rol, &u.DisplayName, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, err := ParseRole(rol)
	if err != nil {
		// A row with a role outside the closed set must not resolve to an
		// identity; rejecting beats defaulting in either direction.
		return nil, err
	}
	u.Role = role
	return &u, nil
}
