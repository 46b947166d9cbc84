package records

import "context"

// Store is the persistence collaborator for clinical records. It also
// resolves record owners for the authorization layer.
type Store interface {
	CreateReceta(ctx context.Context, r *Receta) error
	FindReceta(ctx context.Context, id int64) (*Receta, error)
	ListRecetas(ctx context.Context, pacienteID int64) ([]Receta, error)
	UpdateReceta(ctx context.Context, r *Receta) error
	DeleteReceta(ctx context.Context, id int64) error

	CreateDirectiva(ctx context.Context, d *Directiva) error
	FindDirectiva(ctx context.Context, id int64) (*Directiva, error)
	ListDirectivas(ctx context.Context, pacienteID int64) ([]Directiva, error)
	UpdateDirectiva(ctx context.Context, d *Directiva) error
	DeleteDirectiva(ctx context.Context, id int64) error

	// FindRecordOwner reports the authoring user of a receta or directiva.
	// found=false means the record does not exist.
	FindRecordOwner(ctx context.Context, resource string, id int64) (ownerID int64, found bool, err error)
}
