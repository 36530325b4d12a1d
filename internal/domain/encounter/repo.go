package encounter

import "context"

// Repository persists encounters. Create assigns the store-generated ID to
// the passed encounter.
type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id int) (*Encounter, error)
	ListByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Encounter, int, error)
}
