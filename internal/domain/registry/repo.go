package registry

import "context"

// Repository looks up reference records by ID. Every Get returns (nil, nil)
// when no record exists; a non-nil error means the lookup itself failed.
type Repository interface {
	GetUser(ctx context.Context, id int) (*User, error)
	GetPatient(ctx context.Context, id int) (*Patient, error)
	GetLocation(ctx context.Context, id int) (*Location, error)
	GetForm(ctx context.Context, id int) (*Form, error)
	GetConcept(ctx context.Context, id int) (*Concept, error)
}
