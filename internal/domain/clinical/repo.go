package clinical

import "context"

// Repository persists observations and concept proposals. Create methods
// assign the store-generated ID to the passed record.
type Repository interface {
	CreateObs(ctx context.Context, obs *Obs) error
	GetObs(ctx context.Context, id int) (*Obs, error)
	ListObsByEncounter(ctx context.Context, encounterID int) ([]*Obs, error)
	ListObsByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Obs, int, error)
	ListObsByConcept(ctx context.Context, conceptID int, limit, offset int) ([]*Obs, int, error)

	CreateProposal(ctx context.Context, cp *ConceptProposal) error
	ListProposals(ctx context.Context, state string) ([]*ConceptProposal, error)
}
