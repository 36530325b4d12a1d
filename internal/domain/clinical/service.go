package clinical

import (
	"context"
	"fmt"
	"time"
)

// Service records observations and concept proposals.
type Service interface {
	CreateObs(ctx context.Context, obs *Obs) error
	GetObs(ctx context.Context, id int) (*Obs, error)
	ListObsByEncounter(ctx context.Context, encounterID int) ([]*Obs, error)
	ListObsByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Obs, int, error)
	ListObsByConcept(ctx context.Context, conceptID int, limit, offset int) ([]*Obs, int, error)

	ProposeConcept(ctx context.Context, cp *ConceptProposal) error
	ListProposals(ctx context.Context, state string) ([]*ConceptProposal, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateObs(ctx context.Context, obs *Obs) error {
	if obs.ConceptID == 0 {
		return fmt.Errorf("obs requires a concept")
	}
	if obs.EncounterID == 0 {
		return fmt.Errorf("obs requires an encounter")
	}
	if obs.ObsDatetime.IsZero() {
		return fmt.Errorf("obs requires an observation datetime")
	}
	if obs.DateCreated.IsZero() {
		obs.DateCreated = time.Now().UTC()
	}
	if err := s.repo.CreateObs(ctx, obs); err != nil {
		return fmt.Errorf("create obs: %w", err)
	}
	return nil
}

func (s *service) GetObs(ctx context.Context, id int) (*Obs, error) {
	return s.repo.GetObs(ctx, id)
}

func (s *service) ListObsByEncounter(ctx context.Context, encounterID int) ([]*Obs, error) {
	return s.repo.ListObsByEncounter(ctx, encounterID)
}

func (s *service) ListObsByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Obs, int, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListObsByPatient(ctx, patientID, limit, offset)
}

func (s *service) ListObsByConcept(ctx context.Context, conceptID int, limit, offset int) ([]*Obs, int, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListObsByConcept(ctx, conceptID, limit, offset)
}

// ProposeConcept records free text for dictionary review. New proposals start
// in the UNMAPPED state.
func (s *service) ProposeConcept(ctx context.Context, cp *ConceptProposal) error {
	if cp.OriginalText == "" {
		return fmt.Errorf("concept proposal requires original text")
	}
	if cp.State == "" {
		cp.State = ProposalStateUnmapped
	}
	if cp.DateCreated.IsZero() {
		cp.DateCreated = time.Now().UTC()
	}
	if err := s.repo.CreateProposal(ctx, cp); err != nil {
		return fmt.Errorf("create concept proposal: %w", err)
	}
	return nil
}

func (s *service) ListProposals(ctx context.Context, state string) ([]*ConceptProposal, error) {
	if state == "" {
		state = ProposalStateUnmapped
	}
	return s.repo.ListProposals(ctx, state)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
