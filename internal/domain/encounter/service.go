package encounter

import (
	"context"
	"fmt"
	"time"
)

// Service creates and reads encounters.
type Service interface {
	CreateEncounter(ctx context.Context, enc *Encounter) error
	GetEncounter(ctx context.Context, id int) (*Encounter, error)
	ListByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Encounter, int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CreateEncounter persists the encounter and verifies the store assigned it
// an ID. An encounter without an ID cannot anchor observations, so that is
// treated as a hard failure rather than a warning.
func (s *service) CreateEncounter(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == 0 {
		return fmt.Errorf("encounter requires a patient")
	}
	if enc.EncounterDatetime.IsZero() {
		return fmt.Errorf("encounter requires an encounter datetime")
	}
	if enc.DateCreated.IsZero() {
		enc.DateCreated = time.Now().UTC()
	}

	if err := s.repo.Create(ctx, enc); err != nil {
		return fmt.Errorf("create encounter: %w", err)
	}
	if enc.ID == 0 {
		return fmt.Errorf("encounter was not assigned an id on creation")
	}
	return nil
}

func (s *service) GetEncounter(ctx context.Context, id int) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Encounter, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
