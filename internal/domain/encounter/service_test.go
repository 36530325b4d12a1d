package encounter

import (
	"context"
	"testing"
	"time"
)

type mockRepo struct {
	encounters map[int]*Encounter
	nextID     int
	failCreate bool
	assignZero bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{encounters: make(map[int]*Encounter), nextID: 1}
}

func (m *mockRepo) Create(ctx context.Context, enc *Encounter) error {
	if m.failCreate {
		return context.DeadlineExceeded
	}
	if m.assignZero {
		return nil
	}
	enc.ID = m.nextID
	m.nextID++
	m.encounters[enc.ID] = enc
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id int) (*Encounter, error) {
	return m.encounters[id], nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Encounter, int, error) {
	var out []*Encounter
	for _, e := range m.encounters {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func validEncounter() *Encounter {
	return &Encounter{
		EncounterDatetime: time.Date(2006, 3, 7, 0, 0, 0, 0, time.UTC),
		EncounterTypeID:   1,
		FormID:            7,
		LocationID:        1,
		PatientID:         3,
		ProviderID:        2,
		CreatorID:         4,
	}
}

func TestCreateEncounter(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	enc := validEncounter()
	if err := svc.CreateEncounter(context.Background(), enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if enc.DateCreated.IsZero() {
		t.Error("expected DateCreated to be defaulted")
	}
}

func TestCreateEncounter_KeepsExplicitDateCreated(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	created := time.Date(2006, 3, 7, 12, 0, 0, 0, time.UTC)
	enc := validEncounter()
	enc.DateCreated = created

	if err := svc.CreateEncounter(context.Background(), enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enc.DateCreated.Equal(created) {
		t.Errorf("DateCreated overwritten: %v", enc.DateCreated)
	}
}

func TestCreateEncounter_RequiresPatientAndDatetime(t *testing.T) {
	svc := NewService(newMockRepo())

	enc := validEncounter()
	enc.PatientID = 0
	if err := svc.CreateEncounter(context.Background(), enc); err == nil {
		t.Error("expected error for missing patient")
	}

	enc = validEncounter()
	enc.EncounterDatetime = time.Time{}
	if err := svc.CreateEncounter(context.Background(), enc); err == nil {
		t.Error("expected error for missing encounter datetime")
	}
}

func TestCreateEncounter_FailsWhenNoIDAssigned(t *testing.T) {
	repo := newMockRepo()
	repo.assignZero = true
	svc := NewService(repo)

	if err := svc.CreateEncounter(context.Background(), validEncounter()); err == nil {
		t.Error("expected error when the store assigns no ID")
	}
}

func TestListByPatient_ClampsPaging(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	enc := validEncounter()
	if err := svc.CreateEncounter(context.Background(), enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encs, total, err := svc.ListByPatient(context.Background(), 3, -5, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(encs) != 1 {
		t.Errorf("expected one encounter, got %d/%d", len(encs), total)
	}
}
