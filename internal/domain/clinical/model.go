// Package clinical stores observations recorded against encounters, and
// concept proposals raised when an inbound coded value names a concept the
// dictionary does not have yet.
package clinical

import "time"

// Obs maps to the obs table. The typed value is flattened into one nullable
// column per kind; exactly one is set.
type Obs struct {
	ID          int       `db:"id" json:"id"`
	EncounterID int       `db:"encounter_id" json:"encounter_id"`
	PatientID   int       `db:"patient_id" json:"patient_id"`
	ConceptID   int       `db:"concept_id" json:"concept_id"`
	ObsDatetime time.Time `db:"obs_datetime" json:"obs_datetime"`
	LocationID  int       `db:"location_id" json:"location_id"`
	CreatorID   int       `db:"creator_id" json:"creator_id"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
	Value       Value     `db:"-" json:"-"`
}

// Proposal states.
const (
	ProposalStateUnmapped = "UNMAPPED"
)

// ConceptProposal maps to the concept_proposal table: free text from an
// inbound message offered as a new dictionary concept, pending review.
type ConceptProposal struct {
	ID           int       `db:"id" json:"id"`
	EncounterID  int       `db:"encounter_id" json:"encounter_id"`
	ObsConceptID int       `db:"obs_concept_id" json:"obs_concept_id"`
	OriginalText string    `db:"original_text" json:"original_text"`
	State        string    `db:"state" json:"state"`
	CreatorID    int       `db:"creator_id" json:"creator_id"`
	DateCreated  time.Time `db:"date_created" json:"date_created"`
}
