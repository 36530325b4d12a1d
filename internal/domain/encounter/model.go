// Package encounter records clinical visits created from inbound messages.
package encounter

import "time"

// Encounter maps to the encounter table. Reference IDs point at registry
// records; all of them are resolved before an encounter is created.
type Encounter struct {
	ID                int       `db:"id" json:"id"`
	EncounterDatetime time.Time `db:"encounter_datetime" json:"encounter_datetime"`
	EncounterTypeID   int       `db:"encounter_type_id" json:"encounter_type_id"`
	FormID            int       `db:"form_id" json:"form_id"`
	LocationID        int       `db:"location_id" json:"location_id"`
	PatientID         int       `db:"patient_id" json:"patient_id"`
	ProviderID        int       `db:"provider_id" json:"provider_id"`
	CreatorID         int       `db:"creator_id" json:"creator_id"`
	DateCreated       time.Time `db:"date_created" json:"date_created"`
}
