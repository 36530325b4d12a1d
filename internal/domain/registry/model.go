// Package registry holds the reference records that inbound messages resolve
// against: users, patients, locations, forms, and concepts. Records are keyed
// by integer IDs because that is what the wire format carries.
package registry

import "time"

// User maps to the users table.
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Patient maps to the patient table.
type Patient struct {
	ID         int       `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	GivenName  string    `db:"given_name" json:"given_name"`
	FamilyName string    `db:"family_name" json:"family_name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Location maps to the location table.
type Location struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Form maps to the form table. A form carries the encounter type that
// encounters entered through it receive.
type Form struct {
	ID              int    `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	EncounterTypeID int    `db:"encounter_type_id" json:"encounter_type_id"`
}

// Concept maps to the concept table.
type Concept struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Datatype string `db:"datatype" json:"datatype"`
}
