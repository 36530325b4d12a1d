// Package hl7 owns the inbound message pipeline: the durable queue of raw
// messages, the processor that turns each entry into clinical records, and
// the archive/error stores entries terminate in.
package hl7

import (
	"time"

	"github.com/google/uuid"
)

// InQueue maps to the hl7_in_queue table: one raw inbound message awaiting
// processing. Source and SourceKey identify where the message came from and
// the sender's own key for it.
type InQueue struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Source      string    `db:"source" json:"source"`
	SourceKey   string    `db:"source_key" json:"source_key"`
	Data        string    `db:"data" json:"data"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

// InArchive maps to the hl7_in_archive table: a copy of a queue entry whose
// processing completed.
type InArchive struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Source      string    `db:"source" json:"source"`
	SourceKey   string    `db:"source_key" json:"source_key"`
	Data        string    `db:"data" json:"data"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

// InError maps to the hl7_in_error table. A fatal failure stores the whole
// raw message; aggregated observation failures store only the failing
// fragments, alongside a still-archived entry.
type InError struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Source       string    `db:"source" json:"source"`
	SourceKey    string    `db:"source_key" json:"source_key"`
	Data         string    `db:"data" json:"data"`
	Error        string    `db:"error" json:"error"`
	ErrorDetails string    `db:"error_details" json:"error_details"`
	DateCreated  time.Time `db:"date_created" json:"date_created"`
}
