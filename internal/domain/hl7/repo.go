package hl7

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists queue entries and their terminal records. NextEntry
// returns (nil, nil) when the queue is empty.
type Repository interface {
	CreateEntry(ctx context.Context, entry *InQueue) error
	NextEntry(ctx context.Context) (*InQueue, error)
	DeleteEntry(ctx context.Context, id uuid.UUID) error

	CreateArchive(ctx context.Context, arch *InArchive) error
	ListArchives(ctx context.Context, limit, offset int) ([]*InArchive, int, error)
	CreateError(ctx context.Context, rec *InError) error
	ListErrors(ctx context.Context, limit, offset int) ([]*InError, int, error)
}
