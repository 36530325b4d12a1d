package hl7

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) CreateEntry(ctx context.Context, entry *InQueue) error {
	entry.ID = uuid.New()
	if entry.DateCreated.IsZero() {
		entry.DateCreated = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hl7_in_queue (id, source, source_key, data, date_created)
		VALUES ($1,$2,$3,$4,$5)`,
		entry.ID, entry.Source, entry.SourceKey, entry.Data, entry.DateCreated,
	)
	return err
}

// NextEntry returns the oldest queued entry. Claim atomicity across multiple
// workers is provided by SKIP LOCKED inside a short advisory transaction at
// the caller's discretion; a single worker reads plainly.
func (r *repoPG) NextEntry(ctx context.Context) (*InQueue, error) {
	var e InQueue
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, source_key, data, date_created
		FROM hl7_in_queue ORDER BY date_created, id LIMIT 1`,
	).Scan(&e.ID, &e.Source, &e.SourceKey, &e.Data, &e.DateCreated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM hl7_in_queue WHERE id = $1`, id)
	return err
}

func (r *repoPG) CreateArchive(ctx context.Context, arch *InArchive) error {
	arch.ID = uuid.New()
	if arch.DateCreated.IsZero() {
		arch.DateCreated = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hl7_in_archive (id, source, source_key, data, date_created)
		VALUES ($1,$2,$3,$4,$5)`,
		arch.ID, arch.Source, arch.SourceKey, arch.Data, arch.DateCreated,
	)
	return err
}

func (r *repoPG) ListArchives(ctx context.Context, limit, offset int) ([]*InArchive, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hl7_in_archive`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, source_key, data, date_created
		FROM hl7_in_archive ORDER BY date_created DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*InArchive
	for rows.Next() {
		var a InArchive
		if err := rows.Scan(&a.ID, &a.Source, &a.SourceKey, &a.Data, &a.DateCreated); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}

func (r *repoPG) CreateError(ctx context.Context, rec *InError) error {
	rec.ID = uuid.New()
	if rec.DateCreated.IsZero() {
		rec.DateCreated = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO hl7_in_error (id, source, source_key, data, error, error_details, date_created)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.Source, rec.SourceKey, rec.Data, rec.Error, rec.ErrorDetails, rec.DateCreated,
	)
	return err
}

func (r *repoPG) ListErrors(ctx context.Context, limit, offset int) ([]*InError, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM hl7_in_error`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, source_key, data, error, error_details, date_created
		FROM hl7_in_error ORDER BY date_created DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*InError
	for rows.Next() {
		var e InError
		if err := rows.Scan(&e.ID, &e.Source, &e.SourceKey, &e.Data, &e.Error, &e.ErrorDetails, &e.DateCreated); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}
