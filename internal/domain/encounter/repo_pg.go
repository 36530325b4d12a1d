package encounter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const encCols = `id, encounter_datetime, encounter_type_id, form_id, location_id,
	patient_id, provider_id, creator_id, date_created`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO encounter (
			encounter_datetime, encounter_type_id, form_id, location_id,
			patient_id, provider_id, creator_id, date_created
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id`,
		enc.EncounterDatetime, enc.EncounterTypeID, enc.FormID, enc.LocationID,
		enc.PatientID, enc.ProviderID, enc.CreatorID, enc.DateCreated,
	).Scan(&enc.ID)
}

func (r *repoPG) GetByID(ctx context.Context, id int) (*Encounter, error) {
	var e Encounter
	err := r.pool.QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE id = $1`, id).Scan(
		&e.ID, &e.EncounterDatetime, &e.EncounterTypeID, &e.FormID, &e.LocationID,
		&e.PatientID, &e.ProviderID, &e.CreatorID, &e.DateCreated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Encounter, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM encounter WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+encCols+` FROM encounter WHERE patient_id = $1 ORDER BY encounter_datetime DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var encs []*Encounter
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(
			&e.ID, &e.EncounterDatetime, &e.EncounterTypeID, &e.FormID, &e.LocationID,
			&e.PatientID, &e.ProviderID, &e.CreatorID, &e.DateCreated,
		); err != nil {
			return nil, 0, err
		}
		encs = append(encs, &e)
	}
	return encs, total, rows.Err()
}
