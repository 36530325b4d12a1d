package clinical

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const obsCols = `id, encounter_id, patient_id, concept_id, obs_datetime, location_id,
	creator_id, date_created, value_numeric, value_coded, value_datetime, value_text`

func (r *repoPG) CreateObs(ctx context.Context, obs *Obs) error {
	numeric, coded, datetime, text := splitValue(obs.Value)
	return r.pool.QueryRow(ctx, `
		INSERT INTO obs (
			encounter_id, patient_id, concept_id, obs_datetime, location_id,
			creator_id, date_created, value_numeric, value_coded, value_datetime, value_text
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id`,
		obs.EncounterID, obs.PatientID, obs.ConceptID, obs.ObsDatetime, obs.LocationID,
		obs.CreatorID, obs.DateCreated, numeric, coded, datetime, text,
	).Scan(&obs.ID)
}

func (r *repoPG) GetObs(ctx context.Context, id int) (*Obs, error) {
	o, err := scanObs(r.pool.QueryRow(ctx, `SELECT `+obsCols+` FROM obs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *repoPG) ListObsByEncounter(ctx context.Context, encounterID int) ([]*Obs, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+obsCols+` FROM obs WHERE encounter_id = $1 ORDER BY obs_datetime, id`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObs(rows)
}

func (r *repoPG) ListObsByPatient(ctx context.Context, patientID int, limit, offset int) ([]*Obs, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM obs WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+obsCols+` FROM obs WHERE patient_id = $1 ORDER BY obs_datetime DESC, id LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectObs(rows)
	return out, total, err
}

func (r *repoPG) ListObsByConcept(ctx context.Context, conceptID int, limit, offset int) ([]*Obs, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM obs WHERE concept_id = $1`, conceptID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+obsCols+` FROM obs WHERE concept_id = $1 ORDER BY obs_datetime DESC, id LIMIT $2 OFFSET $3`,
		conceptID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectObs(rows)
	return out, total, err
}

func (r *repoPG) CreateProposal(ctx context.Context, cp *ConceptProposal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO concept_proposal (encounter_id, obs_concept_id, original_text, state, creator_id, date_created)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		cp.EncounterID, cp.ObsConceptID, cp.OriginalText, cp.State, cp.CreatorID, cp.DateCreated,
	).Scan(&cp.ID)
}

func (r *repoPG) ListProposals(ctx context.Context, state string) ([]*ConceptProposal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, encounter_id, obs_concept_id, original_text, state, creator_id, date_created
		FROM concept_proposal WHERE state = $1 ORDER BY date_created`, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []*ConceptProposal
	for rows.Next() {
		var cp ConceptProposal
		if err := rows.Scan(&cp.ID, &cp.EncounterID, &cp.ObsConceptID, &cp.OriginalText, &cp.State, &cp.CreatorID, &cp.DateCreated); err != nil {
			return nil, err
		}
		props = append(props, &cp)
	}
	return props, rows.Err()
}

// splitValue flattens a Value into the four nullable obs columns.
func splitValue(v Value) (numeric *float64, coded *int, datetime *time.Time, text *string) {
	switch v.Kind() {
	case ValueNumeric:
		n, _ := v.Numeric()
		numeric = &n
	case ValueCoded:
		c, _ := v.Coded()
		coded = &c
	case ValueDatetime:
		d, _ := v.Datetime()
		datetime = &d
	case ValueText:
		t, _ := v.Text()
		text = &t
	}
	return
}

func joinValue(numeric *float64, coded *int, datetime *time.Time, text *string) Value {
	switch {
	case numeric != nil:
		return NumericValue(*numeric)
	case coded != nil:
		return CodedValue(*coded)
	case datetime != nil:
		return DatetimeValue(*datetime)
	case text != nil:
		return TextValue(*text)
	default:
		return Value{}
	}
}

func scanObs(row pgx.Row) (*Obs, error) {
	var o Obs
	var numeric *float64
	var coded *int
	var datetime *time.Time
	var text *string
	err := row.Scan(
		&o.ID, &o.EncounterID, &o.PatientID, &o.ConceptID, &o.ObsDatetime, &o.LocationID,
		&o.CreatorID, &o.DateCreated, &numeric, &coded, &datetime, &text,
	)
	if err != nil {
		return nil, err
	}
	o.Value = joinValue(numeric, coded, datetime, text)
	return &o, nil
}

func collectObs(rows pgx.Rows) ([]*Obs, error) {
	var out []*Obs
	for rows.Next() {
		var o Obs
		var numeric *float64
		var coded *int
		var datetime *time.Time
		var text *string
		if err := rows.Scan(
			&o.ID, &o.EncounterID, &o.PatientID, &o.ConceptID, &o.ObsDatetime, &o.LocationID,
			&o.CreatorID, &o.DateCreated, &numeric, &coded, &datetime, &text,
		); err != nil {
			return nil, err
		}
		o.Value = joinValue(numeric, coded, datetime, text)
		out = append(out, &o)
	}
	return out, rows.Err()
}
