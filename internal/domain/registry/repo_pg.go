package registry

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

func (r *repoPG) GetUser(ctx context.Context, id int) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repoPG) GetPatient(ctx context.Context, id int) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx,
		`SELECT id, identifier, given_name, family_name, created_at FROM patient WHERE id = $1`, id,
	).Scan(&p.ID, &p.Identifier, &p.GivenName, &p.FamilyName, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetLocation(ctx context.Context, id int) (*Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM location WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repoPG) GetForm(ctx context.Context, id int) (*Form, error) {
	var f Form
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, encounter_type_id FROM form WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.EncounterTypeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) GetConcept(ctx context.Context, id int) (*Concept, error) {
	var c Concept
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, datatype FROM concept WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Datatype)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
