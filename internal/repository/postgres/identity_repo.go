package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
)

// IdentityRepo implements IdentityRepository using PostgreSQL.
type IdentityRepo struct{ db *DB }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

// GetOrCreate upserts the global ID and returns its identity row. The no-op
// DO UPDATE makes RETURNING yield the row on conflict as well, so concurrent
// first references race safely.
func (r *IdentityRepo) GetOrCreate(ctx context.Context, globalID string) (*model.Identity, error) {
	const q = `
INSERT INTO global_ids (global_id)
VALUES ($1)
ON CONFLICT (global_id) DO UPDATE SET global_id = EXCLUDED.global_id
RETURNING id, global_id`
	var ident model.Identity
	if err := r.db.Pool.QueryRow(ctx, q, globalID).Scan(&ident.ID, &ident.GlobalID); err != nil {
		return nil, err
	}
	return &ident, nil
}

// Get selects an existing identity by global ID.
func (r *IdentityRepo) Get(ctx context.Context, globalID string) (*model.Identity, error) {
	const q = `SELECT id, global_id FROM global_ids WHERE global_id=$1`
	var ident model.Identity
	if err := r.db.Pool.QueryRow(ctx, q, globalID).Scan(&ident.ID, &ident.GlobalID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}
