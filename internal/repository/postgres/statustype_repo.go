package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
)

// StatusTypeRepo implements StatusTypeRepository using PostgreSQL.
type StatusTypeRepo struct{ db *DB }

// NewStatusTypeRepo constructs a status type repository.
func NewStatusTypeRepo(db *DB) *StatusTypeRepo { return &StatusTypeRepo{db: db} }

// GetByName selects a catalog entry by type name.
func (r *StatusTypeRepo) GetByName(ctx context.Context, name string) (*model.StatusType, error) {
	const q = `SELECT id, type, description FROM status_types WHERE type=$1`
	var st model.StatusType
	if err := r.db.Pool.QueryRow(ctx, q, name).Scan(&st.ID, &st.Name, &st.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}
