package postgres

import (
	"context"

	"github.com/statuskit/statusd/internal/model"
)

// StatusRepo implements StatusRepository using PostgreSQL.
type StatusRepo struct{ db *DB }

// NewStatusRepo constructs a status history repository.
func NewStatusRepo(db *DB) *StatusRepo { return &StatusRepo{db: db} }

// Append inserts a new history row. Rows are never updated or deleted.
func (r *StatusRepo) Append(ctx context.Context, u *model.StatusUpdate) error {
	const q = `
INSERT INTO status_updates (global_id_fk, type_fk, ts, tz_offset, contents)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, u.IssuerID, u.TypeID, u.Timestamp, u.TZOffset, u.Contents).Scan(&u.ID)
}

// Page selects one page of history for (identity, type), newest first.
func (r *StatusRepo) Page(ctx context.Context, identityID, typeID int64, limit, offset int) ([]model.StatusUpdate, error) {
	const q = `
SELECT u.id, u.global_id_fk, g.global_id, u.type_fk, t.type, u.ts, u.tz_offset, u.contents
FROM status_updates u
JOIN global_ids g ON g.id = u.global_id_fk
JOIN status_types t ON t.id = u.type_fk
WHERE u.global_id_fk=$1 AND u.type_fk=$2
ORDER BY u.ts DESC, u.id DESC
LIMIT $3 OFFSET $4`
	rows, err := r.db.Pool.Query(ctx, q, identityID, typeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StatusUpdate
	for rows.Next() {
		var u model.StatusUpdate
		if err = rows.Scan(&u.ID, &u.IssuerID, &u.GlobalID, &u.TypeID, &u.TypeName,
			&u.Timestamp, &u.TZOffset, &u.Contents); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Count returns the number of history rows for (identity, type).
func (r *StatusRepo) Count(ctx context.Context, identityID, typeID int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM status_updates WHERE global_id_fk=$1 AND type_fk=$2`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q, identityID, typeID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
