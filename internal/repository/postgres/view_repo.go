package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
)

// ViewRepo implements ViewRepository using PostgreSQL.
type ViewRepo struct{ db *DB }

// NewViewRepo constructs a current-view repository.
func NewViewRepo(db *DB) *ViewRepo { return &ViewRepo{db: db} }

// Replace upserts the row for (issuer, recipient, type). The unique
// constraint on the key turns concurrent replacements for the same key into
// a serialized last-write-wins, with no application-level locking.
func (r *ViewRepo) Replace(ctx context.Context, v *model.CurrentView) error {
	const q = `
INSERT INTO current_views (issuing_fk, recipient_fk, status_update_fk, type_fk, ts, tz_offset, contents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (issuing_fk, recipient_fk, type_fk) DO UPDATE
SET status_update_fk=EXCLUDED.status_update_fk, ts=EXCLUDED.ts,
    tz_offset=EXCLUDED.tz_offset, contents=EXCLUDED.contents
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, v.IssuerID, v.RecipientID, v.StatusUpdateID,
		v.TypeID, v.Timestamp, v.TZOffset, v.Contents).Scan(&v.ID)
}

// Query selects view rows matching the filter.
func (r *ViewRepo) Query(ctx context.Context, f repository.ViewFilter) ([]model.CurrentView, error) {
	q := strings.Builder{}
	q.WriteString(`
SELECT v.id, v.issuing_fk, gi.global_id, v.recipient_fk, v.status_update_fk,
       v.type_fk, t.type, v.ts, v.tz_offset, v.contents
FROM current_views v
JOIN global_ids gi ON gi.id = v.issuing_fk
JOIN status_types t ON t.id = v.type_fk`)

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.IssuerID != nil {
		add("v.issuing_fk=$%d", *f.IssuerID)
	}
	if f.RecipientID != nil {
		add("v.recipient_fk=$%d", *f.RecipientID)
	}
	if f.IssuerGlobalID != nil {
		add("gi.global_id=$%d", *f.IssuerGlobalID)
	}
	if f.TypeName != nil {
		add("t.type=$%d", *f.TypeName)
	}
	if f.Since != nil {
		add("v.ts > $%d", *f.Since)
	}
	if len(conds) > 0 {
		q.WriteString("\nWHERE " + strings.Join(conds, " AND "))
	}
	q.WriteString("\nORDER BY v.ts, v.id")

	rows, err := r.db.Pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CurrentView
	for rows.Next() {
		var v model.CurrentView
		if err = rows.Scan(&v.ID, &v.IssuerID, &v.IssuerGlobalID, &v.RecipientID,
			&v.StatusUpdateID, &v.TypeID, &v.TypeName, &v.Timestamp, &v.TZOffset,
			&v.Contents); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
