package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/model"
)

// PermissionRepo implements PermissionRepository using PostgreSQL.
type PermissionRepo struct{ db *DB }

// NewPermissionRepo constructs a permission repository.
func NewPermissionRepo(db *DB) *PermissionRepo { return &PermissionRepo{db: db} }

// Create inserts a new grant.
func (r *PermissionRepo) Create(ctx context.Context, p *model.Permission) error {
	const q = `
INSERT INTO permissions (issuing_fk, access_type, recipient_fk, status_type)
VALUES ($1, $2, $3, $4)
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, p.IssuerID, string(p.AccessType), p.RecipientID, p.StatusTypePattern).Scan(&p.ID)
}

// Delete removes grants matching the full (issuer, kind, recipient, pattern)
// tuple. Deleting a non-existent grant is a no-op.
func (r *PermissionRepo) Delete(ctx context.Context, issuerID int64, kind model.AccessType, recipientGlobalID, pattern string) error {
	const q = `
DELETE FROM permissions p
USING global_ids g
WHERE p.recipient_fk = g.id
  AND p.issuing_fk=$1 AND p.access_type=$2 AND g.global_id=$3 AND p.status_type=$4`
	_, err := r.db.Pool.Exec(ctx, q, issuerID, string(kind), recipientGlobalID, pattern)
	return err
}

const permissionColumns = `
SELECT p.id, p.issuing_fk, p.access_type, p.recipient_fk, g.global_id, p.status_type
FROM permissions p
JOIN global_ids g ON g.id = p.recipient_fk`

// ListByIssuer returns all grants issued by the identity, optionally limited
// to one recipient.
func (r *PermissionRepo) ListByIssuer(ctx context.Context, issuerID int64, recipientGlobalID *string) ([]model.Permission, error) {
	if recipientGlobalID != nil {
		const q = permissionColumns + `
WHERE p.issuing_fk=$1 AND g.global_id=$2
ORDER BY p.id`
		rows, err := r.db.Pool.Query(ctx, q, issuerID, *recipientGlobalID)
		if err != nil {
			return nil, err
		}
		return scanPermissions(rows)
	}
	const q = permissionColumns + `
WHERE p.issuing_fk=$1
ORDER BY p.id`
	rows, err := r.db.Pool.Query(ctx, q, issuerID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// ListByIssuerKind returns grants of one access kind issued by the identity.
func (r *PermissionRepo) ListByIssuerKind(ctx context.Context, issuerID int64, kind model.AccessType) ([]model.Permission, error) {
	const q = permissionColumns + `
WHERE p.issuing_fk=$1 AND p.access_type=$2
ORDER BY p.id`
	rows, err := r.db.Pool.Query(ctx, q, issuerID, string(kind))
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// ListGranted returns grants of one kind from the issuer (by global ID) to
// the recipient identity.
func (r *PermissionRepo) ListGranted(ctx context.Context, issuerGlobalID string, kind model.AccessType, recipientID int64) ([]model.Permission, error) {
	const q = `
SELECT p.id, p.issuing_fk, p.access_type, p.recipient_fk, g.global_id, p.status_type
FROM permissions p
JOIN global_ids gi ON gi.id = p.issuing_fk
JOIN global_ids g ON g.id = p.recipient_fk
WHERE gi.global_id=$1 AND p.access_type=$2 AND p.recipient_fk=$3
ORDER BY p.id`
	rows, err := r.db.Pool.Query(ctx, q, issuerGlobalID, string(kind), recipientID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func scanPermissions(rows pgx.Rows) ([]model.Permission, error) {
	defer rows.Close()
	var out []model.Permission
	for rows.Next() {
		var p model.Permission
		var kind string
		if err := rows.Scan(&p.ID, &p.IssuerID, &kind, &p.RecipientID,
			&p.RecipientGlobalID, &p.StatusTypePattern); err != nil {
			return nil, err
		}
		p.AccessType = model.AccessType(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}
