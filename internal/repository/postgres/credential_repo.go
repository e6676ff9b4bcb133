package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// GetByGlobalID selects the live credential for a global ID.
func (r *CredentialRepo) GetByGlobalID(ctx context.Context, globalID string) (*model.Credential, error) {
	const q = `
SELECT c.id, c.global_id_fk, c.device_id, c.issued_at, c.access_id, c.access_secret
FROM access_credentials c
JOIN global_ids g ON g.id = c.global_id_fk
WHERE g.global_id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, globalID))
}

// GetByIdentity selects the live credential for an identity.
func (r *CredentialRepo) GetByIdentity(ctx context.Context, identityID int64) (*model.Credential, error) {
	const q = `
SELECT id, global_id_fk, device_id, issued_at, access_id, access_secret
FROM access_credentials
WHERE global_id_fk=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, identityID))
}

func (r *CredentialRepo) scanOne(row pgx.Row) (*model.Credential, error) {
	var c model.Credential
	err := row.Scan(&c.ID, &c.IdentityID, &c.DeviceID, &c.IssuedAt, &c.AccessID, &c.AccessSecret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Insert stores a new credential. The unique constraint sits on the identity
// column alone, so two concurrent enrollments cannot both succeed.
func (r *CredentialRepo) Insert(ctx context.Context, c *model.Credential) error {
	const q = `
INSERT INTO access_credentials (global_id_fk, device_id, issued_at, access_id, access_secret)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (global_id_fk) DO NOTHING
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, c.IdentityID, c.DeviceID, c.IssuedAt, c.AccessID, c.AccessSecret).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrAlreadyExists
	}
	return err
}

// DeleteByIdentity removes every credential for the identity.
func (r *CredentialRepo) DeleteByIdentity(ctx context.Context, identityID int64) error {
	const q = `DELETE FROM access_credentials WHERE global_id_fk=$1`
	_, err := r.db.Pool.Exec(ctx, q, identityID)
	return err
}
