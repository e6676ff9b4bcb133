package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a location session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

// GetByIdentity selects the session owned by the identity.
func (r *SessionRepo) GetByIdentity(ctx context.Context, identityID int64) (*model.LocationSession, error) {
	const q = `
SELECT s.id, s.global_id_fk, g.global_id, s.session_id
FROM location_sessions s
JOIN global_ids g ON g.id = s.global_id_fk
WHERE s.global_id_fk=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, identityID))
}

// GetBySessionID selects a session by its opaque session ID.
func (r *SessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.LocationSession, error) {
	const q = `
SELECT s.id, s.global_id_fk, g.global_id, s.session_id
FROM location_sessions s
JOIN global_ids g ON g.id = s.global_id_fk
WHERE s.session_id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, sessionID))
}

func (r *SessionRepo) scanOne(row pgx.Row) (*model.LocationSession, error) {
	var s model.LocationSession
	if err := row.Scan(&s.ID, &s.IdentityID, &s.GlobalID, &s.SessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Insert stores a new session; one per identity. The unique constraint on
// the identity reports a concurrent start as errs.ErrAlreadyExists.
func (r *SessionRepo) Insert(ctx context.Context, s *model.LocationSession) error {
	const q = `
INSERT INTO location_sessions (global_id_fk, session_id)
VALUES ($1, $2)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, s.IdentityID, s.SessionID).Scan(&s.ID)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// DeleteByIdentity removes the identity's session.
func (r *SessionRepo) DeleteByIdentity(ctx context.Context, identityID int64) error {
	const q = `DELETE FROM location_sessions WHERE global_id_fk=$1`
	tag, err := r.db.Pool.Exec(ctx, q, identityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
