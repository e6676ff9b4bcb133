package nonce

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/statuskit/statusd/internal/errs"
)

// Execer is the single pgx capability the ledger needs. *pgxpool.Pool and
// pgxmock both provide it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PG is a PostgreSQL-backed nonce ledger. The check-then-insert is a single
// conditional write so replay protection holds under concurrent load.
type PG struct {
	pool Execer
}

// NewPG constructs a PostgreSQL-backed nonce ledger.
func NewPG(pool Execer) *PG {
	return &PG{pool: pool}
}

// Remember inserts the nonce; a conflicting row means the value was already
// used and the request must be rejected.
func (l *PG) Remember(ctx context.Context, nonce string, seenAt time.Time) error {
	const q = `
INSERT INTO nonce_values (nonce, seen_at)
VALUES ($1, $2)
ON CONFLICT (nonce) DO NOTHING`
	tag, err := l.pool.Exec(ctx, q, nonce, seenAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrDuplicateNonce
	}
	return nil
}

// PurgeBefore deletes nonce rows seen at or before the cutoff.
func (l *PG) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	const q = `DELETE FROM nonce_values WHERE seen_at <= $1`
	_, err := l.pool.Exec(ctx, q, cutoff)
	return err
}
