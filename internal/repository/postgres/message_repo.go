package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/statuskit/statusd/internal/model"
)

// MessageRepo implements MessageRepository using PostgreSQL.
type MessageRepo struct{ db *DB }

// NewMessageRepo constructs a message repository.
func NewMessageRepo(db *DB) *MessageRepo { return &MessageRepo{db: db} }

// Insert stores a new message.
func (r *MessageRepo) Insert(ctx context.Context, m *model.Message) error {
	const q = `
INSERT INTO messages (sent_at, sender_fk, recipient_fk, body)
VALUES ($1, $2, $3, $4)
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, m.SentAt, m.SenderID, m.RecipientID, m.Body).Scan(&m.ID)
}

// TakeForRecipient returns and deletes all pending messages for the
// recipient inside one transaction, oldest first. Delivery is at-most-once:
// a fetched message is gone even if the caller then loses the response.
func (r *MessageRepo) TakeForRecipient(ctx context.Context, recipientID int64) (msgs []model.Message, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `
SELECT m.id, m.sent_at, m.sender_fk, g.global_id, m.recipient_fk, m.body
FROM messages m
JOIN global_ids g ON g.id = m.sender_fk
WHERE m.recipient_fk=$1
ORDER BY m.sent_at, m.id`
	rows, err := tx.Query(ctx, sel, recipientID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0)
	for rows.Next() {
		var m model.Message
		if err = rows.Scan(&m.ID, &m.SentAt, &m.SenderID, &m.SenderGlobalID,
			&m.RecipientID, &m.Body); err != nil {
			rows.Close()
			return nil, err
		}
		msgs = append(msgs, m)
		ids = append(ids, m.ID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	const del = `DELETE FROM messages WHERE id = ANY($1)`
	if _, err = tx.Exec(ctx, del, ids); err != nil {
		return nil, err
	}
	return msgs, nil
}
