package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
)

// MessageService is the ephemeral point-to-point channel. Delivery is
// at-most-once: fetching removes the messages. It sits outside the
// permission model.
type MessageService interface {
	// Send stores a message for the recipient, creating the recipient's
	// identity on first reference.
	Send(ctx context.Context, caller *model.Identity, recipientGlobalID string, payload json.RawMessage) error
	// Receive atomically returns and removes all pending messages for the
	// caller, oldest first.
	Receive(ctx context.Context, caller *model.Identity) ([]model.Message, error)
}

// MessageServiceImpl implements MessageService.
type MessageServiceImpl struct {
	ids  repository.IdentityRepository
	msgs repository.MessageRepository
	now  func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(ids repository.IdentityRepository, msgs repository.MessageRepository) *MessageServiceImpl {
	return &MessageServiceImpl{ids: ids, msgs: msgs, now: time.Now}
}

// Send implements MessageService.
func (s *MessageServiceImpl) Send(ctx context.Context, caller *model.Identity, recipientGlobalID string, payload json.RawMessage) error {
	if recipientGlobalID == "" {
		return fmt.Errorf("missing recipient: %w", errs.ErrInvalid)
	}
	if len(payload) == 0 {
		return fmt.Errorf("missing message: %w", errs.ErrInvalid)
	}
	recipient, err := s.ids.GetOrCreate(ctx, recipientGlobalID)
	if err != nil {
		return err
	}
	return s.msgs.Insert(ctx, &model.Message{
		SentAt:         s.now().UTC(),
		SenderID:       caller.ID,
		SenderGlobalID: caller.GlobalID,
		RecipientID:    recipient.ID,
		Body:           string(payload),
	})
}

// Receive implements MessageService.
func (s *MessageServiceImpl) Receive(ctx context.Context, caller *model.Identity) ([]model.Message, error) {
	return s.msgs.TakeForRecipient(ctx, caller.ID)
}
