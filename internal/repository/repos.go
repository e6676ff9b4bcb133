// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/statuskit/statusd/internal/model"
)

// IdentityRepository manages the global ID registry.
type IdentityRepository interface {
	// GetOrCreate returns the identity for the global ID, creating it on
	// first reference. Idempotent.
	GetOrCreate(ctx context.Context, globalID string) (*model.Identity, error)
	// Get loads an existing identity; errs.ErrNotFound when unknown.
	Get(ctx context.Context, globalID string) (*model.Identity, error)
}

// CredentialRepository manages device-bound access credentials.
type CredentialRepository interface {
	// GetByGlobalID loads the live credential for a global ID.
	GetByGlobalID(ctx context.Context, globalID string) (*model.Credential, error)
	// GetByIdentity loads the live credential for an identity.
	GetByIdentity(ctx context.Context, identityID int64) (*model.Credential, error)
	// Insert stores a new credential; errs.ErrAlreadyExists if the identity
	// already has one (unique constraint on the identity, not the device).
	Insert(ctx context.Context, c *model.Credential) error
	// DeleteByIdentity removes every credential for the identity. Idempotent.
	DeleteByIdentity(ctx context.Context, identityID int64) error
}

// StatusTypeRepository reads the pre-seeded status type catalog.
type StatusTypeRepository interface {
	// GetByName loads a status type; errs.ErrNotFound when unknown.
	GetByName(ctx context.Context, name string) (*model.StatusType, error)
}

// StatusRepository is the append-only status history.
type StatusRepository interface {
	// Append persists a new immutable status record and sets its ID.
	Append(ctx context.Context, u *model.StatusUpdate) error
	// Page returns records for (identity, type) ordered by descending
	// timestamp, limit/offset addressed.
	Page(ctx context.Context, identityID, typeID int64, limit, offset int) ([]model.StatusUpdate, error)
	// Count returns the total number of records for (identity, type).
	Count(ctx context.Context, identityID, typeID int64) (int64, error)
}

// PermissionRepository manages view-permission grants.
type PermissionRepository interface {
	// Create stores a new grant and sets its ID.
	Create(ctx context.Context, p *model.Permission) error
	// Delete removes grants matching the full tuple. Idempotent.
	Delete(ctx context.Context, issuerID int64, kind model.AccessType, recipientGlobalID, pattern string) error
	// ListByIssuer returns grants issued by the identity, optionally
	// filtered by recipient global ID.
	ListByIssuer(ctx context.Context, issuerID int64, recipientGlobalID *string) ([]model.Permission, error)
	// ListByIssuerKind returns grants of one access kind issued by the
	// identity (the fan-out path reads CURRENT grants through this).
	ListByIssuerKind(ctx context.Context, issuerID int64, kind model.AccessType) ([]model.Permission, error)
	// ListGranted returns grants of one kind from an issuer (by global ID)
	// to a recipient identity.
	ListGranted(ctx context.Context, issuerGlobalID string, kind model.AccessType, recipientID int64) ([]model.Permission, error)
}

// ViewFilter selects current-view rows on the read path. Exactly one of
// IssuerID/RecipientID is set by the caller ("own" vs default reads).
type ViewFilter struct {
	IssuerID       *int64
	RecipientID    *int64
	IssuerGlobalID *string
	TypeName       *string
	Since          *time.Time // exclusive lower bound on the view timestamp
}

// ViewRepository is the materialized current-status cache.
type ViewRepository interface {
	// Replace upserts the view row keyed by (issuer, recipient, type);
	// the most recent write wins and the key holds at most one row.
	Replace(ctx context.Context, v *model.CurrentView) error
	// Query returns view rows matching the filter.
	Query(ctx context.Context, f ViewFilter) ([]model.CurrentView, error)
}

// MessageRepository holds ephemeral point-to-point messages.
type MessageRepository interface {
	// Insert stores a new message.
	Insert(ctx context.Context, m *model.Message) error
	// TakeForRecipient atomically returns and deletes all pending messages
	// for the recipient, in timestamp order.
	TakeForRecipient(ctx context.Context, recipientID int64) ([]model.Message, error)
}

// SessionRepository manages location-tracking sessions.
type SessionRepository interface {
	// GetByIdentity loads the session owned by the identity.
	GetByIdentity(ctx context.Context, identityID int64) (*model.LocationSession, error)
	// GetBySessionID loads a session by its opaque session ID.
	GetBySessionID(ctx context.Context, sessionID string) (*model.LocationSession, error)
	// Insert stores a new session; errs.ErrAlreadyExists if the identity
	// already has one.
	Insert(ctx context.Context, s *model.LocationSession) error
	// DeleteByIdentity removes the identity's session; errs.ErrNotFound if
	// there is none.
	DeleteByIdentity(ctx context.Context, identityID int64) error
}
