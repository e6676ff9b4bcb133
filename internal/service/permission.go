package service

import (
	"context"
	"fmt"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
)

// PermissionService manages the grants a caller has issued.
type PermissionService interface {
	// List returns the caller's grants, optionally filtered by recipient
	// global ID and by "covers this status type".
	List(ctx context.Context, caller *model.Identity, filterRecipient, filterType *string) ([]model.Permission, error)
	// Create issues a new grant from the caller to the recipient.
	Create(ctx context.Context, caller *model.Identity, kind model.AccessType, recipientGlobalID, pattern string) error
	// Delete removes the grant matching the full tuple. Idempotent.
	Delete(ctx context.Context, caller *model.Identity, kind model.AccessType, recipientGlobalID, pattern string) error
}

// PermissionServiceImpl implements PermissionService.
type PermissionServiceImpl struct {
	ids   repository.IdentityRepository
	perms repository.PermissionRepository
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(ids repository.IdentityRepository, perms repository.PermissionRepository) *PermissionServiceImpl {
	return &PermissionServiceImpl{ids: ids, perms: perms}
}

// List implements PermissionService.
func (s *PermissionServiceImpl) List(ctx context.Context, caller *model.Identity, filterRecipient, filterType *string) ([]model.Permission, error) {
	grants, err := s.perms.ListByIssuer(ctx, caller.ID, filterRecipient)
	if err != nil {
		return nil, err
	}
	if filterType == nil {
		return grants, nil
	}
	out := grants[:0]
	for _, g := range grants {
		if g.MatchesStatusType(*filterType) {
			out = append(out, g)
		}
	}
	return out, nil
}

// Create implements PermissionService. Validation happens before the
// recipient identity is created, so malformed requests leave no trace.
func (s *PermissionServiceImpl) Create(ctx context.Context, caller *model.Identity, kind model.AccessType, recipientGlobalID, pattern string) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid access_type: %w", errs.ErrInvalid)
	}
	if recipientGlobalID == "" {
		return fmt.Errorf("missing recipient: %w", errs.ErrInvalid)
	}
	if !model.ValidStatusTypePattern(pattern) {
		return fmt.Errorf("invalid status_type: %w", errs.ErrInvalid)
	}

	recipient, err := s.ids.GetOrCreate(ctx, recipientGlobalID)
	if err != nil {
		return err
	}
	return s.perms.Create(ctx, &model.Permission{
		IssuerID:          caller.ID,
		AccessType:        kind,
		RecipientID:       recipient.ID,
		RecipientGlobalID: recipient.GlobalID,
		StatusTypePattern: pattern,
	})
}

// Delete implements PermissionService.
func (s *PermissionServiceImpl) Delete(ctx context.Context, caller *model.Identity, kind model.AccessType, recipientGlobalID, pattern string) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid access_type: %w", errs.ErrInvalid)
	}
	return s.perms.Delete(ctx, caller.ID, kind, recipientGlobalID, pattern)
}
