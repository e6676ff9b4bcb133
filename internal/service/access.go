package service

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
)

// AccessService issues and revokes device-bound access credentials.
type AccessService interface {
	// Enroll returns the credential for (globalID, deviceID), minting one on
	// first enrollment. Re-enrolling from the same device returns the
	// existing credential unchanged; a different device is rejected with
	// errs.ErrDeviceConflict.
	Enroll(ctx context.Context, globalID, deviceID string) (*model.Credential, error)
	// Revoke deletes the identity's credentials. Always succeeds, including
	// for identities that never enrolled.
	Revoke(ctx context.Context, globalID string) error
}

// AccessServiceImpl implements AccessService over the identity and
// credential repositories.
type AccessServiceImpl struct {
	ids   repository.IdentityRepository
	creds repository.CredentialRepository
	now   func() time.Time
}

// NewAccessService constructs an AccessService.
func NewAccessService(ids repository.IdentityRepository, creds repository.CredentialRepository) *AccessServiceImpl {
	return &AccessServiceImpl{ids: ids, creds: creds, now: time.Now}
}

// Enroll implements AccessService. The one-active-device invariant is backed
// by a unique constraint on the identity, so a lost insert race is resolved
// by re-reading the winner's row and applying the same device check.
func (s *AccessServiceImpl) Enroll(ctx context.Context, globalID, deviceID string) (*model.Credential, error) {
	if globalID == "" || deviceID == "" {
		return nil, errs.ErrInvalid
	}

	ident, err := s.ids.GetOrCreate(ctx, globalID)
	if err != nil {
		return nil, err
	}

	existing, err := s.creds.GetByIdentity(ctx, ident.ID)
	switch {
	case err == nil:
		return credentialForDevice(existing, deviceID)
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	cred := &model.Credential{
		IdentityID:   ident.ID,
		DeviceID:     deviceID,
		IssuedAt:     s.now(),
		AccessID:     newToken(),
		AccessSecret: newToken(),
	}
	err = s.creds.Insert(ctx, cred)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// Lost the race against a concurrent enrollment.
		winner, gerr := s.creds.GetByIdentity(ctx, ident.ID)
		if gerr != nil {
			return nil, gerr
		}
		return credentialForDevice(winner, deviceID)
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func credentialForDevice(c *model.Credential, deviceID string) (*model.Credential, error) {
	if c.DeviceID != deviceID {
		return nil, errs.ErrDeviceConflict
	}
	return c, nil
}

// Revoke implements AccessService.
func (s *AccessServiceImpl) Revoke(ctx context.Context, globalID string) error {
	if globalID == "" {
		return errs.ErrInvalid
	}
	ident, err := s.ids.GetOrCreate(ctx, globalID)
	if err != nil {
		return err
	}
	return s.creds.DeleteByIdentity(ctx, ident.ID)
}

// newToken mints a high-entropy opaque token (128 random bits, hex).
func newToken() string {
	return hex.EncodeToString(uuid.Must(uuid.NewV4()).Bytes())
}
