// Package service contains application services for authentication, access
// credentials, permissions, status publishing and retrieval.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/hmacsig"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/nonce"
	"github.com/statuskit/statusd/internal/repository"
)

// Authenticator verifies per-request HMAC signatures.
type Authenticator interface {
	// Verify checks the signature headers of an inbound request claiming to
	// come from globalID and returns the caller's identity. Every failure
	// collapses to errs.ErrForbidden so the response never reveals which
	// check failed.
	Verify(ctx context.Context, globalID, method, path string, body []byte, h hmacsig.Headers) (*model.Identity, error)
}

// AuthenticatorImpl verifies signatures against the caller's live credential
// and records nonces so a captured request can never be replayed.
type AuthenticatorImpl struct {
	creds     repository.CredentialRepository
	nonces    nonce.Ledger
	retention time.Duration // 0 keeps nonce values forever
	now       func() time.Time
	logger    *zap.Logger
}

// NewAuthenticator constructs an Authenticator. A zero retention disables
// nonce garbage collection.
func NewAuthenticator(creds repository.CredentialRepository, nonces nonce.Ledger, retention time.Duration, logger *zap.Logger) *AuthenticatorImpl {
	return &AuthenticatorImpl{
		creds:     creds,
		nonces:    nonces,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Verify implements Authenticator.
func (a *AuthenticatorImpl) Verify(ctx context.Context, globalID, method, path string, body []byte, h hmacsig.Headers) (*model.Identity, error) {
	a.purge(ctx)

	// Unknown identity or no live credential: the caller must enroll first.
	cred, err := a.creds.GetByGlobalID(ctx, globalID)
	if err != nil {
		return nil, errs.ErrForbidden
	}

	if !h.Complete() {
		return nil, errs.ErrForbidden
	}

	// The Content-MD5 check binds the received body to the signed canonical
	// string without hashing the full body into the signature itself.
	if !hmacsig.Equal(h.ContentMD5, hmacsig.ContentMD5(body)) {
		return nil, errs.ErrForbidden
	}

	// Record the nonce before checking the signature; the insert is the
	// atomic once-only gate, so two concurrent replays cannot both pass.
	if err := a.nonces.Remember(ctx, h.Nonce, a.now()); err != nil {
		return nil, errs.ErrForbidden
	}

	expected := hmacsig.Authorization(method, path, h.ContentMD5, h.Nonce, cred.AccessSecret)
	if !hmacsig.Equal(h.Authorization, expected) {
		return nil, errs.ErrForbidden
	}

	return &model.Identity{ID: cred.IdentityID, GlobalID: globalID}, nil
}

// purge opportunistically drops nonce values past the retention window.
// Failures are logged and ignored: purging bounds storage, not correctness.
func (a *AuthenticatorImpl) purge(ctx context.Context) {
	if a.retention <= 0 {
		return
	}
	cutoff := a.now().Add(-a.retention)
	if err := a.nonces.PurgeBefore(ctx, cutoff); err != nil {
		a.logger.Warn("nonce purge failed", zap.Error(err))
	}
}
