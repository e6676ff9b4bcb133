package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/statuskit/statusd/internal/contents"
	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
	"github.com/statuskit/statusd/internal/timefmt"
)

// LocationFix is one location sample submitted by a tracker.
type LocationFix struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// LocationService turns a location-tracking session into a stream of
// location/latlong status writes, fanning each one out like a direct
// publish.
type LocationService interface {
	// StartSession returns the caller's session ID, minting one if absent.
	StartSession(ctx context.Context, caller *model.Identity) (string, error)
	// EndSession deletes the caller's session; errs.ErrNotFound if none.
	EndSession(ctx context.Context, caller *model.Identity) error
	// SubmitFixes validates all fixes, then writes one status update per
	// fix on behalf of the session owner. The session ID is the only
	// credential on this path; an unknown one is errs.ErrForbidden.
	SubmitFixes(ctx context.Context, sessionID string, fixes []LocationFix) error
}

// LocationServiceImpl implements LocationService.
type LocationServiceImpl struct {
	sessions repository.SessionRepository
	types    repository.StatusTypeRepository
	statuses repository.StatusRepository
	status   *StatusServiceImpl
}

// NewLocationService constructs a LocationService.
func NewLocationService(
	sessions repository.SessionRepository,
	types repository.StatusTypeRepository,
	statuses repository.StatusRepository,
	status *StatusServiceImpl,
) *LocationServiceImpl {
	return &LocationServiceImpl{sessions: sessions, types: types, statuses: statuses, status: status}
}

// StartSession implements LocationService.
func (s *LocationServiceImpl) StartSession(ctx context.Context, caller *model.Identity) (string, error) {
	existing, err := s.sessions.GetByIdentity(ctx, caller.ID)
	if err == nil {
		return existing.SessionID, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}

	sess := &model.LocationSession{
		IdentityID: caller.ID,
		GlobalID:   caller.GlobalID,
		SessionID:  hex.EncodeToString(uuid.Must(uuid.NewV4()).Bytes()),
	}
	err = s.sessions.Insert(ctx, sess)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// A concurrent start won; reuse its session.
		winner, gerr := s.sessions.GetByIdentity(ctx, caller.ID)
		if gerr != nil {
			return "", gerr
		}
		return winner.SessionID, nil
	}
	if err != nil {
		return "", err
	}
	return sess.SessionID, nil
}

// EndSession implements LocationService.
func (s *LocationServiceImpl) EndSession(ctx context.Context, caller *model.Identity) error {
	return s.sessions.DeleteByIdentity(ctx, caller.ID)
}

// SubmitFixes implements LocationService. Every fix is validated before the
// first write, so a bad batch leaves no partial state behind.
func (s *LocationServiceImpl) SubmitFixes(ctx context.Context, sessionID string, fixes []LocationFix) error {
	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrForbidden
		}
		return err
	}
	st, err := s.types.GetByName(ctx, contents.LatLongType)
	if err != nil {
		return err
	}

	for _, fix := range fixes {
		if fix.Timestamp.IsZero() {
			return fmt.Errorf("missing timestamp: %w", errs.ErrInvalid)
		}
		if !contents.ValidCoordinates(fix.Latitude, fix.Longitude) {
			return fmt.Errorf("invalid coordinates: %w", errs.ErrInvalid)
		}
	}

	issuer := &model.Identity{ID: sess.IdentityID, GlobalID: sess.GlobalID}
	for _, fix := range fixes {
		body, err := json.Marshal(map[string]any{
			"latitude":  fix.Latitude,
			"longitude": fix.Longitude,
			"type":      "presence",
		})
		if err != nil {
			return err
		}
		utc, offset := timefmt.Split(fix.Timestamp)
		update := &model.StatusUpdate{
			IssuerID:  issuer.ID,
			GlobalID:  issuer.GlobalID,
			TypeID:    st.ID,
			TypeName:  st.Name,
			Timestamp: utc,
			TZOffset:  offset,
			Contents:  string(body),
		}
		if err := s.statuses.Append(ctx, update); err != nil {
			return err
		}
		if _, err := s.status.republish(ctx, issuer, st, update); err != nil {
			return err
		}
	}
	return nil
}
