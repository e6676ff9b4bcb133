package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/statuskit/statusd/internal/contents"
	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
	"github.com/statuskit/statusd/internal/timefmt"
)

// HistoryPageSize is the fixed page size for history reads.
const HistoryPageSize = 50

// SinceAll is the cursor value meaning "no data yet, fetch everything".
const SinceAll = "ALL"

// CurrentQuery selects current-view rows on the read path.
type CurrentQuery struct {
	Own             bool // the caller's published views instead of received ones
	FilterPublisher *string
	FilterType      *string
	Since           *time.Time // exclusive
}

// StatusService is the status ledger plus the current-view materializer.
type StatusService interface {
	// Publish validates and appends a status update, then fans it out into
	// the current-view cache of every recipient whose CURRENT grant matches
	// the type. Returns the number of views updated.
	Publish(ctx context.Context, caller *model.Identity, typeName string, timestamp time.Time, statusContents string) (int, error)
	// ReadCurrent returns the caller's visible views and a since cursor for
	// incremental polling (SinceAll when no rows matched).
	ReadCurrent(ctx context.Context, caller *model.Identity, q CurrentQuery) ([]model.CurrentView, string, error)
	// History returns one page of the target identity's status history,
	// newest first. Reading another identity's history requires a HISTORY
	// grant from that identity covering the type. more is the next page
	// number, or nil on the last page.
	History(ctx context.Context, caller *model.Identity, targetGlobalID, typeName string, page int) (updates []model.StatusUpdate, more *int, err error)
}

// StatusServiceImpl implements StatusService.
type StatusServiceImpl struct {
	types      repository.StatusTypeRepository
	statuses   repository.StatusRepository
	perms      repository.PermissionRepository
	views      repository.ViewRepository
	ids        repository.IdentityRepository
	validators *contents.Registry
	logger     *zap.Logger
}

// NewStatusService constructs a StatusService.
func NewStatusService(
	types repository.StatusTypeRepository,
	statuses repository.StatusRepository,
	perms repository.PermissionRepository,
	views repository.ViewRepository,
	ids repository.IdentityRepository,
	validators *contents.Registry,
	logger *zap.Logger,
) *StatusServiceImpl {
	return &StatusServiceImpl{
		types:      types,
		statuses:   statuses,
		perms:      perms,
		views:      views,
		ids:        ids,
		validators: validators,
		logger:     logger,
	}
}

// Publish implements StatusService. All validation precedes the append, so a
// rejected update leaves neither a history row nor any view row behind.
func (s *StatusServiceImpl) Publish(ctx context.Context, caller *model.Identity, typeName string, timestamp time.Time, statusContents string) (int, error) {
	st, err := s.types.GetByName(ctx, typeName)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return 0, fmt.Errorf("invalid type %q: %w", typeName, errs.ErrInvalid)
		}
		return 0, err
	}
	if err := s.validators.Validate(typeName, statusContents); err != nil {
		return 0, err
	}

	utc, offset := timefmt.Split(timestamp)
	update := &model.StatusUpdate{
		IssuerID:  caller.ID,
		GlobalID:  caller.GlobalID,
		TypeID:    st.ID,
		TypeName:  st.Name,
		Timestamp: utc,
		TZOffset:  offset,
		Contents:  statusContents,
	}
	if err := s.statuses.Append(ctx, update); err != nil {
		return 0, err
	}
	return s.republish(ctx, caller, st, update)
}

// republish fans a freshly appended update out to every recipient holding a
// matching CURRENT grant, replacing their (issuer, recipient, type) view row.
// Fan-out is not atomic across recipients: a storage failure mid-way leaves
// the earlier replacements in place, and the error reports how far it got.
func (s *StatusServiceImpl) republish(ctx context.Context, issuer *model.Identity, st *model.StatusType, update *model.StatusUpdate) (int, error) {
	grants, err := s.perms.ListByIssuerKind(ctx, issuer.ID, model.AccessCurrent)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, g := range grants {
		if !g.MatchesStatusType(st.Name) {
			continue
		}
		view := &model.CurrentView{
			IssuerID:       issuer.ID,
			IssuerGlobalID: issuer.GlobalID,
			RecipientID:    g.RecipientID,
			StatusUpdateID: update.ID,
			TypeID:         st.ID,
			TypeName:       st.Name,
			Timestamp:      update.Timestamp,
			TZOffset:       update.TZOffset,
			Contents:       update.Contents,
		}
		if err := s.views.Replace(ctx, view); err != nil {
			s.logger.Error("current view fan-out failed",
				zap.String("issuer", issuer.GlobalID),
				zap.String("recipient", g.RecipientGlobalID),
				zap.String("type", st.Name),
				zap.Int("views_updated", updated),
				zap.Error(err),
			)
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// ReadCurrent implements StatusService.
func (s *StatusServiceImpl) ReadCurrent(ctx context.Context, caller *model.Identity, q CurrentQuery) ([]model.CurrentView, string, error) {
	filter := repository.ViewFilter{
		IssuerGlobalID: q.FilterPublisher,
		TypeName:       q.FilterType,
		Since:          q.Since,
	}
	if q.Own {
		filter.IssuerID = &caller.ID
	} else {
		filter.RecipientID = &caller.ID
	}

	views, err := s.views.Query(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	since := SinceAll
	var latest time.Time
	for _, v := range views {
		if v.Timestamp.After(latest) {
			latest = v.Timestamp
			since = timefmt.Format(v.Timestamp, v.TZOffset)
		}
	}
	return views, since, nil
}

// History implements StatusService.
func (s *StatusServiceImpl) History(ctx context.Context, caller *model.Identity, targetGlobalID, typeName string, page int) ([]model.StatusUpdate, *int, error) {
	st, err := s.types.GetByName(ctx, typeName)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, fmt.Errorf("invalid type %q: %w", typeName, errs.ErrInvalid)
		}
		return nil, nil, err
	}
	if page < 1 {
		return nil, nil, fmt.Errorf("invalid page number: %w", errs.ErrInvalid)
	}

	if targetGlobalID != caller.GlobalID {
		if err := s.checkHistoryGrant(ctx, targetGlobalID, caller.ID, typeName); err != nil {
			return nil, nil, err
		}
	}

	target, err := s.ids.Get(ctx, targetGlobalID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	total, err := s.statuses.Count(ctx, target.ID, st.ID)
	if err != nil {
		return nil, nil, err
	}
	pages := int((total + HistoryPageSize - 1) / HistoryPageSize)
	if page > pages {
		return nil, nil, nil
	}

	updates, err := s.statuses.Page(ctx, target.ID, st.ID, HistoryPageSize, (page-1)*HistoryPageSize)
	if err != nil {
		return nil, nil, err
	}
	var more *int
	if page < pages {
		next := page + 1
		more = &next
	}
	return updates, more, nil
}

// checkHistoryGrant requires a HISTORY grant from the target to the caller
// covering the type.
func (s *StatusServiceImpl) checkHistoryGrant(ctx context.Context, issuerGlobalID string, recipientID int64, typeName string) error {
	grants, err := s.perms.ListGranted(ctx, issuerGlobalID, model.AccessHistory, recipientID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if g.MatchesStatusType(typeName) {
			return nil
		}
	}
	return errs.ErrForbidden
}
