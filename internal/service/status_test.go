package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/statuskit/statusd/internal/contents"
	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/timefmt"
)

type statusFixture struct {
	svc      *StatusServiceImpl
	ids      *memIdentityRepo
	statuses *memStatusRepo
	perms    *memPermissionRepo
	views    *memViewRepo
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	ids := newMemIdentityRepo()
	statuses := &memStatusRepo{}
	perms := newMemPermissionRepo(ids)
	views := newMemViewRepo()
	svc := NewStatusService(newMemStatusTypeRepo(), statuses, perms, views, ids, contents.NewRegistry(), zap.NewNop())
	return &statusFixture{svc: svc, ids: ids, statuses: statuses, perms: perms, views: views}
}

func (f *statusFixture) identity(t *testing.T, globalID string) *model.Identity {
	t.Helper()
	ident, err := f.ids.GetOrCreate(context.Background(), globalID)
	require.NoError(t, err)
	return ident
}

func (f *statusFixture) grant(t *testing.T, issuer *model.Identity, kind model.AccessType, recipientGlobalID, pattern string) {
	t.Helper()
	recipient := f.identity(t, recipientGlobalID)
	require.NoError(t, f.perms.Create(context.Background(), &model.Permission{
		IssuerID:          issuer.ID,
		AccessType:        kind,
		RecipientID:       recipient.ID,
		RecipientGlobalID: recipient.GlobalID,
		StatusTypePattern: pattern,
	}))
}

func TestStatusService_Publish_ReplacesCurrentView(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	f.grant(t, alice, model.AccessCurrent, "bob", "availability/*")

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	updated, err := f.svc.Publish(ctx, alice, "availability/text", ts, "Working")
	require.NoError(t, err)
	require.Equal(t, 1, updated)
	require.Len(t, f.views.rows, 1)
	require.Len(t, f.statuses.rows, 1)

	// A second publish replaces bob's view row instead of adding one.
	updated, err = f.svc.Publish(ctx, alice, "availability/text", ts.Add(time.Hour), "Lunch")
	require.NoError(t, err)
	require.Equal(t, 1, updated)
	require.Len(t, f.views.rows, 1)
	require.Len(t, f.statuses.rows, 2)

	bob := f.identity(t, "bob")
	views, _, err := f.svc.ReadCurrent(ctx, bob, CurrentQuery{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "Lunch", views[0].Contents)
	require.Equal(t, "alice", views[0].IssuerGlobalID)
}

func TestStatusService_Publish_GrantMatching(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	f.grant(t, alice, model.AccessCurrent, "bob", "availability/*")
	f.grant(t, alice, model.AccessCurrent, "carol", "*")
	f.grant(t, alice, model.AccessCurrent, "dave", "location/latlong")
	// HISTORY grants never feed the current-view cache.
	f.grant(t, alice, model.AccessHistory, "erin", "*")

	updated, err := f.svc.Publish(ctx, alice, "availability/text", time.Now(), "Here")
	require.NoError(t, err)
	require.Equal(t, 2, updated) // bob and carol; dave's pattern does not cover the type
	require.Len(t, f.views.rows, 2)

	erin := f.identity(t, "erin")
	views, _, err := f.svc.ReadCurrent(ctx, erin, CurrentQuery{})
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestStatusService_Publish_UnknownType(t *testing.T) {
	f := newStatusFixture(t)
	alice := f.identity(t, "alice")

	_, err := f.svc.Publish(context.Background(), alice, "mood/emoji", time.Now(), ":)")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Empty(t, f.statuses.rows)
}

func TestStatusService_Publish_InvalidLatLong(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	f.grant(t, alice, model.AccessCurrent, "bob", "*")

	for _, bad := range []string{
		`{"latitude": 95, "longitude": 10}`,
		`{"latitude": 10, "longitude": -190}`,
		`{"latitude": 10}`,
		`{"latitude": 10, "longitude": 10, "extra": 1}`,
		`not json`,
	} {
		_, err := f.svc.Publish(ctx, alice, "location/latlong", time.Now(), bad)
		require.ErrorIs(t, err, errs.ErrInvalid, "contents: %s", bad)
	}
	// Rejected before any record is created.
	require.Empty(t, f.statuses.rows)
	require.Empty(t, f.views.rows)

	_, err := f.svc.Publish(ctx, alice, "location/latlong", time.Now(), `{"latitude": 52.5, "longitude": 13.4}`)
	require.NoError(t, err)
	require.Len(t, f.statuses.rows, 1)
}

func TestStatusService_Publish_FanOutFailureReportsProgress(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	f.grant(t, alice, model.AccessCurrent, "bob", "*")
	f.grant(t, alice, model.AccessCurrent, "carol", "*")

	boom := errors.New("storage down")
	f.views.failAt = 2
	f.views.replaceErr = boom

	updated, err := f.svc.Publish(ctx, alice, "availability/text", time.Now(), "Here")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, updated)
	// The append and the first replacement stay in place.
	require.Len(t, f.statuses.rows, 1)
	require.Len(t, f.views.rows, 1)
}

func TestStatusService_ReadCurrent_SinceCursor(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	bob := f.identity(t, "bob")
	f.grant(t, alice, model.AccessCurrent, "bob", "*")

	// Empty cache: the cursor tells the client to fetch everything.
	views, since, err := f.svc.ReadCurrent(ctx, bob, CurrentQuery{})
	require.NoError(t, err)
	require.Empty(t, views)
	require.Equal(t, SinceAll, since)

	loc := time.FixedZone("", 2*3600)
	ts := time.Date(2026, 3, 1, 14, 30, 0, 0, loc)
	_, err = f.svc.Publish(ctx, alice, "availability/text", ts, "Here")
	require.NoError(t, err)

	views, since, err = f.svc.ReadCurrent(ctx, bob, CurrentQuery{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	// The cursor preserves the publisher's zone.
	require.Equal(t, "2026-03-01T14:30:00+02:00", since)

	// Polling with the cursor returns nothing new: since is exclusive.
	cursor, err := timefmt.Parse(since)
	require.NoError(t, err)
	views, since, err = f.svc.ReadCurrent(ctx, bob, CurrentQuery{Since: &cursor})
	require.NoError(t, err)
	require.Empty(t, views)
	require.Equal(t, SinceAll, since)
}

func TestStatusService_ReadCurrent_Filters(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	carol := f.identity(t, "carol")
	bob := f.identity(t, "bob")
	f.grant(t, alice, model.AccessCurrent, "bob", "*")
	f.grant(t, carol, model.AccessCurrent, "bob", "*")

	_, err := f.svc.Publish(ctx, alice, "availability/text", time.Now(), "A")
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, alice, "location/latlong", time.Now(), `{"latitude": 1, "longitude": 2}`)
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, carol, "availability/text", time.Now(), "C")
	require.NoError(t, err)

	views, _, err := f.svc.ReadCurrent(ctx, bob, CurrentQuery{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	pub := "alice"
	views, _, err = f.svc.ReadCurrent(ctx, bob, CurrentQuery{FilterPublisher: &pub})
	require.NoError(t, err)
	require.Len(t, views, 2)

	typ := "availability/text"
	views, _, err = f.svc.ReadCurrent(ctx, bob, CurrentQuery{FilterType: &typ})
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Own=true reads what the caller published, not what they received.
	views, _, err = f.svc.ReadCurrent(ctx, alice, CurrentQuery{Own: true})
	require.NoError(t, err)
	require.Len(t, views, 2)
	views, _, err = f.svc.ReadCurrent(ctx, alice, CurrentQuery{})
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestStatusService_History_Pagination(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 51; i++ {
		_, err := f.svc.Publish(ctx, alice, "availability/text", base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("update %d", i))
		require.NoError(t, err)
	}

	page1, more, err := f.svc.History(ctx, alice, "alice", "availability/text", 1)
	require.NoError(t, err)
	require.Len(t, page1, 50)
	require.NotNil(t, more)
	require.Equal(t, 2, *more)
	// Newest first.
	require.Equal(t, "update 50", page1[0].Contents)
	require.Equal(t, "update 1", page1[49].Contents)

	page2, more, err := f.svc.History(ctx, alice, "alice", "availability/text", 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Nil(t, more)
	require.Equal(t, "update 0", page2[0].Contents)

	page3, more, err := f.svc.History(ctx, alice, "alice", "availability/text", 3)
	require.NoError(t, err)
	require.Empty(t, page3)
	require.Nil(t, more)
}

func TestStatusService_History_GrantRequired(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")
	bob := f.identity(t, "bob")
	carol := f.identity(t, "carol")

	_, err := f.svc.Publish(ctx, alice, "availability/text", time.Now(), "Here")
	require.NoError(t, err)

	// No grant: forbidden regardless of whether the data exists.
	_, _, err = f.svc.History(ctx, bob, "alice", "availability/text", 1)
	require.ErrorIs(t, err, errs.ErrForbidden)

	// A HISTORY grant covering the type opens the ledger.
	f.grant(t, alice, model.AccessHistory, "bob", "availability/*")
	updates, more, err := f.svc.History(ctx, bob, "alice", "availability/text", 1)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Nil(t, more)

	// The grant does not cover other types.
	_, _, err = f.svc.History(ctx, bob, "alice", "location/latlong", 1)
	require.ErrorIs(t, err, errs.ErrForbidden)

	// A CURRENT grant alone does not grant history access.
	f.grant(t, alice, model.AccessCurrent, "carol", "*")
	_, _, err = f.svc.History(ctx, carol, "alice", "availability/text", 1)
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestStatusService_History_EdgeCases(t *testing.T) {
	f := newStatusFixture(t)
	ctx := context.Background()
	alice := f.identity(t, "alice")

	_, _, err := f.svc.History(ctx, alice, "alice", "availability/text", 0)
	require.ErrorIs(t, err, errs.ErrInvalid)

	_, _, err = f.svc.History(ctx, alice, "alice", "mood/emoji", 1)
	require.ErrorIs(t, err, errs.ErrInvalid)

	// Own history with no data: empty page, not an error.
	updates, more, err := f.svc.History(ctx, alice, "alice", "availability/text", 1)
	require.NoError(t, err)
	require.Empty(t, updates)
	require.Nil(t, more)
}
