package service

import (
	"context"
	"sort"
	"time"

	"github.com/statuskit/statusd/internal/errs"
	"github.com/statuskit/statusd/internal/model"
	"github.com/statuskit/statusd/internal/repository"
)

// In-memory repository fakes with the same contracts as the postgres
// implementations (sentinel errors, ordering, unique keys).

type memIdentityRepo struct {
	nextID int64
	byName map[string]*model.Identity
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byName: make(map[string]*model.Identity)}
}

func (r *memIdentityRepo) GetOrCreate(_ context.Context, globalID string) (*model.Identity, error) {
	if ident, ok := r.byName[globalID]; ok {
		return ident, nil
	}
	r.nextID++
	ident := &model.Identity{ID: r.nextID, GlobalID: globalID}
	r.byName[globalID] = ident
	return ident, nil
}

func (r *memIdentityRepo) Get(_ context.Context, globalID string) (*model.Identity, error) {
	if ident, ok := r.byName[globalID]; ok {
		return ident, nil
	}
	return nil, errs.ErrNotFound
}

type memCredentialRepo struct {
	ids        *memIdentityRepo
	byIdentity map[int64]*model.Credential
	nextID     int64
}

func newMemCredentialRepo(ids *memIdentityRepo) *memCredentialRepo {
	return &memCredentialRepo{ids: ids, byIdentity: make(map[int64]*model.Credential)}
}

func (r *memCredentialRepo) GetByGlobalID(ctx context.Context, globalID string) (*model.Credential, error) {
	ident, err := r.ids.Get(ctx, globalID)
	if err != nil {
		return nil, err
	}
	return r.GetByIdentity(ctx, ident.ID)
}

func (r *memCredentialRepo) GetByIdentity(_ context.Context, identityID int64) (*model.Credential, error) {
	if c, ok := r.byIdentity[identityID]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, errs.ErrNotFound
}

func (r *memCredentialRepo) Insert(_ context.Context, c *model.Credential) error {
	if _, ok := r.byIdentity[c.IdentityID]; ok {
		return errs.ErrAlreadyExists
	}
	r.nextID++
	c.ID = r.nextID
	cc := *c
	r.byIdentity[c.IdentityID] = &cc
	return nil
}

func (r *memCredentialRepo) DeleteByIdentity(_ context.Context, identityID int64) error {
	delete(r.byIdentity, identityID)
	return nil
}

type memNonceLedger struct {
	seen        map[string]time.Time
	purgeCalls  int
	rememberErr error
}

func newMemNonceLedger() *memNonceLedger {
	return &memNonceLedger{seen: make(map[string]time.Time)}
}

func (l *memNonceLedger) Remember(_ context.Context, nonce string, seenAt time.Time) error {
	if l.rememberErr != nil {
		return l.rememberErr
	}
	if _, ok := l.seen[nonce]; ok {
		return errs.ErrDuplicateNonce
	}
	l.seen[nonce] = seenAt
	return nil
}

func (l *memNonceLedger) PurgeBefore(_ context.Context, cutoff time.Time) error {
	l.purgeCalls++
	for n, at := range l.seen {
		if !at.After(cutoff) {
			delete(l.seen, n)
		}
	}
	return nil
}

type memStatusTypeRepo struct {
	byName map[string]*model.StatusType
}

func newMemStatusTypeRepo() *memStatusTypeRepo {
	return &memStatusTypeRepo{byName: map[string]*model.StatusType{
		"availability/text": {ID: 1, Name: "availability/text", Description: "availability"},
		"location/latlong":  {ID: 2, Name: "location/latlong", Description: "location"},
	}}
}

func (r *memStatusTypeRepo) GetByName(_ context.Context, name string) (*model.StatusType, error) {
	if st, ok := r.byName[name]; ok {
		return st, nil
	}
	return nil, errs.ErrNotFound
}

type memStatusRepo struct {
	rows   []model.StatusUpdate
	nextID int64
}

func (r *memStatusRepo) Append(_ context.Context, u *model.StatusUpdate) error {
	r.nextID++
	u.ID = r.nextID
	r.rows = append(r.rows, *u)
	return nil
}

func (r *memStatusRepo) matching(identityID, typeID int64) []model.StatusUpdate {
	var out []model.StatusUpdate
	for _, u := range r.rows {
		if u.IssuerID == identityID && u.TypeID == typeID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memStatusRepo) Page(_ context.Context, identityID, typeID int64, limit, offset int) ([]model.StatusUpdate, error) {
	all := r.matching(identityID, typeID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memStatusRepo) Count(_ context.Context, identityID, typeID int64) (int64, error) {
	return int64(len(r.matching(identityID, typeID))), nil
}

type memPermissionRepo struct {
	ids    *memIdentityRepo
	rows   []model.Permission
	nextID int64
}

func newMemPermissionRepo(ids *memIdentityRepo) *memPermissionRepo {
	return &memPermissionRepo{ids: ids}
}

func (r *memPermissionRepo) Create(_ context.Context, p *model.Permission) error {
	r.nextID++
	p.ID = r.nextID
	r.rows = append(r.rows, *p)
	return nil
}

func (r *memPermissionRepo) Delete(_ context.Context, issuerID int64, kind model.AccessType, recipientGlobalID, pattern string) error {
	kept := r.rows[:0]
	for _, p := range r.rows {
		if p.IssuerID == issuerID && p.AccessType == kind &&
			p.RecipientGlobalID == recipientGlobalID && p.StatusTypePattern == pattern {
			continue
		}
		kept = append(kept, p)
	}
	r.rows = kept
	return nil
}

func (r *memPermissionRepo) ListByIssuer(_ context.Context, issuerID int64, recipientGlobalID *string) ([]model.Permission, error) {
	var out []model.Permission
	for _, p := range r.rows {
		if p.IssuerID != issuerID {
			continue
		}
		if recipientGlobalID != nil && p.RecipientGlobalID != *recipientGlobalID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memPermissionRepo) ListByIssuerKind(_ context.Context, issuerID int64, kind model.AccessType) ([]model.Permission, error) {
	var out []model.Permission
	for _, p := range r.rows {
		if p.IssuerID == issuerID && p.AccessType == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPermissionRepo) ListGranted(_ context.Context, issuerGlobalID string, kind model.AccessType, recipientID int64) ([]model.Permission, error) {
	issuer, ok := r.ids.byName[issuerGlobalID]
	if !ok {
		return nil, nil
	}
	var out []model.Permission
	for _, p := range r.rows {
		if p.IssuerID == issuer.ID && p.AccessType == kind && p.RecipientID == recipientID {
			out = append(out, p)
		}
	}
	return out, nil
}

type viewKey struct {
	issuer, recipient, typeID int64
}

type memViewRepo struct {
	rows       map[viewKey]model.CurrentView
	nextID     int64
	replaces   int
	failAt     int // fail the Nth Replace call (1-based) when > 0
	replaceErr error
}

func newMemViewRepo() *memViewRepo {
	return &memViewRepo{rows: make(map[viewKey]model.CurrentView)}
}

func (r *memViewRepo) Replace(_ context.Context, v *model.CurrentView) error {
	r.replaces++
	if r.failAt > 0 && r.replaces >= r.failAt {
		return r.replaceErr
	}
	key := viewKey{v.IssuerID, v.RecipientID, v.TypeID}
	if existing, ok := r.rows[key]; ok {
		v.ID = existing.ID
	} else {
		r.nextID++
		v.ID = r.nextID
	}
	r.rows[key] = *v
	return nil
}

func (r *memViewRepo) Query(_ context.Context, f repository.ViewFilter) ([]model.CurrentView, error) {
	var out []model.CurrentView
	for _, v := range r.rows {
		if f.IssuerID != nil && v.IssuerID != *f.IssuerID {
			continue
		}
		if f.RecipientID != nil && v.RecipientID != *f.RecipientID {
			continue
		}
		if f.IssuerGlobalID != nil && v.IssuerGlobalID != *f.IssuerGlobalID {
			continue
		}
		if f.TypeName != nil && v.TypeName != *f.TypeName {
			continue
		}
		if f.Since != nil && !v.Timestamp.After(*f.Since) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memMessageRepo struct {
	rows   []model.Message
	nextID int64
}

func (r *memMessageRepo) Insert(_ context.Context, m *model.Message) error {
	r.nextID++
	m.ID = r.nextID
	r.rows = append(r.rows, *m)
	return nil
}

func (r *memMessageRepo) TakeForRecipient(_ context.Context, recipientID int64) ([]model.Message, error) {
	var out []model.Message
	kept := r.rows[:0]
	for _, m := range r.rows {
		if m.RecipientID == recipientID {
			out = append(out, m)
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memSessionRepo struct {
	byIdentity map[int64]*model.LocationSession
	nextID     int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byIdentity: make(map[int64]*model.LocationSession)}
}

func (r *memSessionRepo) GetByIdentity(_ context.Context, identityID int64) (*model.LocationSession, error) {
	if s, ok := r.byIdentity[identityID]; ok {
		ss := *s
		return &ss, nil
	}
	return nil, errs.ErrNotFound
}

func (r *memSessionRepo) GetBySessionID(_ context.Context, sessionID string) (*model.LocationSession, error) {
	for _, s := range r.byIdentity {
		if s.SessionID == sessionID {
			ss := *s
			return &ss, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *memSessionRepo) Insert(_ context.Context, s *model.LocationSession) error {
	if _, ok := r.byIdentity[s.IdentityID]; ok {
		return errs.ErrAlreadyExists
	}
	r.nextID++
	s.ID = r.nextID
	ss := *s
	r.byIdentity[s.IdentityID] = &ss
	return nil
}

func (r *memSessionRepo) DeleteByIdentity(_ context.Context, identityID int64) error {
	if _, ok := r.byIdentity[identityID]; !ok {
		return errs.ErrNotFound
	}
	delete(r.byIdentity, identityID)
	return nil
}

// Interface conformance for the fakes.
var (
	_ repository.IdentityRepository   = (*memIdentityRepo)(nil)
	_ repository.CredentialRepository = (*memCredentialRepo)(nil)
	_ repository.StatusTypeRepository = (*memStatusTypeRepo)(nil)
	_ repository.StatusRepository     = (*memStatusRepo)(nil)
	_ repository.PermissionRepository = (*memPermissionRepo)(nil)
	_ repository.ViewRepository       = (*memViewRepo)(nil)
	_ repository.MessageRepository    = (*memMessageRepo)(nil)
	_ repository.SessionRepository    = (*memSessionRepo)(nil)
)
