// Package model defines domain entities used by services and repositories.
package model

import (
	"strings"
	"time"
)

// Identity is a registered global ID. Identities are created lazily on first
// reference and never deleted.
type Identity struct {
	ID       int64  // PK
	GlobalID string // caller-chosen opaque string, unique
}

// Credential is a device-bound access credential. At most one live credential
// exists per identity; the access secret is the HMAC signing key for every
// request that identity makes.
type Credential struct {
	ID           int64
	IdentityID   int64 // FK -> global_ids.id, unique
	DeviceID     string
	IssuedAt     time.Time
	AccessID     string
	AccessSecret string
}

// StatusType is one entry in the pre-seeded status type catalog.
type StatusType struct {
	ID          int64
	Name        string // e.g. "availability/text", unique
	Description string
}

// StatusUpdate is a single immutable entry in the append-only status history.
// Timestamp is stored as a UTC instant; TZOffset keeps the original UTC
// offset (seconds east) so the publisher's local time can be reconstructed.
type StatusUpdate struct {
	ID        int64
	IssuerID  int64
	GlobalID  string // denormalized issuer global ID for read paths
	TypeID    int64
	TypeName  string
	Timestamp time.Time
	TZOffset  int
	Contents  string
}

// AccessType selects which kind of status access a permission grants.
type AccessType string

// Permission access types.
const (
	AccessCurrent AccessType = "CURRENT"
	AccessHistory AccessType = "HISTORY"
)

// Valid reports whether t is a known access type.
func (t AccessType) Valid() bool {
	return t == AccessCurrent || t == AccessHistory
}

// Permission authorizes a recipient identity to view an issuer's status
// updates of the matching type(s). Permissions are not transitive and never
// expire; removal is explicit.
type Permission struct {
	ID                int64
	IssuerID          int64
	AccessType        AccessType
	RecipientID       int64
	RecipientGlobalID string
	StatusTypePattern string // exact name, "*", or a prefix ending in "*"
}

// MatchesStatusType reports whether this permission covers the given status
// type, allowing for wildcards in the stored pattern.
func (p *Permission) MatchesStatusType(statusType string) bool {
	switch {
	case p.StatusTypePattern == "*":
		return true
	case strings.HasSuffix(p.StatusTypePattern, "*"):
		return strings.HasPrefix(statusType, strings.TrimSuffix(p.StatusTypePattern, "*"))
	default:
		return statusType == p.StatusTypePattern
	}
}

// ValidStatusTypePattern reports whether pattern is well formed: a "*" may
// appear only as the final character.
func ValidStatusTypePattern(pattern string) bool {
	if i := strings.Index(pattern, "*"); i >= 0 && i != len(pattern)-1 {
		return false
	}
	return true
}

// CurrentView is one row of the materialized current-status cache: the latest
// status of the given type that the recipient is allowed to see from the
// issuer. At most one row exists per (issuer, recipient, type).
type CurrentView struct {
	ID             int64
	IssuerID       int64
	IssuerGlobalID string
	RecipientID    int64
	StatusUpdateID int64
	TypeID         int64
	TypeName       string
	Timestamp      time.Time
	TZOffset       int
	Contents       string
}

// Message is an ephemeral point-to-point payload. Messages are removed when
// the recipient fetches them.
type Message struct {
	ID             int64
	SentAt         time.Time
	SenderID       int64
	SenderGlobalID string
	RecipientID    int64
	Body           string // JSON text, opaque to the server
}

// LocationSession lets a location tracker submit fixes without per-request
// HMAC signing; the session ID is the only credential on that path.
type LocationSession struct {
	ID         int64
	IdentityID int64
	GlobalID   string
	SessionID  string
}
