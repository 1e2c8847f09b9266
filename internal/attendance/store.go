package attendance

import (
	"context"
	"time"

	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// Record is a presence fact. Its existence is the presence signal.
type Record struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	SessionID session.ID `json:"session_id"`
	MemberID  string     `json:"member_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Key identifies the single record a (member, session) pair may have.
type Key struct {
	OwnerID   string
	SessionID session.ID
	MemberID  string
}

// Key returns the record's identity.
func (r Record) Key() Key {
	return Key{OwnerID: r.OwnerID, SessionID: r.SessionID, MemberID: r.MemberID}
}

// Filter narrows store reads. An empty OwnerID spans every owner; an empty
// SessionID spans every session.
type Filter struct {
	OwnerID   string
	SessionID session.ID
}

// Scope is the owner a caller acts for. The federated scope (no owner) is
// read-only.
type Scope struct {
	OwnerID string
}

// Federated is the cross-owner, read-only scope.
var Federated = Scope{}

// IsFederated reports whether the scope spans all owners.
func (s Scope) IsFederated() bool { return s.OwnerID == "" }

// Filter returns the read filter for this scope.
func (s Scope) Filter() Filter { return Filter{OwnerID: s.OwnerID} }

// Store is the document store the engine reads and writes through.
// Ensure and Remove are conditional: Ensure creates a record only if the
// (member, session) pair has none, Remove deletes only an existing one.
type Store interface {
	Members(ctx context.Context, ownerID string) ([]roster.Member, error)
	References(ctx context.Context, ownerID string) ([]roster.Member, error)
	CreateMember(ctx context.Context, m roster.Member) (roster.Member, error)
	RenameMember(ctx context.Context, ownerID, memberID, name string) error
	DeleteMember(ctx context.Context, ownerID, memberID string) error

	Records(ctx context.Context, f Filter) ([]Record, error)
	Ensure(ctx context.Context, r Record) (created bool, err error)
	Remove(ctx context.Context, k Key) (removed bool, err error)
}
