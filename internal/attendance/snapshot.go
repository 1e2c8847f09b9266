package attendance

import (
	"context"
	"time"

	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// Snapshot is an immutable view of a roster and its presence records at one
// point in time. Derivations read from it and never write back.
type Snapshot struct {
	Filter  Filter
	Members []roster.Member
	Records []Record
	TakenAt time.Time

	bySession map[session.ID]roster.PresenceSet
	byID      map[string]int
}

var emptySet = roster.PresenceSet{}

// NewSnapshot indexes members and records. Records outside the filter's
// session are kept; Filter only documents what was loaded.
func NewSnapshot(f Filter, members []roster.Member, records []Record) *Snapshot {
	s := &Snapshot{
		Filter:    f,
		Members:   members,
		Records:   records,
		TakenAt:   time.Now().UTC(),
		bySession: make(map[session.ID]roster.PresenceSet),
		byID:      make(map[string]int, len(members)),
	}
	for i, m := range members {
		s.byID[m.ID] = i
	}
	for _, r := range records {
		set, ok := s.bySession[r.SessionID]
		if !ok {
			set = roster.PresenceSet{}
			s.bySession[r.SessionID] = set
		}
		set[r.MemberID] = struct{}{}
	}
	return s
}

// Load reads a fresh snapshot from the store.
func Load(ctx context.Context, st Store, f Filter) (*Snapshot, error) {
	members, err := st.Members(ctx, f.OwnerID)
	if err != nil {
		return nil, err
	}
	records, err := st.Records(ctx, f)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(f, members, records), nil
}

// Present returns the set of members present in a session. The result is
// shared and must not be modified.
func (s *Snapshot) Present(id session.ID) roster.PresenceSet {
	if set, ok := s.bySession[id]; ok {
		return set
	}
	return emptySet
}

// Has reports whether a record exists for the pair.
func (s *Snapshot) Has(id session.ID, memberID string) bool {
	return s.Present(id).Has(memberID)
}

// Sessions lists the distinct session ids seen in the records, unordered.
func (s *Snapshot) Sessions() []session.ID {
	out := make([]session.ID, 0, len(s.bySession))
	for id := range s.bySession {
		out = append(out, id)
	}
	return out
}

// Member looks up a roster entry by id.
func (s *Snapshot) Member(id string) (roster.Member, bool) {
	i, ok := s.byID[id]
	if !ok {
		return roster.Member{}, false
	}
	return s.Members[i], true
}

// Roster returns the members belonging to ownerID, or every member when
// ownerID is empty.
func (s *Snapshot) Roster(ownerID string) []roster.Member {
	return roster.Filter(s.Members, ownerID)
}
