package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/roster"
)

// MemoryStore is an in-process Store for development and tests. It enforces
// the same (member, session) uniqueness the Postgres schema does.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[string]roster.Member
	records map[Key]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[string]roster.Member),
		records: make(map[Key]Record),
	}
}

// Members returns members without their reference images, oldest first.
func (s *MemoryStore) Members(ctx context.Context, ownerID string) ([]roster.Member, error) {
	return s.list(ctx, ownerID, false)
}

// References returns members that have a reference image, images included.
func (s *MemoryStore) References(ctx context.Context, ownerID string) ([]roster.Member, error) {
	return s.list(ctx, ownerID, true)
}

func (s *MemoryStore) list(ctx context.Context, ownerID string, withImages bool) ([]roster.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]roster.Member, 0, len(s.members))
	for _, m := range s.members {
		if ownerID != "" && m.OwnerID != ownerID {
			continue
		}
		if withImages {
			if len(m.ReferenceImage) == 0 {
				continue
			}
			m.ReferenceImage = append([]byte(nil), m.ReferenceImage...)
		} else {
			m.ReferenceImage = nil
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateMember stores m, assigning an id and timestamp when missing.
func (s *MemoryStore) CreateMember(ctx context.Context, m roster.Member) (roster.Member, error) {
	if err := ctx.Err(); err != nil {
		return roster.Member{}, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[m.ID]; exists {
		return roster.Member{}, fmt.Errorf("%w: member %s already exists", ErrInvalid, m.ID)
	}
	m.ReferenceImage = append([]byte(nil), m.ReferenceImage...)
	s.members[m.ID] = m
	m.ReferenceImage = nil
	return m, nil
}

// RenameMember changes a member's display name.
func (s *MemoryStore) RenameMember(ctx context.Context, ownerID, memberID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok || m.OwnerID != ownerID {
		return fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	m.Name = name
	s.members[memberID] = m
	return nil
}

// DeleteMember removes a member and its presence records.
func (s *MemoryStore) DeleteMember(ctx context.Context, ownerID, memberID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok || m.OwnerID != ownerID {
		return fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	delete(s.members, memberID)
	for k := range s.records {
		if k.MemberID == memberID {
			delete(s.records, k)
		}
	}
	return nil
}

// Records returns the records matching f, oldest first.
func (s *MemoryStore) Records(ctx context.Context, f Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range s.records {
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if f.SessionID != "" && r.SessionID != f.SessionID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ensure creates r unless its pair already has a record. Members outside the
// record's owner roster give ErrNotFound.
func (s *MemoryStore) Ensure(ctx context.Context, r Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[r.MemberID]
	if !ok || m.OwnerID != r.OwnerID {
		return false, fmt.Errorf("%w: member %s", ErrNotFound, r.MemberID)
	}
	k := r.Key()
	if _, exists := s.records[k]; exists {
		return false, nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.records[k] = r
	return true, nil
}

// Remove deletes the record for k if one exists.
func (s *MemoryStore) Remove(ctx context.Context, k Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[k]; !exists {
		return false, nil
	}
	delete(s.records, k)
	return true, nil
}
