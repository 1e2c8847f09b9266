package attendance

import (
	"context"
	"log/slog"

	"rollcall/internal/queue"
	"rollcall/internal/roster"
)

// TopicChanges is the bus topic carrying the owner id of every changed scope.
const TopicChanges = "changes"

// notifyingStore publishes a change notification after each successful write.
type notifyingStore struct {
	Store
	bus queue.Bus
	log *slog.Logger
}

// Notifying wraps st so that subscribers on bus see its writes.
func Notifying(st Store, bus queue.Bus, log *slog.Logger) Store {
	if bus == nil {
		return st
	}
	return &notifyingStore{Store: st, bus: bus, log: log}
}

func (s *notifyingStore) notify(ctx context.Context, ownerID string) {
	// a lost notification only delays subscribers until the next write
	if err := s.bus.Notify(context.WithoutCancel(ctx), TopicChanges, ownerID); err != nil {
		s.log.Warn("change notification failed", "owner", ownerID, "error", err)
	}
}

func (s *notifyingStore) CreateMember(ctx context.Context, m roster.Member) (roster.Member, error) {
	out, err := s.Store.CreateMember(ctx, m)
	if err == nil {
		s.notify(ctx, out.OwnerID)
	}
	return out, err
}

func (s *notifyingStore) RenameMember(ctx context.Context, ownerID, memberID, name string) error {
	err := s.Store.RenameMember(ctx, ownerID, memberID, name)
	if err == nil {
		s.notify(ctx, ownerID)
	}
	return err
}

func (s *notifyingStore) DeleteMember(ctx context.Context, ownerID, memberID string) error {
	err := s.Store.DeleteMember(ctx, ownerID, memberID)
	if err == nil {
		s.notify(ctx, ownerID)
	}
	return err
}

func (s *notifyingStore) Ensure(ctx context.Context, r Record) (bool, error) {
	created, err := s.Store.Ensure(ctx, r)
	if created {
		s.notify(ctx, r.OwnerID)
	}
	return created, err
}

func (s *notifyingStore) Remove(ctx context.Context, k Key) (bool, error) {
	removed, err := s.Store.Remove(ctx, k)
	if removed {
		s.notify(ctx, k.OwnerID)
	}
	return removed, err
}
