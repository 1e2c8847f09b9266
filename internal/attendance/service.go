package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/cloudinary"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
)

// PhotoUploader mirrors reference images to external storage.
type PhotoUploader interface {
	UploadBytes(ctx context.Context, data []byte, filename string) (*cloudinary.UploadResult, error)
}

// NewMember is the input for adding a member to a roster.
type NewMember struct {
	Name           string
	Unit           string
	GroupLabel     string
	PreparerName   string
	ReferenceImage []byte
}

// Service wires the store, change bus, and collaborators into per-scope
// reconcilers and mergers.
type Service struct {
	store       Store
	bus         queue.Bus
	vision      Recognizer
	photos      PhotoUploader
	concurrency int
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewService wraps store so writes are announced on bus.
func NewService(store Store, bus queue.Bus, vision Recognizer, m *metrics.Metrics, log *slog.Logger) *Service {
	if bus == nil {
		bus = queue.NewMemoryBus()
	}
	return &Service{
		store:       Notifying(store, bus, log),
		bus:         bus,
		vision:      vision,
		concurrency: defaultConcurrency,
		metrics:     m,
		log:         log,
	}
}

// WithPhotos enables mirroring reference images on member creation.
func (s *Service) WithPhotos(p PhotoUploader) *Service {
	s.photos = p
	return s
}

// WithConcurrency bounds batch write fan-out for reconcilers built later.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Store returns the notifying store.
func (s *Service) Store() Store { return s.store }

// Snapshot reads a fresh snapshot for the scope, optionally narrowed to one session.
func (s *Service) Snapshot(ctx context.Context, f Filter) (*Snapshot, error) {
	return Load(ctx, s.store, f)
}

// Subscribe starts a change subscription for f.
func (s *Service) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	return Subscribe(ctx, s.store, s.bus, f, s.metrics, s.log)
}

// Reconciler returns a reconciler for scope reading fresh snapshots.
func (s *Service) Reconciler(scope Scope) *Reconciler {
	src := StoreSource{Store: s.store, Filter: scope.Filter()}
	return NewReconciler(s.store, src, scope, s.metrics, s.log).WithConcurrency(s.concurrency)
}

// Merger returns a recognition merger for scope.
func (s *Service) Merger(scope Scope) *Merger {
	return NewMerger(s.Reconciler(scope), s.store, s.vision, s.metrics, s.log)
}

// AddMember normalises and stores a new member, mirroring its reference image
// when an uploader is configured. A failed mirror does not block the member.
func (s *Service) AddMember(ctx context.Context, scope Scope, in NewMember) (roster.Member, error) {
	if scope.IsFederated() {
		return roster.Member{}, fmt.Errorf("%w: federated view is read-only", ErrPermissionDenied)
	}
	m := roster.Member{
		ID:             uuid.NewString(),
		OwnerID:        scope.OwnerID,
		Name:           in.Name,
		Unit:           in.Unit,
		GroupLabel:     in.GroupLabel,
		PreparerName:   in.PreparerName,
		ReferenceImage: in.ReferenceImage,
		CreatedAt:      time.Now().UTC(),
	}.Normalize()
	if m.Name == "" {
		return roster.Member{}, fmt.Errorf("%w: name required", ErrInvalid)
	}

	if s.photos != nil && len(m.ReferenceImage) > 0 {
		res, err := s.photos.UploadBytes(ctx, m.ReferenceImage, m.ID+".jpg")
		if err != nil {
			s.log.Warn("reference image mirror failed", "member", m.ID, "error", err)
		} else {
			m.PhotoURL = res.SecureURL
		}
	}

	out, err := s.store.CreateMember(ctx, m)
	if err != nil {
		return roster.Member{}, err
	}
	s.log.Info("member added", "owner", scope.OwnerID, "member", out.ID, "unit", out.Unit)
	return out, nil
}

// RenameMember changes a member's name; it is the only mutation members allow.
func (s *Service) RenameMember(ctx context.Context, scope Scope, memberID, name string) error {
	if scope.IsFederated() {
		return fmt.Errorf("%w: federated view is read-only", ErrPermissionDenied)
	}
	name = roster.Member{Name: name}.Normalize().Name
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	return s.store.RenameMember(ctx, scope.OwnerID, memberID, name)
}

// RemoveMember deletes a member and its presence records.
func (s *Service) RemoveMember(ctx context.Context, scope Scope, memberID string) error {
	if scope.IsFederated() {
		return fmt.Errorf("%w: federated view is read-only", ErrPermissionDenied)
	}
	err := s.store.DeleteMember(ctx, scope.OwnerID, memberID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("member delete failed", "owner", scope.OwnerID, "member", memberID, "error", err)
	}
	return err
}
