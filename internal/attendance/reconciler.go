package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/metrics"
	"rollcall/internal/session"
)

const defaultConcurrency = 8

// BatchResult reports how a MarkBatch call went. Individual failures are only
// counted; the next snapshot shows which ids actually landed. Unknown holds ids
// that are not on the scope's roster; they are never written.
type BatchResult struct {
	Added          []string `json:"added"`
	AlreadyPresent []string `json:"already_present"`
	Unknown        []string `json:"unknown"`
	Failed         int      `json:"failed"`
}

// Reconciler owns the one-record-per-(member, session) invariant for a
// single owner scope.
type Reconciler struct {
	store       Store
	source      Source
	scope       Scope
	concurrency int
	metrics     *metrics.Metrics
	log         *slog.Logger
}

// NewReconciler builds a reconciler that decides against snapshots from source
// and writes through store.
func NewReconciler(store Store, source Source, scope Scope, m *metrics.Metrics, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store:       store,
		source:      source,
		scope:       scope,
		concurrency: defaultConcurrency,
		metrics:     m,
		log:         log.With("owner", scope.OwnerID),
	}
}

// WithConcurrency bounds how many batch writes run at once.
func (r *Reconciler) WithConcurrency(n int) *Reconciler {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// Scope returns the owner scope the reconciler writes to.
func (r *Reconciler) Scope() Scope { return r.scope }

func (r *Reconciler) check(id session.ID) error {
	if r.scope.IsFederated() {
		return fmt.Errorf("%w: federated view is read-only", ErrPermissionDenied)
	}
	if _, _, err := session.Parse(id); err != nil {
		return err
	}
	return nil
}

// MarkBatch marks every id not yet present in the session. Ids already present
// are left alone. Each new id is one independent create-if-absent write; a
// failure leaves the others in place. The error is non-nil only if the call is
// not allowed or every attempted write failed.
func (r *Reconciler) MarkBatch(ctx context.Context, id session.ID, memberIDs []string) (BatchResult, error) {
	res := BatchResult{Added: []string{}, AlreadyPresent: []string{}, Unknown: []string{}}
	if err := r.check(id); err != nil {
		return res, err
	}
	snap, err := r.source.Latest(ctx)
	if err != nil {
		return res, err
	}
	present := snap.Present(id)

	seen := make(map[string]struct{}, len(memberIDs))
	var todo []string
	for _, mid := range memberIDs {
		if mid == "" {
			continue
		}
		if _, dup := seen[mid]; dup {
			continue
		}
		seen[mid] = struct{}{}
		if !r.onRoster(snap, mid) {
			res.Unknown = append(res.Unknown, mid)
			continue
		}
		if present.Has(mid) {
			res.AlreadyPresent = append(res.AlreadyPresent, mid)
			continue
		}
		todo = append(todo, mid)
	}
	r.metrics.Batch(len(todo))
	if len(todo) == 0 {
		sort.Strings(res.Unknown)
		return res, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		sem      = make(chan struct{}, r.concurrency)
	)
	for _, mid := range todo {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			created, err := r.store.Ensure(ctx, r.record(id, mid))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrNotFound):
				// deleted since the snapshot was taken
				res.Unknown = append(res.Unknown, mid)
				r.metrics.PresenceWrite("ensure", "unknown")
			case err != nil:
				res.Failed++
				if firstErr == nil {
					firstErr = err
				}
				r.metrics.PresenceWrite("ensure", "error")
				r.log.Warn("mark failed", "session", id, "member", mid, "error", err)
			case created:
				res.Added = append(res.Added, mid)
				r.metrics.PresenceWrite("ensure", "created")
			default:
				res.AlreadyPresent = append(res.AlreadyPresent, mid)
				r.metrics.PresenceWrite("ensure", "noop")
			}
		}()
	}
	wg.Wait()

	sort.Strings(res.Added)
	sort.Strings(res.AlreadyPresent)
	sort.Strings(res.Unknown)
	r.log.Info("batch marked", "session", id, "added", len(res.Added), "skipped", len(res.AlreadyPresent), "unknown", len(res.Unknown), "failed", res.Failed)

	if res.Failed > 0 && res.Failed == len(todo) {
		return res, firstErr
	}
	return res, nil
}

// Toggle flips a member's presence relative to the latest observed snapshot
// and returns the new state. The write is conditional, so concurrent toggles
// from the same stale snapshot converge on one state instead of racing.
func (r *Reconciler) Toggle(ctx context.Context, id session.ID, memberID string) (bool, error) {
	if err := r.check(id); err != nil {
		return false, err
	}
	snap, err := r.member(ctx, memberID)
	if err != nil {
		return false, err
	}
	target := !snap.Has(id, memberID)
	if err := r.write(ctx, id, memberID, target); err != nil {
		return false, err
	}
	return target, nil
}

// Set makes the member present or absent in the session. It is idempotent.
// Members outside the scope's roster give ErrNotFound.
func (r *Reconciler) Set(ctx context.Context, id session.ID, memberID string, present bool) error {
	if err := r.check(id); err != nil {
		return err
	}
	if _, err := r.member(ctx, memberID); err != nil {
		return err
	}
	return r.write(ctx, id, memberID, present)
}

// member returns the latest snapshot after checking memberID is on the
// scope's roster in it.
func (r *Reconciler) member(ctx context.Context, memberID string) (*Snapshot, error) {
	if memberID == "" {
		return nil, fmt.Errorf("%w: member id required", ErrInvalid)
	}
	snap, err := r.source.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if !r.onRoster(snap, memberID) {
		return nil, fmt.Errorf("%w: member %s", ErrNotFound, memberID)
	}
	return snap, nil
}

func (r *Reconciler) onRoster(snap *Snapshot, memberID string) bool {
	m, ok := snap.Member(memberID)
	return ok && m.OwnerID == r.scope.OwnerID
}

func (r *Reconciler) write(ctx context.Context, id session.ID, memberID string, present bool) error {
	if present {
		created, err := r.store.Ensure(ctx, r.record(id, memberID))
		if err != nil {
			r.metrics.PresenceWrite("ensure", "error")
			return err
		}
		r.metrics.PresenceWrite("ensure", outcome(created, "created"))
		return nil
	}
	removed, err := r.store.Remove(ctx, Key{OwnerID: r.scope.OwnerID, SessionID: id, MemberID: memberID})
	if err != nil {
		r.metrics.PresenceWrite("remove", "error")
		return err
	}
	r.metrics.PresenceWrite("remove", outcome(removed, "removed"))
	return nil
}

func (r *Reconciler) record(id session.ID, memberID string) Record {
	return Record{
		ID:        uuid.NewString(),
		OwnerID:   r.scope.OwnerID,
		SessionID: id,
		MemberID:  memberID,
		CreatedAt: time.Now().UTC(),
	}
}

func outcome(changed bool, label string) string {
	if changed {
		return label
	}
	return "noop"
}
