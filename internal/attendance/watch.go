package attendance

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"rollcall/internal/metrics"
	"rollcall/internal/queue"
)

// Source yields the most recently observed snapshot for a scope.
type Source interface {
	Latest(ctx context.Context) (*Snapshot, error)
}

// StoreSource reads a fresh snapshot on every call.
type StoreSource struct {
	Store  Store
	Filter Filter
}

// Latest implements Source.
func (s StoreSource) Latest(ctx context.Context) (*Snapshot, error) {
	return Load(ctx, s.Store, s.Filter)
}

// Subscription pushes a new snapshot whenever the store reports a change in
// its filter. Only the newest undelivered snapshot is kept.
type Subscription struct {
	out    chan *Snapshot
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe loads an initial snapshot and keeps reloading it on change
// notifications until ctx is cancelled or Close is called.
func Subscribe(ctx context.Context, st Store, bus queue.Bus, f Filter, m *metrics.Metrics, log *slog.Logger) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	notes, err := bus.Listen(ctx, TopicChanges)
	if err != nil {
		cancel()
		return nil, err
	}
	first, err := Load(ctx, st, f)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{
		out:    make(chan *Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.push(first, m)

	go func() {
		defer close(sub.done)
		defer close(sub.out)
		for {
			select {
			case owner, ok := <-notes:
				if !ok {
					return
				}
				if f.OwnerID != "" && owner != f.OwnerID {
					continue
				}
				snap, err := Load(ctx, st, f)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					m.SnapshotFailed()
					log.Warn("snapshot reload failed", "owner", f.OwnerID, "error", err)
					sub.setErr(err)
					continue
				}
				sub.setErr(nil)
				sub.push(snap, m)
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}

// push replaces any undelivered snapshot with snap. Only the subscription
// goroutine sends, so the send after draining never blocks.
func (s *Subscription) push(snap *Snapshot, m *metrics.Metrics) {
	select {
	case <-s.out:
	default:
	}
	s.out <- snap
	m.SnapshotPushed()
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Snapshots delivers snapshots until the subscription ends.
func (s *Subscription) Snapshots() <-chan *Snapshot { return s.out }

// Err returns the last reload error, cleared by the next successful reload.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes and waits for the reload loop to stop. In-flight writes
// are not affected.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// View keeps the latest snapshot of a subscription. It is a Source.
type View struct {
	latest atomic.Pointer[Snapshot]
	ready  chan struct{}
	once   sync.Once
}

// Watch consumes sub in the background. onChange, if set, is called with each
// snapshot after it becomes the latest.
func Watch(sub *Subscription, onChange func(*Snapshot)) *View {
	v := &View{ready: make(chan struct{})}
	go func() {
		for snap := range sub.Snapshots() {
			v.latest.Store(snap)
			v.once.Do(func() { close(v.ready) })
			if onChange != nil {
				onChange(snap)
			}
		}
	}()
	return v
}

// Latest returns the newest snapshot, waiting for the first one if needed.
func (v *View) Latest(ctx context.Context) (*Snapshot, error) {
	select {
	case <-v.ready:
		return v.latest.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
