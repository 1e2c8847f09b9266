package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/logging"
	"rollcall/internal/queue"
)

func next(t *testing.T, sub *Subscription) *Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot pushed")
		return nil
	}
}

func TestSubscriptionPushesAfterWrites(t *testing.T) {
	ctx := context.Background()
	bus := queue.NewMemoryBus()
	mem := seed(t)
	st := Notifying(mem, bus, logging.Discard())

	sub, err := Subscribe(ctx, st, bus, Filter{OwnerID: owner}, nil, logging.Discard())
	require.NoError(t, err)
	defer sub.Close()

	first := next(t, sub)
	assert.False(t, first.Has(s1, "A"))
	assert.Len(t, first.Members, 3)

	require.NoError(t, newReconciler(st, Scope{OwnerID: owner}).Set(ctx, s1, "A", true))

	assert.Eventually(t, func() bool {
		select {
		case snap := <-sub.Snapshots():
			return snap.Has(s1, "A")
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, sub.Err())
}

func TestSubscriptionIgnoresOtherOwners(t *testing.T) {
	ctx := context.Background()
	bus := queue.NewMemoryBus()
	mem := seed(t)
	st := Notifying(mem, bus, logging.Discard())

	sub, err := Subscribe(ctx, st, bus, Filter{OwnerID: owner}, nil, logging.Discard())
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	require.NoError(t, bus.Notify(ctx, TopicChanges, "group-2"))

	select {
	case <-sub.Snapshots():
		t.Fatal("unexpected snapshot for another owner")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	bus := queue.NewMemoryBus()
	sub, err := Subscribe(context.Background(), seed(t), bus, Filter{OwnerID: owner}, nil, logging.Discard())
	require.NoError(t, err)

	sub.Close()
	// the initial snapshot may still be buffered
	for range sub.Snapshots() {
	}
}

func TestViewTracksLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	bus := queue.NewMemoryBus()
	st := Notifying(seed(t), bus, logging.Discard())

	sub, err := Subscribe(ctx, st, bus, Filter{OwnerID: owner}, nil, logging.Discard())
	require.NoError(t, err)
	defer sub.Close()

	changes := make(chan *Snapshot, 8)
	view := Watch(sub, func(s *Snapshot) { changes <- s })

	snap, err := view.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, snap.Has(s1, "B"))

	rec := NewReconciler(st, view, Scope{OwnerID: owner}, nil, logging.Discard())
	_, err = rec.MarkBatch(ctx, s1, []string{"B"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, err := view.Latest(ctx)
		return err == nil && snap.Has(s1, "B")
	}, 2*time.Second, 10*time.Millisecond)

	got, err := rec.Toggle(ctx, s1, "B")
	require.NoError(t, err)
	assert.False(t, got)
	assert.NotEmpty(t, changes)
}

func TestViewLatestRespectsContext(t *testing.T) {
	v := &View{ready: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.Latest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
