package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rollcall/internal/logging"
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

const owner = "group-1"

var s1 = session.Derive(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), session.AM)

// seed creates a store holding members A, B and C for owner.
func seed(t *testing.T) *MemoryStore {
	t.Helper()
	st := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"A", "B", "C"} {
		_, err := st.CreateMember(context.Background(), roster.Member{
			ID:        name,
			OwnerID:   owner,
			Name:      "Member " + name,
			Unit:      "10A",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	return st
}

func present(t *testing.T, st Store, id session.ID) []string {
	t.Helper()
	snap, err := Load(context.Background(), st, Filter{OwnerID: owner})
	require.NoError(t, err)
	return snap.Present(id).IDs()
}

func newReconciler(st Store, scope Scope) *Reconciler {
	return NewReconciler(st, StoreSource{Store: st, Filter: scope.Filter()}, scope, nil, logging.Discard())
}

// fixedSource always returns the same snapshot, modelling a stale reader.
type fixedSource struct{ snap *Snapshot }

func (f fixedSource) Latest(context.Context) (*Snapshot, error) { return f.snap, nil }

// flakyStore fails Ensure for selected member ids.
type flakyStore struct {
	Store
	mu    sync.Mutex
	fail  map[string]error
	calls int
}

func (f *flakyStore) Ensure(ctx context.Context, r Record) (bool, error) {
	f.mu.Lock()
	f.calls++
	err := f.fail[r.MemberID]
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.Store.Ensure(ctx, r)
}
