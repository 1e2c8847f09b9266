package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/cloudinary"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
)

type stubUploader struct {
	url  string
	err  error
	name string
}

func (s *stubUploader) UploadBytes(_ context.Context, _ []byte, filename string) (*cloudinary.UploadResult, error) {
	s.name = filename
	if s.err != nil {
		return nil, s.err
	}
	return &cloudinary.UploadResult{SecureURL: s.url}, nil
}

func newService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	mem := NewMemoryStore()
	return NewService(mem, queue.NewMemoryBus(), &stubVision{}, nil, logging.Discard()), mem
}

func TestAddMemberNormalizesAndMirrorsPhoto(t *testing.T) {
	svc, mem := newService(t)
	up := &stubUploader{url: "https://cdn.example/x.jpg"}
	svc.WithPhotos(up)

	m, err := svc.AddMember(context.Background(), Scope{OwnerID: owner}, NewMember{
		Name:           "  Siti Aminah ",
		Unit:           " 10 a1 ",
		ReferenceImage: []byte("jpeg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Siti Aminah", m.Name)
	assert.Equal(t, "10A1", m.Unit)
	assert.Equal(t, "https://cdn.example/x.jpg", m.PhotoURL)
	assert.Equal(t, m.ID+".jpg", up.name)
	assert.Nil(t, m.ReferenceImage)

	refs, err := mem.References(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, []byte("jpeg"), refs[0].ReferenceImage)
}

func TestAddMemberSurvivesMirrorFailure(t *testing.T) {
	svc, _ := newService(t)
	svc.WithPhotos(&stubUploader{err: errors.New("cloudinary down")})

	m, err := svc.AddMember(context.Background(), Scope{OwnerID: owner}, NewMember{Name: "Budi", ReferenceImage: []byte("jpeg")})
	require.NoError(t, err)
	assert.Empty(t, m.PhotoURL)
}

func TestMemberManagementRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	scope := Scope{OwnerID: owner}

	_, err := svc.AddMember(ctx, scope, NewMember{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.AddMember(ctx, Federated, NewMember{Name: "Ana"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	m, err := svc.AddMember(ctx, scope, NewMember{Name: "Ana"})
	require.NoError(t, err)

	require.NoError(t, svc.RenameMember(ctx, scope, m.ID, " Ana Putri "))
	snap, err := svc.Snapshot(ctx, scope.Filter())
	require.NoError(t, err)
	got, ok := snap.Member(m.ID)
	require.True(t, ok)
	assert.Equal(t, "Ana Putri", got.Name)

	assert.ErrorIs(t, svc.RenameMember(ctx, Scope{OwnerID: "group-2"}, m.ID, "x"), ErrNotFound)

	require.NoError(t, svc.Reconciler(scope).Set(ctx, s1, m.ID, true))
	require.NoError(t, svc.RemoveMember(ctx, scope, m.ID))
	snap, err = svc.Snapshot(ctx, scope.Filter())
	require.NoError(t, err)
	assert.Empty(t, snap.Members)
	assert.Empty(t, snap.Records)
	assert.ErrorIs(t, svc.RemoveMember(ctx, scope, m.ID), ErrNotFound)
}

func TestServiceWritesReachSubscribers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	scope := Scope{OwnerID: owner}

	sub, err := svc.Subscribe(ctx, scope.Filter())
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	m, err := svc.AddMember(ctx, scope, NewMember{Name: "Ana"})
	require.NoError(t, err)

	snap := next(t, sub)
	_, ok := snap.Member(m.ID)
	assert.True(t, ok)

	res, err := svc.Merger(scope).Merge(ctx, s1, []string{m.ID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMarked, res.Outcome)
	assert.Eventually(t, func() bool {
		select {
		case snap := <-sub.Snapshots():
			return snap.Has(s1, m.ID)
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
