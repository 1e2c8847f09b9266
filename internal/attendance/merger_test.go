package attendance

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/faceclient"
	"rollcall/internal/logging"
	"rollcall/internal/roster"
)

type stubVision struct {
	ids   []string
	err   error
	calls int
	refs  []faceclient.Reference
}

func (s *stubVision) Identify(_ context.Context, _ []byte, refs []faceclient.Reference) ([]string, error) {
	s.calls++
	s.refs = refs
	return s.ids, s.err
}

func newMerger(st Store, vision Recognizer) *Merger {
	return NewMerger(newReconciler(st, Scope{OwnerID: owner}), st, vision, nil, logging.Discard())
}

func TestMergeEmptyIsNoMatch(t *testing.T) {
	st := seed(t)
	res, err := newMerger(st, &stubVision{}).Merge(context.Background(), s1, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Empty(t, present(t, st, s1))
}

func TestMergeAddsOnlyAbsentKnownIDs(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	_, err := st.Ensure(ctx, Record{OwnerID: owner, SessionID: s1, MemberID: "A"})
	require.NoError(t, err)

	res, err := newMerger(st, &stubVision{}).Merge(ctx, s1, []string{"A", "C", "ghost", "C"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMarked, res.Outcome)
	assert.Equal(t, []string{"A", "C"}, res.Matched)
	assert.Equal(t, []string{"Member A", "Member C"}, res.Names)
	assert.Equal(t, []string{"C"}, res.Added)
	assert.Equal(t, []string{"A"}, res.AlreadyPresent)
	assert.Equal(t, []string{"ghost"}, res.Unknown)
	assert.Equal(t, []string{"A", "C"}, present(t, st, s1))
}

func TestMergeNeverRemoves(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	_, err := st.Ensure(ctx, Record{OwnerID: owner, SessionID: s1, MemberID: "A"})
	require.NoError(t, err)

	_, err = newMerger(st, &stubVision{}).Merge(ctx, s1, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, present(t, st, s1))
}

func TestMergeAllPresent(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	_, err := st.Ensure(ctx, Record{OwnerID: owner, SessionID: s1, MemberID: "B"})
	require.NoError(t, err)

	res, err := newMerger(st, &stubVision{}).Merge(ctx, s1, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllPresent, res.Outcome)
	assert.Empty(t, res.Added)
}

func TestMergeOnlyUnknownIsNoMatch(t *testing.T) {
	res, err := newMerger(seed(t), &stubVision{}).Merge(context.Background(), s1, []string{"ghost"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Equal(t, []string{"ghost"}, res.Unknown)
}

func TestMergeWriteFailure(t *testing.T) {
	mem := seed(t)
	st := &flakyStore{Store: mem, fail: map[string]error{"B": fmt.Errorf("%w: timeout", ErrNetwork)}}

	res, err := newMerger(st, &stubVision{}).Merge(context.Background(), s1, []string{"B"})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, OutcomeWriteFailed, res.Outcome)
	assert.Equal(t, 1, res.Failed)
}

func TestRecognizeSendsReferencesAndMerges(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	_, err := st.CreateMember(ctx, roster.Member{ID: "D", OwnerID: owner, Name: "Member D", ReferenceImage: []byte("face-d")})
	require.NoError(t, err)
	_, err = st.CreateMember(ctx, roster.Member{ID: "X", OwnerID: "group-2", Name: "Other", ReferenceImage: []byte("face-x")})
	require.NoError(t, err)

	vision := &stubVision{ids: []string{"D"}}
	res, err := newMerger(st, vision).Recognize(ctx, s1, []byte("frame"))
	require.NoError(t, err)

	require.Len(t, vision.refs, 1)
	assert.Equal(t, "D", vision.refs[0].MemberID)
	assert.Equal(t, []byte("face-d"), vision.refs[0].Image)
	assert.Equal(t, []string{"D"}, res.Added)
	assert.Equal(t, []string{"D"}, present(t, st, s1))
}

func TestRecognizeWithoutReferencesSkipsVision(t *testing.T) {
	vision := &stubVision{ids: []string{"A"}}
	res, err := newMerger(seed(t), vision).Recognize(context.Background(), s1, []byte("frame"))
	require.NoError(t, err)
	assert.Zero(t, vision.calls)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
}

func TestRecognizePropagatesVisionErrors(t *testing.T) {
	ctx := context.Background()
	st := seed(t)
	_, err := st.CreateMember(ctx, roster.Member{ID: "D", OwnerID: owner, Name: "Member D", ReferenceImage: []byte("face-d")})
	require.NoError(t, err)

	vision := &stubVision{err: fmt.Errorf("%w: 503", faceclient.ErrRecognitionService)}
	_, err = newMerger(st, vision).Recognize(ctx, s1, []byte("frame"))
	assert.ErrorIs(t, err, faceclient.ErrRecognitionService)
	assert.Empty(t, present(t, st, s1))
}

func TestMergeFederatedDenied(t *testing.T) {
	st := seed(t)
	m := NewMerger(newReconciler(st, Federated), st, &stubVision{}, nil, logging.Discard())
	_, err := m.Merge(context.Background(), s1, []string{"A"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
