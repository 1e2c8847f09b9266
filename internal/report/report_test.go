package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/logging"
	"rollcall/internal/profile"
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveSessions(t *testing.T) {
	known := []session.ID{
		"02-01-2024_AM",
		"01-01-2024_PM",
		"01-01-2024_AM",
		"01-01-2024_AM",
		"05-01-2024_PM",
		"garbage",
	}

	tests := []struct {
		name string
		sel  Selector
		want []session.ID
		err  error
	}{
		{
			name: "single is exactly the active session",
			sel:  Selector{Kind: Single, Session: "09-09-2024_PM"},
			want: []session.ID{"09-09-2024_PM"},
		},
		{
			name: "range is inclusive and chronological",
			sel:  Selector{Kind: Range, Start: day(2024, 1, 1), End: day(2024, 1, 2)},
			want: []session.ID{"01-01-2024_AM", "01-01-2024_PM", "02-01-2024_AM"},
		},
		{
			name: "all takes every distinct valid id",
			sel:  Selector{Kind: All},
			want: []session.ID{"01-01-2024_AM", "01-01-2024_PM", "02-01-2024_AM", "05-01-2024_PM"},
		},
		{
			name: "range without sessions",
			sel:  Selector{Kind: Range, Start: day(2024, 2, 1), End: day(2024, 2, 28)},
			err:  ErrEmptyRange,
		},
		{
			name: "single with malformed id",
			sel:  Selector{Kind: Single, Session: "bad"},
			err:  session.ErrMalformedID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSessions(tt.sel, known)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveSessions(Selector{Kind: All}, nil)
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, Single, k)
	k, err = ParseKind("range")
	require.NoError(t, err)
	assert.Equal(t, Range, k)
	_, err = ParseKind("weekly")
	assert.Error(t, err)
}

func TestBuildAppliesAbsenteeFilter(t *testing.T) {
	members := []roster.Member{
		{ID: "always-here", Name: "Zed", Unit: "10B"},
		{ID: "never-here", Name: "Yan", Unit: "10A"},
		{ID: "sometimes", Name: "Ann", Unit: "10A"},
	}
	sessions := []session.ID{"01-01-2024_AM", "01-01-2024_PM"}
	snap := attendance.NewSnapshot(attendance.Filter{}, members, []attendance.Record{
		{SessionID: sessions[0], MemberID: "always-here"},
		{SessionID: sessions[1], MemberID: "always-here"},
		{SessionID: sessions[1], MemberID: "sometimes"},
	})

	m := Build(members, snap, sessions)
	require.Len(t, m.Rows, 2)

	assert.Equal(t, "sometimes", m.Rows[0].Member.ID)
	assert.Equal(t, []bool{false, true}, m.Rows[0].Cells)
	assert.Equal(t, 1, m.Rows[0].Present)
	assert.Equal(t, 1, m.Rows[0].Absent)
	assert.Equal(t, 50, m.Rows[0].Percent)

	assert.Equal(t, "never-here", m.Rows[1].Member.ID)
	assert.Equal(t, 0, m.Rows[1].Percent)
	assert.Equal(t, 2, m.Rows[1].Seq)

	assert.Equal(t, Summary{RosterSize: 3, WithAbsence: 2, Sessions: 2}, m.Summary)
	for _, r := range m.Rows {
		assert.Len(t, r.Cells, len(sessions))
	}
}

func TestBuildWithNoSessionsAvoidsDivideByZero(t *testing.T) {
	members := []roster.Member{{ID: "a", Name: "A"}}
	m := Build(members, attendance.NewSnapshot(attendance.Filter{}, members, nil), nil)
	require.Len(t, m.Rows, 1)
	assert.Equal(t, 1, m.Rows[0].Total)
	assert.Equal(t, 0, m.Rows[0].Percent)
}

func TestHTMLRendererEscapesAndMarksCells(t *testing.T) {
	doc := Document{
		Title:      "ABSENTEE LIST",
		RangeLabel: "01-01-2024_AM",
		Preparer:   "<script>",
		Matrix: Matrix{
			Sessions: []session.ID{"01-01-2024_AM"},
			Rows: []Row{{
				Seq:    1,
				Member: roster.Member{ID: "abcdef123", Name: "Ann & Co"},
				Cells:  []bool{false},
				Absent: 1, Total: 1,
			}},
			Summary: Summary{RosterSize: 1, WithAbsence: 1, Sessions: 1},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, HTMLRenderer{}.Render(&buf, doc))
	out := buf.String()

	assert.Contains(t, out, "Ann &amp; Co")
	assert.Contains(t, out, "abcdef<")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `<td class="absent">A</td>`)
	assert.Contains(t, out, `title="01-01-2024_AM"`)
	assert.Equal(t, 1, strings.Count(out, `<th class="session"`))
}

func exporterFor(t *testing.T, st attendance.Store) *Exporter {
	t.Helper()
	svc := attendance.NewService(st, nil, nil, nil, logging.Discard())
	return NewExporter(svc, nil, nil, logging.Discard())
}

func TestExportScenario(t *testing.T) {
	ctx := context.Background()
	st := attendance.NewMemoryStore()
	for _, id := range []string{"A", "B", "C"} {
		_, err := st.CreateMember(ctx, roster.Member{ID: id, OwnerID: "g1", Name: "Member " + id, Unit: "10A"})
		require.NoError(t, err)
	}
	s1 := session.ID("04-03-2024_AM")
	_, err := st.Ensure(ctx, attendance.Record{OwnerID: "g1", SessionID: s1, MemberID: "A"})
	require.NoError(t, err)

	svc := attendance.NewService(st, nil, nil, nil, logging.Discard())
	rec := svc.Reconciler(attendance.Scope{OwnerID: "g1"})
	_, err = rec.MarkBatch(ctx, s1, []string{"A", "B"})
	require.NoError(t, err)
	_, err = rec.Toggle(ctx, s1, "B")
	require.NoError(t, err)

	res, err := NewExporter(svc, nil, nil, logging.Discard()).Export(ctx, Request{
		Scope:    attendance.Scope{OwnerID: "g1"},
		Selector: Selector{Kind: Single, Session: s1},
		Profile:  profile.Profile{PreparerName: "Ms Rina", UnitLabel: "10a"},
	})
	require.NoError(t, err)
	require.False(t, res.NoData)
	require.NotNil(t, res.Artifact)

	var ids []string
	for _, r := range res.Matrix.Rows {
		ids = append(ids, r.Member.ID)
		assert.Equal(t, 0, r.Percent)
	}
	assert.Equal(t, []string{"B", "C"}, ids)

	assert.Equal(t, ContentType, res.Artifact.ContentType)
	assert.Equal(t, "absentees_10A_04-03-2024_AM.xls", res.Artifact.Filename)
	assert.Contains(t, string(res.Artifact.Body), "UNIT 10A")
	assert.Contains(t, string(res.Artifact.Body), "Ms Rina")
}

func TestExportRangeColumnCount(t *testing.T) {
	ctx := context.Background()
	st := attendance.NewMemoryStore()
	_, err := st.CreateMember(ctx, roster.Member{ID: "A", OwnerID: "g1", Name: "A"})
	require.NoError(t, err)
	for _, id := range []session.ID{"01-01-2024_AM", "01-01-2024_PM", "03-01-2024_AM", "10-01-2024_AM"} {
		_, err := st.Ensure(ctx, attendance.Record{OwnerID: "g1", SessionID: id, MemberID: "A"})
		require.NoError(t, err)
	}
	_, err = st.CreateMember(ctx, roster.Member{ID: "B", OwnerID: "g1", Name: "B"})
	require.NoError(t, err)

	res, err := exporterFor(t, st).Export(ctx, Request{
		Scope:    attendance.Scope{OwnerID: "g1"},
		Selector: Selector{Kind: Range, Start: day(2024, 1, 1), End: day(2024, 1, 3)},
	})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 3)
	require.Len(t, res.Matrix.Rows, 1)
	assert.Len(t, res.Matrix.Rows[0].Cells, 3)
	assert.Equal(t, "absentees_unit_01-01-2024_to_03-01-2024.xls", res.Artifact.Filename)
}

func TestExportEmptyRangeIsNoData(t *testing.T) {
	res, err := exporterFor(t, attendance.NewMemoryStore()).Export(context.Background(), Request{
		Scope:    attendance.Federated,
		Selector: Selector{Kind: All},
	})
	require.NoError(t, err)
	assert.True(t, res.NoData)
	assert.Nil(t, res.Artifact)
}

func TestExportSingleDefaultsToCurrentSession(t *testing.T) {
	e := exporterFor(t, attendance.NewMemoryStore())
	e.now = func() time.Time { return time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC) }

	res, err := e.Export(context.Background(), Request{Scope: attendance.Scope{OwnerID: "g1"}})
	require.NoError(t, err)
	assert.Equal(t, []session.ID{"06-05-2024_PM"}, res.Sessions)
}
