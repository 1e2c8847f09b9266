package report

import (
	"rollcall/internal/roster"
	"rollcall/internal/session"
)

// Presence answers which members were present in a session. A snapshot is one.
type Presence interface {
	Present(id session.ID) roster.PresenceSet
}

// Row is one member with at least one absence in the selected sessions.
type Row struct {
	Seq     int
	Member  roster.Member
	Cells   []bool
	Present int
	Absent  int
	Total   int
	Percent int
}

// Summary is the overview block of an export.
type Summary struct {
	RosterSize  int
	WithAbsence int
	Sessions    int
}

// Matrix is the member by session table.
type Matrix struct {
	Sessions []session.ID
	Rows     []Row
	Summary  Summary
}

// Build computes the absentee matrix. Members present in every selected
// session are left out.
func Build(members []roster.Member, p Presence, sessions []session.ID) Matrix {
	sorted := append([]roster.Member(nil), members...)
	roster.SortByUnitThenName(sorted)

	sets := make([]roster.PresenceSet, len(sessions))
	for i, id := range sessions {
		sets[i] = p.Present(id)
	}
	total := len(sessions)
	if total == 0 {
		total = 1
	}

	m := Matrix{Sessions: sessions, Rows: []Row{}}
	for _, mem := range sorted {
		cells := make([]bool, len(sessions))
		present := 0
		for i, set := range sets {
			if set.Has(mem.ID) {
				cells[i] = true
				present++
			}
		}
		if present == total {
			continue
		}
		m.Rows = append(m.Rows, Row{
			Seq:     len(m.Rows) + 1,
			Member:  mem,
			Cells:   cells,
			Present: present,
			Absent:  total - present,
			Total:   total,
			Percent: roster.Percent(present, total),
		})
	}
	m.Summary = Summary{
		RosterSize:  len(members),
		WithAbsence: len(m.Rows),
		Sessions:    len(sessions),
	}
	return m
}
